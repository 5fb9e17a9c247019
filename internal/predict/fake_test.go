package predict

import (
	"context"
	"errors"

	"github.com/tenderedge/postaward/internal/model"
)

// fakeSource serves fixed award and profile state.
type fakeSource struct {
	total    int
	bySector map[string][]model.AwardRecord
	profiles map[string]*model.PEProfile
	countErr error
}

func (f *fakeSource) CountAwards(_ context.Context) (int, error) {
	return f.total, f.countErr
}

func (f *fakeSource) ListAwardsBySector(_ context.Context, sector string) ([]model.AwardRecord, error) {
	return f.bySector[sector], nil
}

func (f *fakeSource) GetPEProfile(_ context.Context, name string) (*model.PEProfile, error) {
	return f.profiles[name], nil
}

var errCount = errors.New("database is locked")

func ratioAward(id, winner, sector string, ratio float64) model.AwardRecord {
	return model.AwardRecord{
		ContractID:     id,
		WinningCompany: winner,
		Sector:         sector,
		ContractPrice:  model.Float(ratio * 1000),
		Estimate:       model.Float(1000),
		PriceRatio:     model.Float(ratio),
		Confidence:     0.9,
	}
}
