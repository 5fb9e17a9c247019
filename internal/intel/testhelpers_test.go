package intel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/store"
)

func award(id, winner, buyer, sector, date string, ratio float64) model.AwardRecord {
	a := model.AwardRecord{
		ContractID:     id,
		WinningCompany: winner,
		BuyerName:      buyer,
		Sector:         sector,
		AwardDate:      date,
		Currency:       model.DefaultCurrency,
		Confidence:     0.9,
	}
	if ratio > 0 {
		a.ContractPrice = model.Float(ratio * 1000)
		a.Estimate = model.Float(1000)
		a.PriceRatio = model.Float(ratio)
	}
	return a
}

func newTestStore(t *testing.T, awards ...model.AwardRecord) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "intel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	for _, a := range awards {
		_, err := st.InsertAward(context.Background(), a)
		require.NoError(t, err)
	}
	return st
}
