package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderedge/postaward/internal/intel"
	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/store"
)

func TestAwards(t *testing.T) {
	awards, err := Awards()
	require.NoError(t, err)
	require.Len(t, awards, 17)

	ids := make(map[string]bool)
	for _, a := range awards {
		require.NoError(t, a.Validate(), a.ContractID)
		assert.True(t, model.IsSector(a.Sector), a.Sector)
		assert.False(t, ids[a.ContractID], "duplicate %s", a.ContractID)
		ids[a.ContractID] = true
	}

	first := awards[0]
	assert.Equal(t, "TZ-A-001", first.ContractID)
	assert.Equal(t, "2024-11-15", first.AwardDate)
	assert.Equal(t, 0.925, *first.PriceRatio)

	assert.Equal(t, model.UnknownEntity, awards[3].WinningCompany)
	assert.Equal(t, "KES", awards[16].Currency)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	n, err := Load(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 17, n)

	n, err = Load(ctx, st)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding twice adds nothing")

	build, err := intel.NewAnalyzer(st).RebuildCompetitors(ctx)
	require.NoError(t, err)
	assert.Len(t, build.Profiles, 16, "the award without a winner is not a competitor")

	pe, err := intel.NewAnalyzer(st).RebuildPEProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, pe, 14)
}
