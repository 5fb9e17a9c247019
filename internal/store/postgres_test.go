package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderedge/postaward/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_InsertAward_New(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	args := anyArgs(17)
	args[0] = "A-1"
	mock.ExpectExec(`(?s)INSERT INTO award_records .* ON CONFLICT \(contract_id\) DO NOTHING`).
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := s.InsertAward(context.Background(), testAward("A-1", "Ramco", "TANROADS", model.SectorConstruction, 90, 100))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertAward_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO award_records`).
		WithArgs(anyArgs(17)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := s.InsertAward(context.Background(), testAward("A-1", "Ramco", "TANROADS", model.SectorConstruction, 90, 100))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertAward_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO award_records`).
		WithArgs(anyArgs(17)...).
		WillReturnError(errors.New("connection reset"))

	_, err := s.InsertAward(context.Background(), testAward("A-1", "Ramco", "TANROADS", model.SectorConstruction, 90, 100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert award A-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAward_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM award_records WHERE contract_id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetAward(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindCompetitor_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM competitor_profiles\s+WHERE company_name ILIKE \$1`).
		WithArgs("%ramco%").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.FindCompetitor(context.Background(), "ramco")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPEProfile_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM pe_profiles WHERE pe_name = \$1`).
		WithArgs("MSD").
		WillReturnError(errors.New("boom"))

	_, err := s.GetPEProfile(context.Background(), "MSD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get pe profile MSD")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountAwards(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM award_records`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	n, err := s.CountAwards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Summary(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(pgxmock.NewRows([]string{"a", "c", "p"}).AddRow(17, 12, 9))

	sum, err := s.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Awards: 17, Competitors: 12, PEProfiles: 9}, *sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPEProfiles_BulkUpsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_pe_profiles"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_pe_profiles"}, peUpsert.Columns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "pe_profiles" .* ON CONFLICT \("pe_name"\) DO UPDATE`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.UpsertPEProfiles(context.Background(), []model.PEProfile{{
		BuyerName:        "MSD",
		TotalAwards:      2,
		AvgPriceRatio:    0.93,
		PriceSensitivity: model.SensitivityMedium,
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCompetitorProfiles_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	require.NoError(t, s.UpsertCompetitorProfiles(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceInsights(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "pattern_insights"`).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"pattern_insights"}, insightColumns).WillReturnResult(1)
	mock.ExpectCommit()

	err := s.ReplaceInsights(context.Background(), []model.PatternInsight{
		{Type: model.InsightSeasonal, Text: "Most awards are published in March.", DataPoints: 5, Confidence: 0.5},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceInsights_DeleteFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "pattern_insights"`).WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err := s.ReplaceInsights(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replace pattern_insights: clear")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveBidOutcome(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	args := anyArgs(12)
	args[1] = "bid-1"
	args[3] = "A-1"
	args[4] = "LOSS"
	mock.ExpectExec(`INSERT INTO bid_outcomes`).
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveBidOutcome(context.Background(), model.BidOutcome{
		BidID:      "bid-1",
		ContractID: "A-1",
		Outcome:    model.OutcomeLoss,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS award_records`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
