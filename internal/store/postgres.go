package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/db"
	"github.com/tenderedge/postaward/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS award_records (
	id                 BIGSERIAL PRIMARY KEY,
	contract_id        TEXT NOT NULL UNIQUE,
	tender_number      TEXT NOT NULL DEFAULT '',
	tender_description TEXT NOT NULL DEFAULT '',
	pe_name            TEXT NOT NULL DEFAULT '',
	pe_code            TEXT NOT NULL DEFAULT '',
	winning_company    TEXT NOT NULL DEFAULT '',
	contract_price     DOUBLE PRECISION,
	contract_currency  TEXT NOT NULL DEFAULT 'TZS',
	delivery_period    TEXT NOT NULL DEFAULT '',
	sector             TEXT NOT NULL DEFAULT 'Other',
	award_date         TEXT NOT NULL DEFAULT '',
	source_platform    TEXT NOT NULL DEFAULT '',
	tender_estimate    DOUBLE PRECISION,
	price_ratio        DOUBLE PRECISION,
	confidence_score   DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	raw_json           TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS competitor_profiles (
	id               BIGSERIAL PRIMARY KEY,
	company_name     TEXT NOT NULL UNIQUE,
	aliases          JSONB NOT NULL DEFAULT '[]',
	total_wins       INTEGER NOT NULL DEFAULT 0,
	primary_sectors  JSONB NOT NULL DEFAULT '{}',
	pe_relationships JSONB NOT NULL DEFAULT '{}',
	price_range_min  DOUBLE PRECISION,
	price_range_max  DOUBLE PRECISION,
	avg_price_ratio  DOUBLE PRECISION,
	threat_score     DOUBLE PRECISION NOT NULL DEFAULT 0.0,
	last_win_date    TEXT NOT NULL DEFAULT '',
	last_updated     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_profiles (
	id                  BIGSERIAL PRIMARY KEY,
	pe_name             TEXT NOT NULL UNIQUE,
	pe_code             TEXT NOT NULL DEFAULT '',
	total_awards        INTEGER NOT NULL DEFAULT 0,
	avg_contract_value  DOUBLE PRECISION,
	preferred_sectors   JSONB NOT NULL DEFAULT '{}',
	avg_price_ratio     DOUBLE PRECISION NOT NULL DEFAULT 0.93,
	price_sensitivity   TEXT NOT NULL DEFAULT 'MEDIUM',
	top_winners         JSONB NOT NULL DEFAULT '[]',
	budget_cycle_months JSONB NOT NULL DEFAULT '[]',
	confidence_score    DOUBLE PRECISION NOT NULL DEFAULT 0.0,
	last_updated        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pattern_insights (
	id           BIGSERIAL PRIMARY KEY,
	insight_type TEXT NOT NULL,
	sector       TEXT NOT NULL DEFAULT '',
	pe_name      TEXT NOT NULL DEFAULT '',
	insight_text TEXT NOT NULL,
	data_points  INTEGER NOT NULL DEFAULT 0,
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0.0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bid_outcomes (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	bid_id            TEXT NOT NULL,
	tenant_id         TEXT NOT NULL DEFAULT '',
	ocid              TEXT NOT NULL,
	outcome           TEXT NOT NULL,
	our_price         DOUBLE PRECISION,
	winning_price     DOUBLE PRECISION,
	price_diff_pct    DOUBLE PRECISION,
	rejection_reasons JSONB NOT NULL DEFAULT '[]',
	autopsy_report    JSONB NOT NULL DEFAULT '{}',
	lessons_learned   JSONB NOT NULL DEFAULT '[]',
	detected_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS monitoring_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	bid_id         TEXT NOT NULL,
	tenant_id      TEXT NOT NULL DEFAULT '',
	ocid           TEXT NOT NULL DEFAULT '',
	tender_number  TEXT NOT NULL DEFAULT '',
	pe_name        TEXT NOT NULL DEFAULT '',
	deadline       TEXT NOT NULL DEFAULT '',
	expected_award TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'WATCHING',
	last_checked   TEXT NOT NULL DEFAULT '',
	added_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_award_records_sector ON award_records(sector);
CREATE INDEX IF NOT EXISTS idx_award_records_pe_name ON award_records(pe_name);
CREATE INDEX IF NOT EXISTS idx_competitor_profiles_wins ON competitor_profiles(total_wins);
CREATE INDEX IF NOT EXISTS idx_pe_profiles_awards ON pe_profiles(total_awards);
CREATE INDEX IF NOT EXISTS idx_bid_outcomes_ocid ON bid_outcomes(ocid);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertAward(ctx context.Context, a model.AwardRecord) (bool, error) {
	a.Normalize()
	if err := a.Validate(); err != nil {
		return false, eris.Wrap(err, "postgres: insert award")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO award_records (`+awardColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (contract_id) DO NOTHING`,
		a.ContractID, a.TenderNumber, a.TenderDescription, a.BuyerName, a.BuyerCode,
		a.WinningCompany, a.ContractPrice, a.Currency, a.DeliveryPeriod, a.Sector,
		a.AwardDate, a.SourcePlatform, a.Estimate, a.PriceRatio, a.Confidence, a.RawJSON, a.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert award %s", a.ContractID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetAward(ctx context.Context, contractID string) (*model.AwardRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+awardColumns+` FROM award_records WHERE contract_id = $1`, contractID)
	a, err := pgScanAward(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get award %s", contractID)
	}
	return a, nil
}

func (s *PostgresStore) ListAwards(ctx context.Context) ([]model.AwardRecord, error) {
	return s.queryAwards(ctx, `SELECT `+awardColumns+` FROM award_records ORDER BY id`)
}

func (s *PostgresStore) ListAwardsBySector(ctx context.Context, sector string) ([]model.AwardRecord, error) {
	return s.queryAwards(ctx, `SELECT `+awardColumns+` FROM award_records WHERE sector = $1 ORDER BY id`, sector)
}

func (s *PostgresStore) queryAwards(ctx context.Context, query string, args ...any) ([]model.AwardRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list awards")
	}
	defer rows.Close()

	var awards []model.AwardRecord
	for rows.Next() {
		a, err := pgScanAward(rows)
		if err != nil {
			zap.L().Warn("postgres: skipping unreadable award row", zap.Error(err))
			continue
		}
		awards = append(awards, *a)
	}
	return awards, eris.Wrap(rows.Err(), "postgres: list awards iterate")
}

func (s *PostgresStore) CountAwards(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM award_records`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count awards")
}

var competitorUpsert = db.UpsertConfig{
	Table: "competitor_profiles",
	Columns: []string{
		"company_name", "total_wins", "primary_sectors", "pe_relationships",
		"price_range_min", "price_range_max", "avg_price_ratio", "threat_score",
		"last_win_date", "last_updated",
	},
	ConflictKeys: []string{"company_name"},
}

func (s *PostgresStore) UpsertCompetitorProfiles(ctx context.Context, profiles []model.CompetitorProfile) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(profiles))
	for _, p := range profiles {
		sectors, err := json.Marshal(orEmptyMap(p.Sectors))
		if err != nil {
			return eris.Wrap(err, "postgres: marshal sectors")
		}
		buyers, err := json.Marshal(orEmptyMap(p.BuyerRelationships))
		if err != nil {
			return eris.Wrap(err, "postgres: marshal pe relationships")
		}
		rows = append(rows, []any{
			p.CanonicalName, p.TotalWins, sectors, buyers,
			p.PriceMin, p.PriceMax, p.AvgPriceRatio, p.ThreatScore,
			p.LastWinDate, now,
		})
	}
	_, err := db.BulkUpsert(ctx, s.pool, competitorUpsert, rows)
	return eris.Wrap(err, "postgres: upsert competitor profiles")
}

func (s *PostgresStore) FindCompetitor(ctx context.Context, name string) (*model.CompetitorProfile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+competitorColumns+` FROM competitor_profiles
		 WHERE company_name ILIKE $1 ORDER BY total_wins DESC, id LIMIT 1`, "%"+name+"%")
	p, err := pgScanCompetitor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find competitor %s", name)
	}
	return p, nil
}

func (s *PostgresStore) ListCompetitors(ctx context.Context, sector string, limit int) ([]model.CompetitorProfile, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if sector != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+competitorColumns+` FROM competitor_profiles
			 WHERE primary_sectors ? $1 ORDER BY total_wins DESC, id LIMIT $2`,
			sector, defaultLimit(limit, 20))
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+competitorColumns+` FROM competitor_profiles ORDER BY total_wins DESC, id LIMIT $1`,
			defaultLimit(limit, 30))
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list competitors")
	}
	defer rows.Close()

	var out []model.CompetitorProfile
	for rows.Next() {
		p, err := pgScanCompetitor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan competitor")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list competitors iterate")
}

var peUpsert = db.UpsertConfig{
	Table: "pe_profiles",
	Columns: []string{
		"pe_name", "pe_code", "total_awards", "avg_contract_value", "preferred_sectors",
		"avg_price_ratio", "price_sensitivity", "top_winners", "budget_cycle_months",
		"confidence_score", "last_updated",
	},
	ConflictKeys: []string{"pe_name"},
}

func (s *PostgresStore) UpsertPEProfiles(ctx context.Context, profiles []model.PEProfile) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(profiles))
	for _, p := range profiles {
		sectors, err := json.Marshal(orEmptyMap(p.Sectors))
		if err != nil {
			return eris.Wrap(err, "postgres: marshal sectors")
		}
		winners, err := json.Marshal(orEmptySlice(p.TopWinners))
		if err != nil {
			return eris.Wrap(err, "postgres: marshal top winners")
		}
		months, err := json.Marshal(orEmptySlice(p.PeakMonths))
		if err != nil {
			return eris.Wrap(err, "postgres: marshal peak months")
		}
		rows = append(rows, []any{
			p.BuyerName, p.BuyerCode, p.TotalAwards, p.AvgContractValue, sectors,
			p.AvgPriceRatio, string(p.PriceSensitivity), winners, months,
			p.Confidence, now,
		})
	}
	_, err := db.BulkUpsert(ctx, s.pool, peUpsert, rows)
	return eris.Wrap(err, "postgres: upsert pe profiles")
}

func (s *PostgresStore) GetPEProfile(ctx context.Context, buyerName string) (*model.PEProfile, error) {
	return s.queryPE(ctx, `SELECT `+peColumns+` FROM pe_profiles WHERE pe_name = $1`, buyerName)
}

func (s *PostgresStore) FindPEProfile(ctx context.Context, name string) (*model.PEProfile, error) {
	return s.queryPE(ctx,
		`SELECT `+peColumns+` FROM pe_profiles WHERE pe_name ILIKE $1 ORDER BY total_awards DESC, id LIMIT 1`,
		"%"+name+"%")
}

func (s *PostgresStore) queryPE(ctx context.Context, query, arg string) (*model.PEProfile, error) {
	p, err := pgScanPE(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get pe profile %s", arg)
	}
	return p, nil
}

func (s *PostgresStore) ListPEProfiles(ctx context.Context, limit int) ([]model.PEProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+peColumns+` FROM pe_profiles ORDER BY total_awards DESC, id LIMIT $1`,
		defaultLimit(limit, 30))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pe profiles")
	}
	defer rows.Close()

	var out []model.PEProfile
	for rows.Next() {
		p, err := pgScanPE(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan pe profile")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list pe profiles iterate")
}

var insightColumns = []string{"insight_type", "sector", "pe_name", "insight_text", "data_points", "confidence", "created_at"}

func (s *PostgresStore) ReplaceInsights(ctx context.Context, insights []model.PatternInsight) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insight replace")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	rows := make([][]any, 0, len(insights))
	for _, in := range insights {
		rows = append(rows, []any{string(in.Type), in.Sector, in.BuyerName, in.Text, in.DataPoints, in.Confidence, now})
	}
	if _, err := db.Replace(ctx, tx, "pattern_insights", insightColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: replace insights")
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit insight replace")
}

func (s *PostgresStore) ListInsights(ctx context.Context, limit int) ([]model.PatternInsight, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT insight_type, sector, pe_name, insight_text, data_points, confidence, created_at
		 FROM pattern_insights ORDER BY confidence DESC, id LIMIT $1`, defaultLimit(limit, 100))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list insights")
	}
	defer rows.Close()

	var out []model.PatternInsight
	for rows.Next() {
		var in model.PatternInsight
		var typ string
		if err := rows.Scan(&typ, &in.Sector, &in.BuyerName, &in.Text, &in.DataPoints, &in.Confidence, &in.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan insight")
		}
		in.Type = model.InsightType(typ)
		out = append(out, in)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list insights iterate")
}

func (s *PostgresStore) SaveBidOutcome(ctx context.Context, o model.BidOutcome) error {
	reasons, err := json.Marshal(orEmptySlice(o.RejectionReasons))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rejection reasons")
	}
	report, err := json.Marshal(o.Autopsy)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal autopsy")
	}
	lessons, err := json.Marshal(orEmptySlice(o.LessonsLearned))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lessons")
	}
	if o.DetectedAt.IsZero() {
		o.DetectedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO bid_outcomes
			(id, bid_id, tenant_id, ocid, outcome, our_price, winning_price, price_diff_pct,
			 rejection_reasons, autopsy_report, lessons_learned, detected_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.New().String(), o.BidID, o.TenantID, o.ContractID, string(o.Outcome),
		o.OurPrice, o.WinningPrice, o.PriceDiffPct,
		reasons, report, lessons, o.DetectedAt,
	)
	return eris.Wrapf(err, "postgres: save bid outcome %s", o.BidID)
}

func (s *PostgresStore) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	err := s.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM award_records),
		(SELECT COUNT(*) FROM competitor_profiles),
		(SELECT COUNT(*) FROM pe_profiles)`).Scan(&sum.Awards, &sum.Competitors, &sum.PEProfiles)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summary")
	}
	return &sum, nil
}

func pgScanAward(row pgx.Row) (*model.AwardRecord, error) {
	var a model.AwardRecord
	err := row.Scan(
		&a.ContractID, &a.TenderNumber, &a.TenderDescription, &a.BuyerName, &a.BuyerCode,
		&a.WinningCompany, &a.ContractPrice, &a.Currency, &a.DeliveryPeriod, &a.Sector,
		&a.AwardDate, &a.SourcePlatform, &a.Estimate, &a.PriceRatio, &a.Confidence, &a.RawJSON, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func pgScanCompetitor(row pgx.Row) (*model.CompetitorProfile, error) {
	var p model.CompetitorProfile
	var aliases, sectors, buyers []byte
	err := row.Scan(
		&p.CanonicalName, &aliases, &p.TotalWins, &sectors, &buyers,
		&p.PriceMin, &p.PriceMax, &p.AvgPriceRatio, &p.ThreatScore, &p.LastWinDate, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	decodeJSON(string(aliases), &p.Aliases, "aliases")
	decodeJSON(string(sectors), &p.Sectors, "primary_sectors")
	decodeJSON(string(buyers), &p.BuyerRelationships, "pe_relationships")
	return &p, nil
}

func pgScanPE(row pgx.Row) (*model.PEProfile, error) {
	var p model.PEProfile
	var sensitivity string
	var sectors, winners, months []byte
	err := row.Scan(
		&p.BuyerName, &p.BuyerCode, &p.TotalAwards, &p.AvgContractValue, &sectors,
		&p.AvgPriceRatio, &sensitivity, &winners, &months, &p.Confidence, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.PriceSensitivity = model.PriceSensitivity(sensitivity)
	decodeJSON(string(sectors), &p.Sectors, "preferred_sectors")
	decodeJSON(string(winners), &p.TopWinners, "top_winners")
	decodeJSON(string(months), &p.PeakMonths, "budget_cycle_months")
	return &p, nil
}

func orEmptyMap(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func orEmptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
