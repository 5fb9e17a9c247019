package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tenderedge/postaward/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS award_records (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	contract_id        TEXT NOT NULL UNIQUE,
	tender_number      TEXT NOT NULL DEFAULT '',
	tender_description TEXT NOT NULL DEFAULT '',
	pe_name            TEXT NOT NULL DEFAULT '',
	pe_code            TEXT NOT NULL DEFAULT '',
	winning_company    TEXT NOT NULL DEFAULT '',
	contract_price     REAL,
	contract_currency  TEXT NOT NULL DEFAULT 'TZS',
	delivery_period    TEXT NOT NULL DEFAULT '',
	sector             TEXT NOT NULL DEFAULT 'Other',
	award_date         TEXT NOT NULL DEFAULT '',
	source_platform    TEXT NOT NULL DEFAULT '',
	tender_estimate    REAL,
	price_ratio        REAL,
	confidence_score   REAL NOT NULL DEFAULT 1.0,
	raw_json           TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS competitor_profiles (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	company_name     TEXT NOT NULL UNIQUE,
	aliases          TEXT NOT NULL DEFAULT '[]',
	total_wins       INTEGER NOT NULL DEFAULT 0,
	primary_sectors  TEXT NOT NULL DEFAULT '{}',
	pe_relationships TEXT NOT NULL DEFAULT '{}',
	price_range_min  REAL,
	price_range_max  REAL,
	avg_price_ratio  REAL,
	threat_score     REAL NOT NULL DEFAULT 0.0,
	last_win_date    TEXT NOT NULL DEFAULT '',
	last_updated     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pe_profiles (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	pe_name             TEXT NOT NULL UNIQUE,
	pe_code             TEXT NOT NULL DEFAULT '',
	total_awards        INTEGER NOT NULL DEFAULT 0,
	avg_contract_value  REAL,
	preferred_sectors   TEXT NOT NULL DEFAULT '{}',
	avg_price_ratio     REAL NOT NULL DEFAULT 0.93,
	price_sensitivity   TEXT NOT NULL DEFAULT 'MEDIUM',
	top_winners         TEXT NOT NULL DEFAULT '[]',
	budget_cycle_months TEXT NOT NULL DEFAULT '[]',
	confidence_score    REAL NOT NULL DEFAULT 0.0,
	last_updated        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pattern_insights (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	insight_type TEXT NOT NULL,
	sector       TEXT NOT NULL DEFAULT '',
	pe_name      TEXT NOT NULL DEFAULT '',
	insight_text TEXT NOT NULL,
	data_points  INTEGER NOT NULL DEFAULT 0,
	confidence   REAL NOT NULL DEFAULT 0.0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS bid_outcomes (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	bid_id            TEXT NOT NULL,
	tenant_id         TEXT NOT NULL DEFAULT '',
	ocid              TEXT NOT NULL,
	outcome           TEXT NOT NULL,
	our_price         REAL,
	winning_price     REAL,
	price_diff_pct    REAL,
	rejection_reasons TEXT NOT NULL DEFAULT '[]',
	autopsy_report    TEXT NOT NULL DEFAULT '{}',
	lessons_learned   TEXT NOT NULL DEFAULT '[]',
	detected_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS monitoring_queue (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	bid_id         TEXT NOT NULL,
	tenant_id      TEXT NOT NULL DEFAULT '',
	ocid           TEXT NOT NULL DEFAULT '',
	tender_number  TEXT NOT NULL DEFAULT '',
	pe_name        TEXT NOT NULL DEFAULT '',
	deadline       TEXT NOT NULL DEFAULT '',
	expected_award TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'WATCHING',
	last_checked   TEXT NOT NULL DEFAULT '',
	added_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_award_records_sector ON award_records(sector);
CREATE INDEX IF NOT EXISTS idx_award_records_pe_name ON award_records(pe_name);
CREATE INDEX IF NOT EXISTS idx_competitor_profiles_wins ON competitor_profiles(total_wins);
CREATE INDEX IF NOT EXISTS idx_pe_profiles_awards ON pe_profiles(total_awards);
CREATE INDEX IF NOT EXISTS idx_bid_outcomes_ocid ON bid_outcomes(ocid);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const awardColumns = `contract_id, tender_number, tender_description, pe_name, pe_code,
	winning_company, contract_price, contract_currency, delivery_period, sector,
	award_date, source_platform, tender_estimate, price_ratio, confidence_score, raw_json, created_at`

func (s *SQLiteStore) InsertAward(ctx context.Context, a model.AwardRecord) (bool, error) {
	a.Normalize()
	if err := a.Validate(); err != nil {
		return false, eris.Wrap(err, "sqlite: insert award")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO award_records (`+awardColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(contract_id) DO NOTHING`,
		a.ContractID, a.TenderNumber, a.TenderDescription, a.BuyerName, a.BuyerCode,
		a.WinningCompany, sqlFloat(a.ContractPrice), a.Currency, a.DeliveryPeriod, a.Sector,
		a.AwardDate, a.SourcePlatform, sqlFloat(a.Estimate), sqlFloat(a.PriceRatio), a.Confidence, a.RawJSON, a.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert award %s", a.ContractID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetAward(ctx context.Context, contractID string) (*model.AwardRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+awardColumns+` FROM award_records WHERE contract_id = ?`, contractID)
	a, err := scanAward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get award %s", contractID)
	}
	return a, nil
}

func (s *SQLiteStore) ListAwards(ctx context.Context) ([]model.AwardRecord, error) {
	return s.queryAwards(ctx, `SELECT `+awardColumns+` FROM award_records ORDER BY id`)
}

func (s *SQLiteStore) ListAwardsBySector(ctx context.Context, sector string) ([]model.AwardRecord, error) {
	return s.queryAwards(ctx, `SELECT `+awardColumns+` FROM award_records WHERE sector = ? ORDER BY id`, sector)
}

func (s *SQLiteStore) queryAwards(ctx context.Context, query string, args ...any) ([]model.AwardRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list awards")
	}
	defer rows.Close() //nolint:errcheck

	var awards []model.AwardRecord
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			zap.L().Warn("sqlite: skipping unreadable award row", zap.Error(err))
			continue
		}
		awards = append(awards, *a)
	}
	return awards, eris.Wrap(rows.Err(), "sqlite: list awards iterate")
}

func (s *SQLiteStore) CountAwards(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM award_records`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count awards")
}

func (s *SQLiteStore) UpsertCompetitorProfiles(ctx context.Context, profiles []model.CompetitorProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin competitor upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO competitor_profiles
			(company_name, total_wins, primary_sectors, pe_relationships,
			 price_range_min, price_range_max, avg_price_ratio, threat_score,
			 last_win_date, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_name) DO UPDATE SET
			total_wins       = excluded.total_wins,
			primary_sectors  = excluded.primary_sectors,
			pe_relationships = excluded.pe_relationships,
			price_range_min  = excluded.price_range_min,
			price_range_max  = excluded.price_range_max,
			avg_price_ratio  = excluded.avg_price_ratio,
			threat_score     = excluded.threat_score,
			last_win_date    = excluded.last_win_date,
			last_updated     = excluded.last_updated`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare competitor upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, p := range profiles {
		sectors, err := encodeJSON(orEmptyMap(p.Sectors))
		if err != nil {
			return err
		}
		buyers, err := encodeJSON(orEmptyMap(p.BuyerRelationships))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			p.CanonicalName, p.TotalWins, sectors, buyers,
			sqlFloat(p.PriceMin), sqlFloat(p.PriceMax), sqlFloat(p.AvgPriceRatio), p.ThreatScore,
			p.LastWinDate, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert competitor %s", p.CanonicalName)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit competitor upsert")
}

const competitorColumns = `company_name, aliases, total_wins, primary_sectors, pe_relationships,
	price_range_min, price_range_max, avg_price_ratio, threat_score, last_win_date, last_updated`

func (s *SQLiteStore) FindCompetitor(ctx context.Context, name string) (*model.CompetitorProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+competitorColumns+` FROM competitor_profiles
		 WHERE company_name LIKE ? ORDER BY total_wins DESC, id LIMIT 1`, "%"+name+"%")
	p, err := scanCompetitor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find competitor %s", name)
	}
	return p, nil
}

func (s *SQLiteStore) ListCompetitors(ctx context.Context, sector string, limit int) ([]model.CompetitorProfile, error) {
	query := `SELECT ` + competitorColumns + ` FROM competitor_profiles`
	var args []any
	if sector != "" {
		query += ` WHERE primary_sectors LIKE ?`
		args = append(args, `%"`+sector+`"%`)
		limit = defaultLimit(limit, 20)
	} else {
		limit = defaultLimit(limit, 30)
	}
	query += ` ORDER BY total_wins DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list competitors")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CompetitorProfile
	for rows.Next() {
		p, err := scanCompetitor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan competitor")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list competitors iterate")
}

func (s *SQLiteStore) UpsertPEProfiles(ctx context.Context, profiles []model.PEProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin pe upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pe_profiles
			(pe_name, pe_code, total_awards, avg_contract_value, preferred_sectors,
			 avg_price_ratio, price_sensitivity, top_winners, budget_cycle_months,
			 confidence_score, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pe_name) DO UPDATE SET
			pe_code             = excluded.pe_code,
			total_awards        = excluded.total_awards,
			avg_contract_value  = excluded.avg_contract_value,
			preferred_sectors   = excluded.preferred_sectors,
			avg_price_ratio     = excluded.avg_price_ratio,
			price_sensitivity   = excluded.price_sensitivity,
			top_winners         = excluded.top_winners,
			budget_cycle_months = excluded.budget_cycle_months,
			confidence_score    = excluded.confidence_score,
			last_updated        = excluded.last_updated`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare pe upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, p := range profiles {
		sectors, err := encodeJSON(orEmptyMap(p.Sectors))
		if err != nil {
			return err
		}
		winners, err := encodeJSON(orEmptySlice(p.TopWinners))
		if err != nil {
			return err
		}
		months, err := encodeJSON(orEmptySlice(p.PeakMonths))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			p.BuyerName, p.BuyerCode, p.TotalAwards, sqlFloat(p.AvgContractValue), sectors,
			p.AvgPriceRatio, string(p.PriceSensitivity), winners, months,
			p.Confidence, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert pe %s", p.BuyerName)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit pe upsert")
}

const peColumns = `pe_name, pe_code, total_awards, avg_contract_value, preferred_sectors,
	avg_price_ratio, price_sensitivity, top_winners, budget_cycle_months, confidence_score, last_updated`

func (s *SQLiteStore) GetPEProfile(ctx context.Context, buyerName string) (*model.PEProfile, error) {
	return s.queryPE(ctx, `SELECT `+peColumns+` FROM pe_profiles WHERE pe_name = ?`, buyerName)
}

func (s *SQLiteStore) FindPEProfile(ctx context.Context, name string) (*model.PEProfile, error) {
	return s.queryPE(ctx,
		`SELECT `+peColumns+` FROM pe_profiles WHERE pe_name LIKE ? ORDER BY total_awards DESC, id LIMIT 1`,
		"%"+name+"%")
}

func (s *SQLiteStore) queryPE(ctx context.Context, query string, arg string) (*model.PEProfile, error) {
	p, err := scanPE(s.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get pe profile %s", arg)
	}
	return p, nil
}

func (s *SQLiteStore) ListPEProfiles(ctx context.Context, limit int) ([]model.PEProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+peColumns+` FROM pe_profiles ORDER BY total_awards DESC, id LIMIT ?`,
		defaultLimit(limit, 30))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pe profiles")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PEProfile
	for rows.Next() {
		p, err := scanPE(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pe profile")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list pe profiles iterate")
}

func (s *SQLiteStore) ReplaceInsights(ctx context.Context, insights []model.PatternInsight) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insight replace")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_insights`); err != nil {
		return eris.Wrap(err, "sqlite: clear insights")
	}
	now := time.Now().UTC()
	for _, in := range insights {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pattern_insights (insight_type, sector, pe_name, insight_text, data_points, confidence, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(in.Type), in.Sector, in.BuyerName, in.Text, in.DataPoints, in.Confidence, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert insight %s", in.Type)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insight replace")
}

func (s *SQLiteStore) ListInsights(ctx context.Context, limit int) ([]model.PatternInsight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT insight_type, sector, pe_name, insight_text, data_points, confidence, created_at
		 FROM pattern_insights ORDER BY confidence DESC, id LIMIT ?`, defaultLimit(limit, 100))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list insights")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PatternInsight
	for rows.Next() {
		var in model.PatternInsight
		var typ string
		if err := rows.Scan(&typ, &in.Sector, &in.BuyerName, &in.Text, &in.DataPoints, &in.Confidence, &in.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan insight")
		}
		in.Type = model.InsightType(typ)
		out = append(out, in)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list insights iterate")
}

func (s *SQLiteStore) SaveBidOutcome(ctx context.Context, o model.BidOutcome) error {
	reasons, err := encodeJSON(orEmptySlice(o.RejectionReasons))
	if err != nil {
		return err
	}
	report, err := encodeJSON(o.Autopsy)
	if err != nil {
		return err
	}
	lessons, err := encodeJSON(orEmptySlice(o.LessonsLearned))
	if err != nil {
		return err
	}
	if o.DetectedAt.IsZero() {
		o.DetectedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bid_outcomes
			(bid_id, tenant_id, ocid, outcome, our_price, winning_price, price_diff_pct,
			 rejection_reasons, autopsy_report, lessons_learned, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.BidID, o.TenantID, o.ContractID, string(o.Outcome),
		sqlFloat(o.OurPrice), sqlFloat(o.WinningPrice), sqlFloat(o.PriceDiffPct),
		reasons, report, lessons, o.DetectedAt,
	)
	return eris.Wrapf(err, "sqlite: save bid outcome %s", o.BidID)
}

func (s *SQLiteStore) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM award_records),
		(SELECT COUNT(*) FROM competitor_profiles),
		(SELECT COUNT(*) FROM pe_profiles)`).Scan(&sum.Awards, &sum.Competitors, &sum.PEProfiles)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summary")
	}
	return &sum, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanAward(row scannable) (*model.AwardRecord, error) {
	var a model.AwardRecord
	var price, estimate, ratio sql.NullFloat64
	err := row.Scan(
		&a.ContractID, &a.TenderNumber, &a.TenderDescription, &a.BuyerName, &a.BuyerCode,
		&a.WinningCompany, &price, &a.Currency, &a.DeliveryPeriod, &a.Sector,
		&a.AwardDate, &a.SourcePlatform, &estimate, &ratio, &a.Confidence, &a.RawJSON, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ContractPrice = nullFloat(price)
	a.Estimate = nullFloat(estimate)
	a.PriceRatio = nullFloat(ratio)
	return &a, nil
}

func scanCompetitor(row scannable) (*model.CompetitorProfile, error) {
	var p model.CompetitorProfile
	var aliases, sectors, buyers string
	var pmin, pmax, ratio sql.NullFloat64
	err := row.Scan(
		&p.CanonicalName, &aliases, &p.TotalWins, &sectors, &buyers,
		&pmin, &pmax, &ratio, &p.ThreatScore, &p.LastWinDate, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	decodeJSON(aliases, &p.Aliases, "aliases")
	decodeJSON(sectors, &p.Sectors, "primary_sectors")
	decodeJSON(buyers, &p.BuyerRelationships, "pe_relationships")
	p.PriceMin = nullFloat(pmin)
	p.PriceMax = nullFloat(pmax)
	p.AvgPriceRatio = nullFloat(ratio)
	return &p, nil
}

func scanPE(row scannable) (*model.PEProfile, error) {
	var p model.PEProfile
	var avgValue sql.NullFloat64
	var sensitivity, sectors, winners, months string
	err := row.Scan(
		&p.BuyerName, &p.BuyerCode, &p.TotalAwards, &avgValue, &sectors,
		&p.AvgPriceRatio, &sensitivity, &winners, &months, &p.Confidence, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.AvgContractValue = nullFloat(avgValue)
	p.PriceSensitivity = model.PriceSensitivity(sensitivity)
	decodeJSON(sectors, &p.Sectors, "preferred_sectors")
	decodeJSON(winners, &p.TopWinners, "top_winners")
	decodeJSON(months, &p.PeakMonths, "budget_cycle_months")
	return &p, nil
}
