package store

import (
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// encodeJSON renders v as the JSON text stored in map and list columns.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal column")
	}
	return string(b), nil
}

// decodeJSON fills dst from a stored JSON column. Empty or corrupt text
// leaves dst at its zero value; a corrupt column is logged, not returned,
// so one bad row cannot hide the rest of a table.
func decodeJSON(raw string, dst any, column string) {
	if raw == "" || raw == "null" {
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		zap.L().Warn("store: corrupt json column",
			zap.String("column", column),
			zap.Error(err),
		)
	}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func sqlFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func defaultLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
