package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderedge/postaward/internal/intel"
	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/predict"
	"github.com/tenderedge/postaward/internal/store"
)

func seededRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	for i, a := range []struct {
		buyer, winner string
		ratio         float64
	}{
		{"Ministry of Health", "Afya Supplies Ltd", 0.90},
		{"Ministry of Health", "Afya Supplies Limited", 0.92},
		{"Ministry of Health", "Dawa Bora", 0.94},
		{"Muhimbili Hospital", "Afya Supplies", 0.86},
	} {
		_, err := st.InsertAward(ctx, model.AwardRecord{
			ContractID:     fmt.Sprintf("med-%d", i),
			BuyerName:      a.buyer,
			WinningCompany: a.winner,
			ContractPrice:  model.Float(a.ratio * 1000),
			Estimate:       model.Float(1000),
			PriceRatio:     model.Float(a.ratio),
			Currency:       model.DefaultCurrency,
			Sector:         model.SectorMedical,
			AwardDate:      fmt.Sprintf("2026-0%d-15", i+1),
			Confidence:     0.9,
		})
		require.NoError(t, err)
	}

	an := intel.NewAnalyzer(st)
	_, err = an.RebuildCompetitors(ctx)
	require.NoError(t, err)
	_, err = an.RebuildPEProfiles(ctx)
	require.NoError(t, err)
	_, err = an.MinePatterns(ctx)
	require.NoError(t, err)

	engine, err := predict.NewEngine(st, predict.DefaultWeights(), 0,
		predict.WithClock(func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)
	return NewRouter(st, engine, []string{"https://app.tenderedge.co.tz"})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	rr := do(t, seededRouter(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])
}

func TestReport(t *testing.T) {
	rr := do(t, seededRouter(t), http.MethodGet, "/api/v1/report", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rep := decode[intel.Report](t, rr)
	assert.Equal(t, 4, rep.Summary.Awards)
	assert.Equal(t, 2, rep.Summary.Competitors)
	assert.Equal(t, 2, rep.Summary.PEProfiles)
	require.NotEmpty(t, rep.TopCompetitors)
	assert.Equal(t, "Afya Supplies", rep.TopCompetitors[0].CanonicalName)
	assert.NotEmpty(t, rep.Insights)
}

func TestCompetitors(t *testing.T) {
	h := seededRouter(t)

	t.Run("list by sector", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/v1/competitors?sector=Medical", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		list := decode[[]model.CompetitorProfile](t, rr)
		require.Len(t, list, 2)
		assert.Equal(t, 3, list[0].TotalWins)
	})

	t.Run("empty sector is an empty list", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/v1/competitors?sector=Energy", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("by name", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/v1/competitors/dawa", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Dawa Bora", decode[model.CompetitorProfile](t, rr).CanonicalName)
	})

	t.Run("unknown name", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/v1/competitors/nobody", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestPEProfile(t *testing.T) {
	h := seededRouter(t)

	rr := do(t, h, http.MethodGet, "/api/v1/pe/Ministry%20of%20Health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	pe := decode[model.PEProfile](t, rr)
	assert.Equal(t, 3, pe.TotalAwards)
	assert.Equal(t, 0.92, pe.AvgPriceRatio)
	assert.Equal(t, model.SensitivityMedium, pe.PriceSensitivity)

	rr = do(t, h, http.MethodGet, "/api/v1/pe/TANESCO", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPricing(t *testing.T) {
	h := seededRouter(t)

	rr := do(t, h, http.MethodGet, "/api/v1/pricing/Medical", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	b := decode[intel.Benchmark](t, rr)
	assert.Equal(t, 4, b.DataPoints)
	assert.Equal(t, 0.86, b.Min)
	assert.Equal(t, 0.94, b.Max)

	rr = do(t, h, http.MethodGet, "/api/v1/pricing/Fishing", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInsights(t *testing.T) {
	h := seededRouter(t)

	rr := do(t, h, http.MethodGet, "/api/v1/insights?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.PatternInsight](t, rr), 1)

	rr = do(t, h, http.MethodGet, "/api/v1/insights?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTPS(t *testing.T) {
	h := seededRouter(t)

	t.Run("scores", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/v1/tps", TPSRequest{
			Tender:  model.Tender{ID: "new-1", Sector: model.SectorMedical, BuyerName: "Ministry of Health"},
			Company: predict.CompanyProfile{Name: "Afya Supplies", Sectors: []string{model.SectorMedical}},
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		res := decode[model.TPSResult](t, rr)
		require.NotNil(t, res.TPS)
		assert.Len(t, res.Factors, 7)
		assert.NotEmpty(t, res.Label)
	})

	t.Run("bad body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tps", bytes.NewBufferString("{"))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing sector", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/v1/tps", TPSRequest{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "tender.sector is required")
	})

	t.Run("invalid company", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/v1/tps", TPSRequest{
			Tender:  model.Tender{Sector: model.SectorMedical},
			Company: predict.CompanyProfile{ComplianceScore: model.Float(1.5)},
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCORS(t *testing.T) {
	h := seededRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/report", nil)
	req.Header.Set("Origin", "https://app.tenderedge.co.tz")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://app.tenderedge.co.tz", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
