package ingest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderedge/postaward/internal/model"
)

const sampleRelease = `{
  "ocid": "ocds-nest-2026-0001",
  "date": "2026-03-20T10:00:00Z",
  "tender": {
    "id": "AE/041/2025-26/HQ/G/07",
    "title": "Supply and installation of network servers",
    "description": "Data centre hardware for regional offices",
    "value": {"amount": 500000000, "currency": "TZS"}
  },
  "buyer": {"id": "PE-041", "name": "Tanzania Electric Supply Company"},
  "awards": [{
    "id": "award-1",
    "date": "2026-03-14T08:30:00Z",
    "value": {"amount": 455000000, "currency": "TZS"},
    "suppliers": [{"name": "Simba Tech Ltd"}, {"name": "Second Bidder"}],
    "contractPeriod": {"startDate": "2026-04-01T00:00:00Z", "endDate": "2026-06-30T00:00:00Z"}
  }]
}`

func decodeRelease(t *testing.T, raw string) Release {
	t.Helper()
	var rel Release
	require.NoError(t, json.Unmarshal([]byte(raw), &rel))
	return rel
}

func TestParseRelease(t *testing.T) {
	rec, ok := ParseRelease(decodeRelease(t, sampleRelease))
	require.True(t, ok)

	assert.Equal(t, "ocds-nest-2026-0001", rec.ContractID)
	assert.Equal(t, "AE/041/2025-26/HQ/G/07", rec.TenderNumber)
	assert.Equal(t, "Supply and installation of network servers", rec.TenderDescription)
	assert.Equal(t, "Tanzania Electric Supply Company", rec.BuyerName)
	assert.Equal(t, "PE-041", rec.BuyerCode)
	assert.Equal(t, "Simba Tech Ltd", rec.WinningCompany)
	assert.Equal(t, 455000000.0, *rec.ContractPrice)
	assert.Equal(t, 500000000.0, *rec.Estimate)
	assert.Equal(t, 0.91, *rec.PriceRatio)
	assert.Equal(t, "TZS", rec.Currency)
	assert.Equal(t, model.SectorICT, rec.Sector)
	assert.Equal(t, "2026-03-14", rec.AwardDate)
	assert.Equal(t, "90 days", rec.DeliveryPeriod)
	assert.Equal(t, SourceNeST, rec.SourcePlatform)
	assert.Equal(t, 0.9, rec.Confidence)
	assert.NoError(t, rec.Validate())
}

func TestParseRelease_NoAwards(t *testing.T) {
	rec, ok := ParseRelease(Release{OCID: "ocds-1", Tender: Tender{Title: "Road works"}})
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestParseRelease_Defaults(t *testing.T) {
	rel := Release{
		OCID: "ocds-2",
		Date: "2026-05-02T00:00:00Z",
		Awards: []Award{{
			Value: Value{Amount: model.Float(1000)},
		}},
	}
	rec, ok := ParseRelease(rel)
	require.True(t, ok)

	assert.Equal(t, model.UnknownEntity, rec.WinningCompany)
	assert.Equal(t, unknownBuyer, rec.BuyerName)
	assert.Equal(t, model.DefaultCurrency, rec.Currency)
	assert.Equal(t, "ocds-2", rec.TenderNumber)
	assert.Equal(t, "2026-05-02", rec.AwardDate, "falls back to the release date")
	assert.Equal(t, model.SectorOther, rec.Sector)
	assert.Nil(t, rec.Estimate)
	assert.Nil(t, rec.PriceRatio)
	assert.Empty(t, rec.DeliveryPeriod)
	assert.NotEmpty(t, rec.RawJSON)
}

func TestParseRelease_ZeroPriceHasNoRatio(t *testing.T) {
	rel := Release{
		OCID:   "ocds-3",
		Tender: Tender{Value: Value{Amount: model.Float(1000)}},
		Awards: []Award{{Value: Value{Amount: model.Float(0)}}},
	}
	rec, ok := ParseRelease(rel)
	require.True(t, ok)
	assert.Nil(t, rec.PriceRatio)
}

func TestParseRelease_Truncation(t *testing.T) {
	rel := Release{
		OCID:   "ocds-4",
		Tender: Tender{Title: strings.Repeat("a", 600)},
		Awards: []Award{{Suppliers: []Party{{Name: "Winner"}}}},
		Raw:    json.RawMessage(`"` + strings.Repeat("x", 5000) + `"`),
	}
	rec, ok := ParseRelease(rel)
	require.True(t, ok)
	assert.Len(t, rec.TenderDescription, maxDescriptionLen)
	assert.Len(t, rec.RawJSON, maxRawJSONLen)
}

func TestDeliveryPeriod(t *testing.T) {
	tests := []struct {
		name string
		p    Period
		want string
	}{
		{"dates", Period{StartDate: "2026-01-01", EndDate: "2026-12-31"}, "364 days"},
		{"timestamps", Period{StartDate: "2026-01-01T00:00:00Z", EndDate: "2026-01-31T23:59:59Z"}, "30 days"},
		{"missing end", Period{StartDate: "2026-01-01"}, ""},
		{"garbage", Period{StartDate: "soon", EndDate: "later"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deliveryPeriod(tt.p))
		})
	}
}
