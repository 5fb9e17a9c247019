package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/tenderedge/postaward/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Awards")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "awards.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestImportFile_CSV(t *testing.T) {
	path := writeFile(t, "awards.csv", `OCID,Procuring Entity,Winner,Contract Price,Tender Estimate,Award Date,Title,Sector
tz-001,Ministry of Health,Afya Supplies Ltd,"1,800,000","2,000,000",2026-01-15,Hospital beds and medical trolleys,
tz-002,TANROADS,Kilimanjaro Builders,TZS 950 000,1000000,2026-02-01T00:00:00Z,Road rehabilitation,Construction
tz-003,TANROADS,Broken Row,abc,1000,2026-02-02,Bridge repair,
,TANROADS,No Id,100,100,2026-02-03,Culvert,
`)
	st := newIngestStore(t)

	res, err := ImportFile(context.Background(), st, path)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Awards, 2)

	got, err := st.GetAward(context.Background(), "tz-001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ministry of Health", got.BuyerName)
	assert.Equal(t, "Afya Supplies Ltd", got.WinningCompany)
	assert.Equal(t, 1800000.0, *got.ContractPrice)
	assert.Equal(t, 0.9, *got.PriceRatio)
	assert.Equal(t, model.SectorMedical, got.Sector, "classified from the title")
	assert.Equal(t, SourceUpload, got.SourcePlatform)
	assert.Equal(t, model.DefaultCurrency, got.Currency)

	second, err := st.GetAward(context.Background(), "tz-002")
	require.NoError(t, err)
	assert.Equal(t, model.SectorConstruction, second.Sector)
	assert.Equal(t, "2026-02-01", second.AwardDate)
	assert.Equal(t, 950000.0, *second.ContractPrice)
}

func TestImportFile_XLSX(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"contract_id", "pe_name", "winning_company", "contract_price", "estimate", "award_date", "description"},
		{"x-1", "TANESCO", "Jua Power", "450000", "500000", "2026-03-01", "Solar mini-grid installation"},
		{"x-2", "TANESCO", "Jua Power", "880000", "1000000", "2026-03-09", "Generator supply"},
	})
	st := newIngestStore(t)

	res, err := ImportFile(context.Background(), st, path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Len(t, res.Awards, 2)

	got, err := st.GetAward(context.Background(), "x-1")
	require.NoError(t, err)
	assert.Equal(t, model.SectorEnergy, got.Sector)
	assert.Equal(t, 0.9, *got.PriceRatio)
}

func TestImportFile_Errors(t *testing.T) {
	st := newIngestStore(t)

	_, err := ImportFile(context.Background(), st, writeFile(t, "awards.txt", "x"))
	assert.ErrorContains(t, err, "unsupported file type")

	_, err = ImportFile(context.Background(), st, writeFile(t, "awards.csv", "name,price\nfoo,1\n"))
	assert.ErrorContains(t, err, "no contract_id column")

	_, err = ImportFile(context.Background(), st, filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "ingest: open csv")
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    *float64
		wantErr bool
	}{
		{"", nil, false},
		{"1,250,000", model.Float(1250000), false},
		{"TZS 1 250 000.50", model.Float(1250000.5), false},
		{"n/a", nil, true},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
