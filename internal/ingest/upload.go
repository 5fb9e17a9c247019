package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/resolve"
)

const (
	// SourceUpload tags records imported from a spreadsheet.
	SourceUpload = "Manual Upload"

	uploadConfidence = 0.8
)

// columnAliases maps accepted header names to award fields.
var columnAliases = map[string]string{
	"contract_id":        "contract_id",
	"ocid":               "contract_id",
	"tender_number":      "tender_number",
	"tender_no":          "tender_number",
	"tender_description": "description",
	"description":        "description",
	"title":              "description",
	"buyer_name":         "buyer_name",
	"pe_name":            "buyer_name",
	"procuring_entity":   "buyer_name",
	"buyer_code":         "buyer_code",
	"pe_code":            "buyer_code",
	"winning_company":    "winner",
	"winner":             "winner",
	"supplier":           "winner",
	"contract_price":     "price",
	"price":              "price",
	"amount":             "price",
	"currency":           "currency",
	"tender_estimate":    "estimate",
	"estimate":           "estimate",
	"sector":             "sector",
	"award_date":         "award_date",
	"date":               "award_date",
	"delivery_period":    "delivery_period",
}

// ImportResult summarizes a spreadsheet import.
type ImportResult struct {
	Rows    int
	Skipped int
	Awards  []model.AwardRecord
}

// ImportFile reads an .xlsx or .csv award sheet and stores every valid row.
// The first row is a header; columns are matched by name.
func ImportFile(ctx context.Context, w AwardWriter, path string) (ImportResult, error) {
	var res ImportResult
	rows, errs := streamRows(ctx, path)

	var header map[int]string
	for row := range rows {
		if header == nil {
			header = mapHeader(row)
			if !hasField(header, "contract_id") {
				drain(rows)
				return res, eris.Errorf("ingest: %s has no contract_id column", filepath.Base(path))
			}
			continue
		}
		res.Rows++
		rec, err := recordFromRow(valuesOf(header, row))
		if err != nil {
			zap.L().Warn("ingest: skipping upload row", zap.Int("row", res.Rows+1), zap.Error(err))
			res.Skipped++
			continue
		}
		outcome, err := saveAward(ctx, w, rec)
		if err != nil {
			drain(rows)
			return res, err
		}
		switch outcome {
		case saveSkipped:
			res.Skipped++
		case saveInserted:
			res.Awards = append(res.Awards, *rec)
		}
	}
	if err := <-errs; err != nil {
		return res, err
	}

	zap.L().Info("ingest: upload imported",
		zap.String("file", filepath.Base(path)),
		zap.Int("rows", res.Rows),
		zap.Int("new_awards", len(res.Awards)),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// drain lets the producer goroutine finish after an early return.
func drain(rows <-chan []string) {
	for range rows {
	}
}

func mapHeader(row []string) map[int]string {
	h := make(map[int]string, len(row))
	for i, name := range row {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
		if field, ok := columnAliases[key]; ok {
			h[i] = field
		}
	}
	return h
}

func hasField(header map[int]string, field string) bool {
	for _, f := range header {
		if f == field {
			return true
		}
	}
	return false
}

func valuesOf(header map[int]string, row []string) map[string]string {
	v := make(map[string]string, len(header))
	for i, cell := range row {
		if field, ok := header[i]; ok {
			if cell = strings.TrimSpace(cell); cell != "" {
				v[field] = cell
			}
		}
	}
	return v
}

func recordFromRow(v map[string]string) (*model.AwardRecord, error) {
	price, err := parseAmount(v["price"])
	if err != nil {
		return nil, eris.Wrap(err, "ingest: contract_price")
	}
	estimate, err := parseAmount(v["estimate"])
	if err != nil {
		return nil, eris.Wrap(err, "ingest: tender_estimate")
	}
	rec := &model.AwardRecord{
		ContractID:        v["contract_id"],
		TenderNumber:      v["tender_number"],
		TenderDescription: truncate(v["description"], maxDescriptionLen),
		BuyerName:         v["buyer_name"],
		BuyerCode:         v["buyer_code"],
		WinningCompany:    v["winner"],
		ContractPrice:     price,
		Currency:          strings.ToUpper(v["currency"]),
		DeliveryPeriod:    v["delivery_period"],
		Estimate:          estimate,
		Sector:            v["sector"],
		AwardDate:         truncate(v["award_date"], 10),
		SourcePlatform:    SourceUpload,
		Confidence:        uploadConfidence,
	}
	if rec.TenderNumber == "" {
		rec.TenderNumber = rec.ContractID
	}
	if rec.WinningCompany == "" {
		rec.WinningCompany = model.UnknownEntity
	}
	if !model.IsSector(rec.Sector) {
		rec.Sector = resolve.ClassifySector(rec.TenderDescription)
	}
	return rec, nil
}

// parseAmount reads a money cell such as "1,250,000" or "TZS 1 250 000".
func parseAmount(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	clean := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if clean == "" {
		return nil, eris.Errorf("ingest: %q is not an amount", s)
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: parse amount %q", s)
	}
	return &f, nil
}

// streamRows sends the rows of a .csv or .xlsx file. Both channels are
// closed when the file is exhausted.
func streamRows(ctx context.Context, path string) (<-chan []string, <-chan error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return streamXLSX(ctx, path)
	case ".csv":
		return streamCSVFile(ctx, path)
	default:
		rowCh := make(chan []string)
		errCh := make(chan error, 1)
		close(rowCh)
		errCh <- eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
		close(errCh)
		return rowCh, errCh
	}
}

func streamCSVFile(ctx context.Context, path string) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- eris.Wrap(err, "ingest: open csv")
			return
		}
		defer f.Close() //nolint:errcheck

		reader := csv.NewReader(f)
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv cancelled")
				return
			}
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ingest: read csv row")
				return
			}
			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func streamXLSX(ctx context.Context, path string) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			errCh <- eris.Wrap(err, "ingest: open xlsx")
			return
		}
		if len(f.Sheets) == 0 {
			errCh <- eris.New("ingest: xlsx has no sheets")
			return
		}

		for _, row := range f.Sheets[0].Rows {
			cells := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = cell.String()
			}
			select {
			case rowCh <- cells:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: xlsx cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
