package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Ruscigno/marketsum/model"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	DefaultPrefix = "stock_data"
	SheetName     = "Sheet1"
	NumberFormat  = "#,##0.00"
)

// Headers is the header row of every export, in Record field order.
var Headers = []string{
	"종목명", "시가총액(억)", "PER(배)", "PBR(배)", "자산총계(억)", "외국인비율", "자기자본비율(%)",
}

// DefaultFilename names an xlsx export after the time it was taken.
func DefaultFilename(prefix string, t time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s_%s.xlsx", prefix, t.Format("20060102_150405"))
}

// XLSXWriter saves records to a spreadsheet file.
type XLSXWriter struct {
	path   string
	logger *zap.Logger
}

func NewXLSXWriter(path string, logger *zap.Logger) *XLSXWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XLSXWriter{path: path, logger: logger}
}

// Write creates the file, and its directory if needed, and fills it with records.
func (w *XLSXWriter) Write(records []model.Record) error {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("could not create output dir: %w", err)
		}
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer file.Close()

	if err := EncodeXLSX(file, records); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("could not close file: %w", err)
	}

	w.logger.Info("Saved spreadsheet", zap.Int("records", len(records)), zap.String("path", w.path))
	return nil
}

// EncodeXLSX writes a workbook with a header row and one row per record.
// Numeric cells keep full precision and display with two decimals.
func EncodeXLSX(out io.Writer, records []model.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{rec.Name}
		for _, v := range rec.Values() {
			row = append(row, v)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := styleSheet(f, len(records)); err != nil {
		return err
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func styleSheet(f *excelize.File, rows int) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(Headers))
	if err := f.SetCellStyle(SheetName, "A1", last+"1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", last, 15); err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}

	numFmt := NumberFormat
	number, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return err
	}
	return f.SetCellStyle(SheetName, "B2", last+strconv.Itoa(rows+1), number)
}

// ReadXLSX loads records back from a workbook produced by EncodeXLSX.
func ReadXLSX(in io.Reader) ([]model.Record, error) {
	f, err := excelize.OpenReader(in)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("workbook has no header row")
	}

	records := make([]model.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < len(Headers) {
			return nil, fmt.Errorf("row %d: expected %d cells, got %d", i+2, len(Headers), len(row))
		}
		values := make([]float64, len(Headers)-1)
		for j := range values {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d, %s: %w", i+2, Headers[j+1], err)
			}
			values[j] = v
		}
		records = append(records, model.Record{
			Name:         row[0],
			MarketCap:    values[0],
			PER:          values[1],
			PBR:          values[2],
			TotalAssets:  values[3],
			ForeignRatio: values[4],
			EquityRatio:  values[5],
		})
	}
	return records, nil
}
