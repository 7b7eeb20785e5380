package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Ruscigno/marketsum/model"
	"go.uber.org/zap"
)

// CSVWriter saves records to a CSV file.
type CSVWriter struct {
	path   string
	logger *zap.Logger
}

func NewCSVWriter(path string, logger *zap.Logger) *CSVWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVWriter{path: path, logger: logger}
}

// Write saves all records to the CSV file, creating its directory if needed.
func (w *CSVWriter) Write(records []model.Record) error {
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

	if err := EncodeCSV(file, records); err != nil {
		return err
	}

	w.logger.Info("Saved CSV", zap.Int("records", len(records)), zap.String("path", w.path))
	return nil
}

// EncodeCSV writes the header row and one row per record, numbers with two decimals.
func EncodeCSV(out io.Writer, records []model.Record) error {
	writer := csv.NewWriter(out)

	if err := writer.Write(Headers); err != nil {
		return fmt.Errorf("csv write error: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.Name}
		for _, v := range rec.Values() {
			row = append(row, strconv.FormatFloat(v, 'f', 2, 64))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("csv write error: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("csv write error: %w", err)
	}
	return nil
}
