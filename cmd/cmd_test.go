package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ruscigno/marketsum/pkg/config"
	"github.com/Ruscigno/marketsum/pkg/export"
	"github.com/Ruscigno/marketsum/pkg/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrateArgs(t *testing.T) {
	tests := []struct {
		args      []string
		direction string
		steps     int
		wantErr   bool
	}{
		{nil, "up", 0, false},
		{[]string{"up"}, "up", 0, false},
		{[]string{"down"}, "down", 1, false},
		{[]string{"down", "3"}, "down", 3, false},
		{[]string{"down", "0"}, "", 0, true},
		{[]string{"up", "2"}, "", 0, true},
		{[]string{"sideways"}, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, "_"), func(t *testing.T) {
			direction, steps, err := parseMigrateArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.direction, direction)
			assert.Equal(t, tt.steps, steps)
		})
	}
}

func TestNewFetchConfig(t *testing.T) {
	cfg, err := config.LoadConfig(viper.New())
	require.NoError(t, err)
	cfg.MaxRetries = 2
	cfg.BackoffInitial = 50 * time.Millisecond

	fc := newFetchConfig(cfg, nil)
	assert.Equal(t, cfg.BaseURL, fc.BaseURL)
	assert.Equal(t, 10*time.Second, fc.Timeout)
	assert.Equal(t, 2, fc.Retry.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, fc.Retry.InitialDelay)
}

func TestRunCrawl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := r.URL.Query().Get("returnUrl")
		page := u[len(u)-1:]
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testutil.DefaultPage(
			testutil.StockRow("S"+page, "1,000", "100", "25", "10.0", "5.0", "1.0"),
			testutil.StockRow("N/A"+page, "N/A", "100", "25", "10.0", "5.0", "1.0"),
		))
	}))
	defer srv.Close()

	cfg, err := config.LoadConfig(viper.New())
	require.NoError(t, err)
	cfg.BaseURL = srv.URL
	cfg.PageDelay = 0
	cfg.OutputDir = t.TempDir()
	appConfig = cfg

	csvPath := filepath.Join(cfg.OutputDir, "out.csv")
	var stdout, stderr bytes.Buffer
	err = runCrawl(context.Background(), &stdout, &stderr, crawlOptions{pages: 2, csv: csvPath, summary: true, table: true})
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "2 record(s)")
	assert.Contains(t, stdout.String(), "Average PER")
	assert.Contains(t, stdout.String(), "S2")

	matches, err := filepath.Glob(filepath.Join(cfg.OutputDir, "stock_data_*.xlsx"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer f.Close()
	records, err := export.ReadXLSX(f)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.InDelta(t, 75.0, records[0].EquityRatio, 1e-9)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
}

func TestRunCrawl_RejectsZeroPages(t *testing.T) {
	err := runCrawl(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, crawlOptions{pages: 0})
	assert.ErrorContains(t, err, "--pages")
}

func TestRunCrawl_SkipsEmptyExport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testutil.DefaultPage(
			testutil.StockRow("N/A", "N/A", "100", "25", "10.0", "5.0", "1.0"),
		))
	}))
	defer srv.Close()

	cfg, err := config.LoadConfig(viper.New())
	require.NoError(t, err)
	cfg.BaseURL = srv.URL
	cfg.PageDelay = 0
	cfg.OutputDir = t.TempDir()
	appConfig = cfg

	var stdout, stderr bytes.Buffer
	err = runCrawl(context.Background(), &stdout, &stderr, crawlOptions{pages: 1})
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "0 record(s)")
	assert.NotContains(t, stdout.String(), "saved")
	assert.Contains(t, stderr.String(), "no records to save")

	matches, err := filepath.Glob(filepath.Join(cfg.OutputDir, "stock_data_*.xlsx"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	out := filepath.Join(cfg.OutputDir, "explicit.xlsx")
	err = runCrawl(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, crawlOptions{pages: 1, out: out})
	require.NoError(t, err)
	assert.FileExists(t, out)
}
