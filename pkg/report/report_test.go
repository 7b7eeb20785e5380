package report

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/Ruscigno/marketsum/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "4,123,456.00", FormatNumber(4123456))
	assert.Equal(t, "12.35", FormatNumber(12.345001))
	assert.Equal(t, "-1,500.50", FormatNumber(-1500.5))
}

func TestSummarize(t *testing.T) {
	var records []model.Record
	for i := 1; i <= 7; i++ {
		records = append(records, model.Record{
			Name:        "S" + strconv.Itoa(i),
			MarketCap:   100,
			PER:         float64(i),
			PBR:         1,
			EquityRatio: float64(i * 10),
		})
	}

	s := Summarize(model.CrawlResult{Records: records, Count: 7, RowsSkipped: 3})

	assert.Equal(t, 7, s.Count)
	assert.Equal(t, 3, s.RowsSkipped)
	assert.InDelta(t, 4.0, s.AveragePER, 1e-9)
	assert.InDelta(t, 1.0, s.AveragePBR, 1e-9)
	assert.InDelta(t, 40.0, s.AverageEquity, 1e-9)
	assert.InDelta(t, 700.0, s.TotalMarketCap, 1e-9)

	require.Len(t, s.TopByEquityRatio, TopN)
	assert.Equal(t, "S7", s.TopByEquityRatio[0].Name)
	assert.Equal(t, "S3", s.TopByEquityRatio[4].Name)
	assert.Equal(t, "S1", records[0].Name, "input order untouched")
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(model.CrawlResult{})
	assert.Zero(t, s.Count)
	assert.Zero(t, s.AveragePER)
	assert.Empty(t, s.TopByEquityRatio)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTable(&buf, []model.Record{
		{Name: "삼성전자", MarketCap: 4123456, PER: 12.34, PBR: 1.05, TotalAssets: 4500000, ForeignRatio: 55.25, EquityRatio: 80},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "종목명")
	assert.Contains(t, lines[0], "자기자본비율(%)")
	assert.Contains(t, lines[1], "4,123,456.00")
	assert.Contains(t, lines[1], "4,500,000.00")
	assert.Contains(t, lines[1], "80.00")
}

func TestWriteTable_AlignsWideRunes(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTable(&buf, []model.Record{
		{Name: "삼성전자", MarketCap: 4123456, PER: 12.34, PBR: 1.05, TotalAssets: 4500000, ForeignRatio: 55.25, EquityRatio: 80},
		{Name: "NAVER", MarketCap: 300000, PER: 30, PBR: 1.5, TotalAssets: 35000, ForeignRatio: 45, EquityRatio: 80},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines[1:] {
		assert.Equal(t, DisplayWidth(lines[0]), DisplayWidth(l), l)
	}
	assert.True(t, strings.HasPrefix(lines[1], "삼성전자  "))
	assert.True(t, strings.HasPrefix(lines[2], "NAVER     "))
	assert.True(t, strings.HasSuffix(lines[2], " 80.00"))
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 8, DisplayWidth("삼성전자"))
	assert.Equal(t, 5, DisplayWidth("NAVER"))
	assert.Equal(t, 15, DisplayWidth("자기자본비율(%)"))
	assert.Equal(t, 0, DisplayWidth(""))
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	s := Summarize(model.CrawlResult{Records: []model.Record{
		{Name: "A", PER: 10, PBR: 2, EquityRatio: 50},
		{Name: "B", PER: 20, PBR: 4, EquityRatio: 70},
	}})
	require.NoError(t, WriteSummary(&buf, s))

	out := buf.String()
	assert.Contains(t, out, "Average PER")
	assert.Contains(t, out, "15.00")
	assert.Contains(t, out, "1. B")
	assert.Contains(t, out, "2. A")
}
