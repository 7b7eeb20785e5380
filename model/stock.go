package model

import (
	"fmt"
	"net/url"
	"strconv"
)

// Column headers of the market-sum table. The site only publishes them in Korean.
const (
	ColumnName         = "종목명"
	ColumnMarketCap    = "시가총액"
	ColumnTotalAssets  = "자산총계"
	ColumnTotalDebt    = "부채총계"
	ColumnForeignRatio = "외국인비율"
	ColumnPER          = "PER"
	ColumnPBR          = "PBR"
)

// RequiredColumns lists every header a page must carry to be parsed.
var RequiredColumns = []string{
	ColumnName,
	ColumnMarketCap,
	ColumnTotalAssets,
	ColumnTotalDebt,
	ColumnForeignRatio,
	ColumnPER,
	ColumnPBR,
}

// FieldIDs are the optional columns requested from the listing, in the order the site expects.
var FieldIDs = []string{"market_sum", "debt_total", "frgn_rate", "per", "pbr", "property_total"}

const (
	DefaultBaseURL   = "https://finance.naver.com/sise/field_submit.naver"
	marketSumReturn  = "http://finance.naver.com/sise/sise_market_sum.naver"
	MissingValueMark = "N/A"
)

// PageRequest addresses one page of the listing.
type PageRequest struct {
	BaseURL string
	Page    int
}

// URL returns the field-submit URL for the page. The same page always yields the same URL.
func (p PageRequest) URL() string {
	base := p.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	// The return URL is embedded verbatim, so the query is assembled by hand
	// instead of through url.Values which would sort and re-escape it.
	q := "menu=market_sum&returnUrl=" + marketSumReturn + "?page=" + strconv.Itoa(p.Page)
	for _, id := range FieldIDs {
		q += "&fieldIds=" + url.QueryEscape(id)
	}
	return fmt.Sprintf("%s?%s", base, q)
}

// RawRow is one table row keyed by header text, in header order.
type RawRow struct {
	Columns []string
	Cells   map[string]string
}

// NewRawRow returns an empty row ready for Set.
func NewRawRow() RawRow {
	return RawRow{Cells: make(map[string]string)}
}

// Set appends a column, or overwrites the cell when the header repeats.
func (r *RawRow) Set(column, value string) {
	if r.Cells == nil {
		r.Cells = make(map[string]string)
	}
	if _, ok := r.Cells[column]; !ok {
		r.Columns = append(r.Columns, column)
	}
	r.Cells[column] = value
}

// Get returns the cell text under the header and whether the header exists.
func (r RawRow) Get(column string) (string, bool) {
	v, ok := r.Cells[column]
	return v, ok
}

// Record is the output unit of a crawl.
type Record struct {
	Name         string  `json:"name" db:"name"`
	MarketCap    float64 `json:"market_cap" db:"market_cap"`
	PER          float64 `json:"per" db:"per"`
	PBR          float64 `json:"pbr" db:"pbr"`
	TotalAssets  float64 `json:"total_assets" db:"total_assets"`
	ForeignRatio float64 `json:"foreign_ratio" db:"foreign_ratio"`
	EquityRatio  float64 `json:"equity_ratio" db:"equity_ratio"`
}

// Values returns the numeric fields in export order.
func (r Record) Values() []float64 {
	return []float64{r.MarketCap, r.PER, r.PBR, r.TotalAssets, r.ForeignRatio, r.EquityRatio}
}

// CrawlResult is everything a finished crawl produced.
type CrawlResult struct {
	Records        []Record `json:"records"`
	Count          int      `json:"count"`
	ElapsedSeconds float64  `json:"elapsed_seconds"`
	PagesFailed    int      `json:"pages_failed"`
	RowsSkipped    int      `json:"rows_skipped"`
	Cancelled      bool     `json:"cancelled"`
}
