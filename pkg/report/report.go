package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/export"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/width"
)

// TopN is how many records the summary ranks by equity ratio.
const TopN = 5

var printer = message.NewPrinter(language.English)

// FormatNumber renders v with thousands separators and two decimals.
func FormatNumber(v float64) string {
	return printer.Sprintf("%.2f", v)
}

// Summary is the aggregate view of one crawl.
type Summary struct {
	Count            int            `json:"count"`
	AveragePER       float64        `json:"average_per"`
	AveragePBR       float64        `json:"average_pbr"`
	AverageEquity    float64        `json:"average_equity_ratio"`
	TotalMarketCap   float64        `json:"total_market_cap"`
	TopByEquityRatio []model.Record `json:"top_by_equity_ratio"`
	PagesFailed      int            `json:"pages_failed"`
	RowsSkipped      int            `json:"rows_skipped"`
	ElapsedSeconds   float64        `json:"elapsed_seconds"`
}

// Summarize computes averages and the equity-ratio ranking of a result.
func Summarize(result model.CrawlResult) Summary {
	s := Summary{
		Count:          len(result.Records),
		PagesFailed:    result.PagesFailed,
		RowsSkipped:    result.RowsSkipped,
		ElapsedSeconds: result.ElapsedSeconds,
	}
	if s.Count == 0 {
		return s
	}

	var perSum, pbrSum, equitySum float64
	for _, r := range result.Records {
		perSum += r.PER
		pbrSum += r.PBR
		equitySum += r.EquityRatio
		s.TotalMarketCap += r.MarketCap
	}
	n := float64(s.Count)
	s.AveragePER = perSum / n
	s.AveragePBR = pbrSum / n
	s.AverageEquity = equitySum / n

	ranked := append([]model.Record(nil), result.Records...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EquityRatio > ranked[j].EquityRatio
	})
	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}
	s.TopByEquityRatio = ranked
	return s
}

// DisplayWidth is the number of terminal columns s occupies. Wide and
// fullwidth runes such as Hangul syllables take two.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// writeAligned pads cells by display width. Column 0 is left aligned and
// the rest are right aligned.
func writeAligned(w io.Writer, rows [][]string) error {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], DisplayWidth(cell))
		}
	}

	var sb strings.Builder
	for _, row := range rows {
		sb.Reset()
		for i, cell := range row {
			fill := strings.Repeat(" ", widths[i]-DisplayWidth(cell))
			switch {
			case i == 0:
				sb.WriteString(cell + fill)
			default:
				sb.WriteString("  " + fill + cell)
			}
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable renders records as an aligned table with the export headers.
func WriteTable(w io.Writer, records []model.Record) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, export.Headers)
	for _, r := range records {
		row := []string{r.Name}
		for _, v := range r.Values() {
			row = append(row, FormatNumber(v))
		}
		rows = append(rows, row)
	}
	return writeAligned(w, rows)
}

// WriteSummary renders a Summary for the terminal.
func WriteSummary(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Records\t%d\n", s.Count)
	fmt.Fprintf(tw, "Pages failed\t%d\n", s.PagesFailed)
	fmt.Fprintf(tw, "Rows skipped\t%d\n", s.RowsSkipped)
	fmt.Fprintf(tw, "Elapsed\t%.2fs\n", s.ElapsedSeconds)
	fmt.Fprintf(tw, "Total market cap\t%s\n", FormatNumber(s.TotalMarketCap))
	fmt.Fprintf(tw, "Average PER\t%s\n", FormatNumber(s.AveragePER))
	fmt.Fprintf(tw, "Average PBR\t%s\n", FormatNumber(s.AveragePBR))
	fmt.Fprintf(tw, "Average equity ratio\t%s\n", FormatNumber(s.AverageEquity))
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(s.TopByEquityRatio) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nTop %d by equity ratio\n", len(s.TopByEquityRatio))
	rows := make([][]string, 0, len(s.TopByEquityRatio))
	for i, r := range s.TopByEquityRatio {
		rows = append(rows, []string{fmt.Sprintf("%d. %s", i+1, r.Name), FormatNumber(r.EquityRatio)})
	}
	return writeAligned(w, rows)
}
