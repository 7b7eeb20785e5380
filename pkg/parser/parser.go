package parser

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/errors"
)

const (
	// RowSelector matches the interactive data rows of the market-sum table.
	// Blank separator rows and the header row carry no onmouseover handler.
	RowSelector = `#contentarea > div.box_type_l > table.type_2 > tbody > tr[onmouseover="mouseOver(this)"]`
	// HeaderSelector matches the header cells of the same table.
	HeaderSelector = "table.type_2 thead th"
)

// Columns maps header text to its 1-based cell position.
type Columns map[string]int

// ResolveColumns maps each header to its 1-based position. It is recomputed
// for every page since the site does not promise a stable column order.
// A repeated header keeps its first position.
func ResolveColumns(headers []string) Columns {
	cols := make(Columns, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, ok := cols[h]; !ok {
			cols[h] = i + 1
		}
	}
	return cols
}

// Missing returns the required headers absent from cols, sorted.
func (cols Columns) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Headers reads the header texts of the table in document order.
func Headers(doc *goquery.Document) []string {
	var headers []string
	doc.Find(HeaderSelector).Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})
	return headers
}

// ExtractRows parses a listing page into raw rows, one per data row, keyed by
// header text. Cell text is returned as-is, missing-value markers included.
func ExtractRows(markup string) ([]model.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &errors.ParseError{Msg: "invalid markup", Cause: err}
	}
	return ExtractDocument(doc)
}

// ExtractDocument is ExtractRows for an already parsed document.
func ExtractDocument(doc *goquery.Document) ([]model.RawRow, error) {
	headers := Headers(doc)
	cols := ResolveColumns(headers)
	if missing := cols.Missing(model.RequiredColumns); len(missing) > 0 {
		return nil, &errors.ParseError{
			Msg: "missing required headers: " + strings.Join(missing, ", "),
		}
	}

	var rows []model.RawRow
	doc.Find(RowSelector).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		row := model.NewRawRow()
		for _, h := range headers {
			pos, ok := cols[h]
			if !ok {
				continue
			}
			row.Set(h, strings.TrimSpace(cells.Eq(pos-1).Text()))
		}
		rows = append(rows, row)
	})
	return rows, nil
}
