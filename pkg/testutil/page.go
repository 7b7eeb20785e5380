// Package testutil renders listing pages shaped like the live market-sum
// table for tests that need markup without the network.
package testutil

import (
	"html"
	"strings"
)

// DefaultHeaders is the header layout the site serves with the default field selection.
var DefaultHeaders = []string{
	"N", "종목명", "현재가", "전일비", "등락률", "액면가", "시가총액",
	"자산총계", "부채총계", "외국인비율", "PER", "PBR", "토론실",
}

// Row is one stock keyed by header text. Headers missing from the map render as empty cells.
type Row map[string]string

// StockRow fills the seven columns the crawler reads.
func StockRow(name, marketCap, assets, debt, foreign, per, pbr string) Row {
	return Row{
		"종목명":   name,
		"시가총액":  marketCap,
		"자산총계":  assets,
		"부채총계":  debt,
		"외국인비율": foreign,
		"PER":   per,
		"PBR":   pbr,
	}
}

// Page renders a listing page with the given headers and rows, including the
// blank separator rows the site puts between groups of data rows.
func Page(headers []string, rows []Row) string {
	var b strings.Builder
	b.WriteString(`<html><head><meta charset="utf-8"></head><body>`)
	b.WriteString(`<div id="contentarea"><div class="box_type_l">`)
	b.WriteString(`<table class="type_2" summary="market sum"><thead><tr>`)
	for _, h := range headers {
		b.WriteString("<th scope=\"col\">")
		b.WriteString(html.EscapeString(h))
		b.WriteString("</th>")
	}
	b.WriteString(`</tr></thead><tbody>`)
	b.WriteString(`<tr><td class="blank_08" colspan="13"></td></tr>`)
	for i, r := range rows {
		b.WriteString(`<tr onmouseover="mouseOver(this)" onmouseout="mouseOut(this)">`)
		for _, h := range headers {
			b.WriteString(`<td class="number">`)
			v := r[h]
			if h == "종목명" {
				b.WriteString(`<a href="/item/main.naver?code=000000" class="tltle">` + html.EscapeString(v) + `</a>`)
			} else {
				b.WriteString("\n\t\t" + html.EscapeString(v) + "\n\t")
			}
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
		if (i+1)%5 == 0 {
			b.WriteString(`<tr><td class="division_line" colspan="13"></td></tr>`)
		}
	}
	b.WriteString(`<tr><td class="blank_08" colspan="13"></td></tr>`)
	b.WriteString(`</tbody></table></div></div></body></html>`)
	return b.String()
}

// DefaultPage renders rows under DefaultHeaders.
func DefaultPage(rows ...Row) string {
	return Page(DefaultHeaders, rows)
}
