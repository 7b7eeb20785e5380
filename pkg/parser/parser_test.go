package parser

import (
	"testing"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/Ruscigno/marketsum/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveColumns(t *testing.T) {
	cols := ResolveColumns([]string{"N", " 종목명 ", "", "PER", "PER"})

	assert.Equal(t, Columns{"N": 1, "종목명": 2, "PER": 4}, cols)
	assert.Equal(t, []string{"PBR"}, cols.Missing([]string{"종목명", "PER", "PBR"}))
}

func TestExtractRows_DataRowsOnly(t *testing.T) {
	page := testutil.DefaultPage(
		testutil.StockRow("삼성전자", "4,000,000", "4,500,000", "900,000", "55.10", "12.50", "1.30"),
		testutil.StockRow("SK하이닉스", "1,000,000", "1,200,000", "400,000", "50.00", "N/A", "1.80"),
	)

	rows, err := ExtractRows(page)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	name, ok := rows[0].Get(model.ColumnName)
	require.True(t, ok)
	assert.Equal(t, "삼성전자", name)

	mc, _ := rows[0].Get(model.ColumnMarketCap)
	assert.Equal(t, "4,000,000", mc)

	per, _ := rows[1].Get(model.ColumnPER)
	assert.Equal(t, model.MissingValueMark, per, "markers are kept for the normalizer")

	assert.Equal(t, testutil.DefaultHeaders, rows[0].Columns)
}

func TestExtractRows_MissingHeaders(t *testing.T) {
	headers := []string{"N", "종목명", "시가총액", "PER", "PBR"}
	_, err := ExtractRows(testutil.Page(headers, nil))
	require.Error(t, err)

	var pe *errors.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "자산총계")
	assert.Contains(t, pe.Error(), "부채총계")
	assert.Contains(t, pe.Error(), "외국인비율")
}

func TestExtractRows_NoTable(t *testing.T) {
	_, err := ExtractRows("<html><body><p>maintenance</p></body></html>")
	assert.True(t, errors.IsParseError(err))
}

func TestExtractRows_EmptyTable(t *testing.T) {
	rows, err := ExtractRows(testutil.DefaultPage())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExtractRows_HeaderOrderIndependent(t *testing.T) {
	row := testutil.StockRow("NAVER", "300,000", "35,000", "12,000", "45.00", "30.00", "1.50")

	reordered := []string{"PBR", "외국인비율", "종목명", "N", "부채총계", "PER", "자산총계", "시가총액"}

	a, err := ExtractRows(testutil.DefaultPage(row))
	require.NoError(t, err)
	b, err := ExtractRows(testutil.Page(reordered, []testutil.Row{row}))
	require.NoError(t, err)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	for _, col := range model.RequiredColumns {
		av, _ := a[0].Get(col)
		bv, _ := b[0].Get(col)
		assert.Equal(t, av, bv, col)
	}
}
