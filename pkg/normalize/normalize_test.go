package normalize

import (
	"encoding/json"
	"testing"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawRow(name, marketCap, assets, debt, foreign, per, pbr string) model.RawRow {
	r := model.NewRawRow()
	r.Set(model.ColumnName, name)
	r.Set(model.ColumnMarketCap, marketCap)
	r.Set(model.ColumnTotalAssets, assets)
	r.Set(model.ColumnTotalDebt, debt)
	r.Set(model.ColumnForeignRatio, foreign)
	r.Set(model.ColumnPER, per)
	r.Set(model.ColumnPBR, pbr)
	return r
}

func TestNormalize(t *testing.T) {
	rec, err := Normalize(rawRow("삼성전자", "4,123,456", "4,000,000", "1,000,000", "55.25", "12.34", "1.05"))
	require.NoError(t, err)

	assert.Equal(t, model.Record{
		Name:         "삼성전자",
		MarketCap:    4123456,
		PER:          12.34,
		PBR:          1.05,
		TotalAssets:  4000000,
		ForeignRatio: 55.25,
		EquityRatio:  75,
	}, rec)
}

func TestNormalize_EquityRatio(t *testing.T) {
	tests := []struct {
		name   string
		assets string
		debt   string
		want   float64
	}{
		{"half financed", "200", "100", 50},
		{"no debt", "1,000", "0", 100},
		{"debt above assets", "100", "150", -50},
		{"zero assets", "0", "500", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Normalize(rawRow("X", "1", tt.assets, tt.debt, "0", "1", "1"))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, rec.EquityRatio, 1e-9)
		})
	}
}

func TestNormalize_SkipsMissingMarker(t *testing.T) {
	base := []string{"1,000", "2,000", "500", "10.0", "8.5", "0.9"}
	for i, col := range numericColumns {
		t.Run(col, func(t *testing.T) {
			cells := append([]string(nil), base...)
			cells[i] = model.MissingValueMark
			// The column order of numericColumns matches base.
			r := model.NewRawRow()
			r.Set(model.ColumnName, "X")
			for j, c := range numericColumns {
				r.Set(c, cells[j])
			}
			_, err := Normalize(r)
			assert.ErrorIs(t, err, ErrSkip)
		})
	}
}

func TestNormalize_MarkerWinsOverMalformed(t *testing.T) {
	_, err := Normalize(rawRow("X", "N/A", "garbage", "1", "1", "1", "1"))
	assert.ErrorIs(t, err, ErrSkip)
}

func TestNormalize_MalformedNumber(t *testing.T) {
	_, err := Normalize(rawRow("X", "12a", "1", "1", "1", "1", "1"))
	require.Error(t, err)

	var pe *errors.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ColumnMarketCap, pe.Field)
	assert.Equal(t, "12a", pe.Value)
}

func TestNormalize_RejectsNonFinite(t *testing.T) {
	_, err := Normalize(rawRow("X", "1", "Inf", "1", "1", "1", "1"))
	assert.True(t, errors.IsParseError(err))

	_, err = Normalize(rawRow("X", "1", "1", "1", "NaN", "1", "1"))
	assert.True(t, errors.IsParseError(err))
}

func TestNormalize_RejectsOverflowingEquityRatio(t *testing.T) {
	_, err := Normalize(rawRow("X", "1", "1e-300", "-1e300", "1", "1", "1"))
	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))

	var pe *errors.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "equity_ratio", pe.Field)

	rec, err := Normalize(rawRow("X", "1", "1e300", "-1e300", "1", "1", "1"))
	require.NoError(t, err)
	_, err = json.Marshal(rec)
	assert.NoError(t, err)
}

func TestNormalize_MissingCell(t *testing.T) {
	r := model.NewRawRow()
	r.Set(model.ColumnName, "X")
	_, err := Normalize(r)
	assert.True(t, errors.IsParseError(err))
}

func TestParseNumber(t *testing.T) {
	v, err := ParseNumber(" -1,234.50 ")
	require.NoError(t, err)
	assert.Equal(t, -1234.5, v)

	_, err = ParseNumber("")
	assert.Error(t, err)
}
