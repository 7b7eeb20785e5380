package normalize

import (
	stderrors "errors"
	"math"
	"strconv"
	"strings"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/errors"
)

// ErrSkip reports a row dropped because a required cell holds the missing-value marker.
var ErrSkip = stderrors.New("row skipped: missing value")

// numericColumns are the cells that must not carry the marker.
var numericColumns = []string{
	model.ColumnMarketCap,
	model.ColumnTotalAssets,
	model.ColumnTotalDebt,
	model.ColumnForeignRatio,
	model.ColumnPER,
	model.ColumnPBR,
}

// Normalize turns a raw row into a Record. It returns ErrSkip when any numeric
// cell is the missing-value marker, and a *errors.ParseError when a cell is
// absent or not a finite decimal number.
func Normalize(row model.RawRow) (model.Record, error) {
	for _, col := range numericColumns {
		if v, _ := row.Get(col); strings.TrimSpace(v) == model.MissingValueMark {
			return model.Record{}, ErrSkip
		}
	}

	name, ok := row.Get(model.ColumnName)
	if !ok {
		return model.Record{}, &errors.ParseError{Field: model.ColumnName, Msg: "cell missing"}
	}

	values := make(map[string]float64, len(numericColumns))
	for _, col := range numericColumns {
		raw, ok := row.Get(col)
		if !ok {
			return model.Record{}, &errors.ParseError{Field: col, Msg: "cell missing"}
		}
		v, err := ParseNumber(raw)
		if err != nil {
			return model.Record{}, &errors.ParseError{Field: col, Value: raw, Cause: err}
		}
		values[col] = v
	}

	assets := values[model.ColumnTotalAssets]
	equity := EquityRatio(assets, values[model.ColumnTotalDebt])
	if math.IsNaN(equity) || math.IsInf(equity, 0) {
		return model.Record{}, &errors.ParseError{Field: "equity_ratio", Msg: "not a finite number"}
	}
	return model.Record{
		Name:         strings.TrimSpace(name),
		MarketCap:    values[model.ColumnMarketCap],
		PER:          values[model.ColumnPER],
		PBR:          values[model.ColumnPBR],
		TotalAssets:  assets,
		ForeignRatio: values[model.ColumnForeignRatio],
		EquityRatio:  equity,
	}, nil
}

// ParseNumber parses a decimal with optional thousands separators.
func ParseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, stderrors.New("not a finite number")
	}
	return v, nil
}

// EquityRatio is the share of assets not financed by debt, in percent.
// It is 0 when there are no assets.
func EquityRatio(totalAssets, totalDebt float64) float64 {
	if totalAssets == 0 {
		return 0
	}
	return (totalAssets - totalDebt) / totalAssets * 100
}
