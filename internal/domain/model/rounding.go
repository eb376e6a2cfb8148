package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type RoundingMode string

const (
	RoundHalfUp   RoundingMode = "HALF_UP"
	RoundHalfEven RoundingMode = "HALF_EVEN"
	RoundDown     RoundingMode = "DOWN"
	RoundUp       RoundingMode = "UP"
	RoundFloor    RoundingMode = "FLOOR"
	RoundCeiling  RoundingMode = "CEILING"
)

func ParseRoundingMode(s string) (RoundingMode, error) {
	mode := RoundingMode(strings.ToUpper(strings.TrimSpace(s)))
	switch mode {
	case RoundHalfUp, RoundHalfEven, RoundDown, RoundUp, RoundFloor, RoundCeiling:
		return mode, nil
	}
	return "", fmt.Errorf("unknown rounding mode %q", s)
}

// Apply rounds d to scale decimal places. HALF_UP rounds ties away from zero,
// DOWN and UP are toward and away from zero.
func (m RoundingMode) Apply(d decimal.Decimal, scale int32) decimal.Decimal {
	switch m {
	case RoundHalfEven:
		return d.RoundBank(scale)
	case RoundDown:
		return d.RoundDown(scale)
	case RoundUp:
		return d.RoundUp(scale)
	case RoundFloor:
		return d.RoundFloor(scale)
	case RoundCeiling:
		return d.RoundCeil(scale)
	default:
		return d.Round(scale)
	}
}
