package service

import (
	"math"
	"strings"

	"github.com/samber/lo"
)

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// normalizeTargets uppercases every code and drops blanks. Order and
// duplicates are kept.
func normalizeTargets(targets []string) []string {
	codes := lo.Map(targets, func(code string, _ int) string {
		return normalizeCurrency(code)
	})
	return lo.Filter(codes, func(code string, _ int) bool {
		return code != ""
	})
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
