// Package cost estimates the monetary cost of a backend response from its
// pricing profile and approximate size.
package cost

import (
	"math"

	"github.com/choruschat/chorus/backend"
)

// charsPerToken is the fixed heuristic ratio: one token per four characters.
// This is an approximation, not exact tokenization.
const charsPerToken = 4

// Estimate returns the estimated USD cost of a response, rounded to six
// decimal places. The token count is approximated as len(response)/4 and
// charged against both the input and output rates. Estimate never fails; any
// degenerate pricing input yields 0.
func Estimate(p backend.Pricing, response string) float64 {
	tokens := float64(len(response) / charsPerToken)
	usd := (tokens/1000)*p.InputPerK + (tokens/1000)*p.OutputPerK
	if math.IsNaN(usd) || math.IsInf(usd, 0) || usd < 0 {
		return 0
	}
	return math.Round(usd*1e6) / 1e6
}
