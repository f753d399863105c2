package cost

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/choruschat/chorus/backend"
)

func TestEstimate_Deterministic(t *testing.T) {
	// 400 chars -> 100 tokens -> 0.1*1.0 + 0.1*2.0 = 0.3
	p := backend.Pricing{InputPerK: 1.0, OutputPerK: 2.0}
	got := Estimate(p, strings.Repeat("x", 400))
	assert.InDelta(t, 0.3, got, 1e-9)
}

func TestEstimate_EmptyResponse(t *testing.T) {
	p := backend.Pricing{InputPerK: 1.0, OutputPerK: 2.0}
	assert.Zero(t, Estimate(p, ""))
}

func TestEstimate_RoundsToSixDecimals(t *testing.T) {
	p := backend.Pricing{InputPerK: 0.0008, OutputPerK: 0.0032}
	got := Estimate(p, strings.Repeat("a", 123))
	// 30 tokens -> 0.03*0.0008 + 0.03*0.0032 = 0.00012
	assert.InDelta(t, 0.00012, got, 1e-12)
	assert.Equal(t, got, math.Round(got*1e6)/1e6)
}

func TestEstimate_DegeneratePricing(t *testing.T) {
	assert.Zero(t, Estimate(backend.Pricing{InputPerK: math.NaN()}, "abcd"))
	assert.Zero(t, Estimate(backend.Pricing{InputPerK: math.Inf(1)}, "abcd"))
	assert.Zero(t, Estimate(backend.Pricing{InputPerK: -1, OutputPerK: 0}, "abcd"))
}
