package session

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/MimeLyc/convertctl/internal/api"
)

const (
	// simulated motion never pushes progress past this value
	simulatedCeiling = 90.0
	minIncrement     = 0.2
	incrementSpan    = 0.6
)

// Rand supplies the simulated progress increments. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

type defaultRand struct{}

func (defaultRand) Float64() float64 { return rand.Float64() }

// Progress reconciles backend-reported progress with simulated forward
// motion. The value it holds never decreases between resets.
type Progress struct {
	current float64
	rand    Rand
}

func NewProgress(r Rand) *Progress {
	if r == nil {
		r = defaultRand{}
	}
	return &Progress{rand: r}
}

func (p *Progress) Current() float64 {
	return p.current
}

func (p *Progress) Reset() {
	p.current = 0
}

// Apply folds one status response into the current value and returns it.
func (p *Progress) Apply(state api.JobState) float64 {
	reported := state.ProgressValue()
	if reported < p.current {
		reported = p.current
	}

	if isWorking(state.Status) && reported < simulatedCeiling {
		reported += minIncrement + p.rand.Float64()*incrementSpan
		if reported > simulatedCeiling {
			reported = simulatedCeiling
		}
	}

	p.current = reported
	return p.current
}

// isWorking matches the statuses during which backends tend to report a
// static percentage.
func isWorking(status string) bool {
	lower := strings.ToLower(status)
	return strings.Contains(lower, "compressing") ||
		strings.Contains(lower, "converting") ||
		strings.Contains(lower, "starting")
}

// Display clamps v to [0,100] and rounds it to one decimal for the indicator
// width; percent is the integer floor of that width.
func Display(v float64) (width float64, percent int) {
	width = math.Min(100, math.Max(0, v))
	width = math.Round(width*10) / 10
	return width, int(math.Floor(width))
}
