// Package trend classifies short-term mood direction from a chronological
// mood history and produces a qualitative emotional summary. It is pure:
// same input, same output, no I/O.
package trend

// Direction is the classified short-term mood trend.
type Direction string

const (
	Improving Direction = "improving"
	Stable    Direction = "stable"
	Declining Direction = "declining"
)

// windowSize is the number of samples in each comparison window.
const windowSize = 7

// deadZone is the margin between window averages below which the trend is
// reported as stable, so noisy histories don't flap between directions.
const deadZone = 0.5

// moodValues maps the fixed mood scale to numeric values. Unrecognized
// labels fall back to the midpoint rather than failing.
var moodValues = map[string]float64{
	"stressed": 1,
	"sad":      2,
	"neutral":  3,
	"happy":    4,
	"amazing":  5,
}

const midpoint = 3

// Value returns the numeric value for a mood label.
func Value(mood string) float64 {
	if v, ok := moodValues[mood]; ok {
		return v
	}
	return midpoint
}

// Classify determines the trend over a chronological mood history (oldest
// first). The last windowSize samples are compared against the windowSize
// samples before them; when that older window is empty, the recent window's
// own average is the baseline, so short histories always classify stable.
// Fewer than 2 samples is insufficient data and defaults to Stable.
func Classify(history []string) Direction {
	if len(history) < 2 {
		return Stable
	}

	recentStart := len(history) - windowSize
	if recentStart < 0 {
		recentStart = 0
	}
	recent := history[recentStart:]
	older := history[maxInt(0, recentStart-windowSize):recentStart]

	recentAvg := mean(recent)
	olderAvg := recentAvg
	if len(older) > 0 {
		olderAvg = mean(older)
	}

	switch {
	case recentAvg > olderAvg+deadZone:
		return Improving
	case recentAvg < olderAvg-deadZone:
		return Declining
	default:
		return Stable
	}
}

// Summary messages. Thresholds apply to the full-history mean and are fixed.
const (
	summaryStart  = "Start tracking your mood to see your emotional journey."
	summaryHigh   = "You've been feeling consistently positive. Whatever you're doing, it's working."
	summaryStable = "Your mood has been steady. A stable baseline is a good place to build from."
	summaryLow    = "It's been a tougher stretch. Trying a new activity or reaching out to someone often helps."
)

// Summarize produces the qualitative emotional summary from the FULL
// history's mean, independent of the trend windows.
func Summarize(history []string) string {
	if len(history) == 0 {
		return summaryStart
	}
	m := mean(history)
	switch {
	case m >= 4:
		return summaryHigh
	case m >= 3:
		return summaryStable
	default:
		return summaryLow
	}
}

func mean(moods []string) float64 {
	var sum float64
	for _, m := range moods {
		sum += Value(m)
	}
	return sum / float64(len(moods))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
