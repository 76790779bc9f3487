package anomaly

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Detector flags consumption deltas that spike far above a sensor's
// recent history. Flagged readings are still persisted; the reason is
// recorded alongside the reading for later review.
type Detector struct {
	spikeThreshold            decimal.Decimal
	minDataPointsForDetection int
}

// NewDetector creates a new anomaly detector with the specified thresholds
func NewDetector(spikeThreshold float64, minDataPointsForDetection int) *Detector {
	return &Detector{
		spikeThreshold:            decimal.NewFromFloat(spikeThreshold),
		minDataPointsForDetection: minDataPointsForDetection,
	}
}

// DetectSpike checks a delta against the rolling average of the sensor's
// recent deltas. It needs at least the configured number of data points.
func (d *Detector) DetectSpike(delta decimal.Decimal, historicalDeltas []decimal.Decimal) (bool, string) {
	if len(historicalDeltas) < d.minDataPointsForDetection {
		return false, ""
	}

	sum := decimal.Zero
	for _, v := range historicalDeltas {
		sum = sum.Add(v)
	}
	average := sum.Div(decimal.NewFromInt(int64(len(historicalDeltas))))

	if average.IsPositive() && delta.GreaterThan(d.spikeThreshold.Mul(average)) {
		return true, fmt.Sprintf("sudden spike detected: delta %s exceeds %sx rolling average %s",
			delta.StringFixed(2), d.spikeThreshold.String(), average.StringFixed(2))
	}

	return false, ""
}
