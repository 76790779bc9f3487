package anomaly_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aglayrton/fluxo-agua/internal/anomaly"
)

const (
	testSpikeThreshold            = 3.0
	testMinDataPointsForDetection = 3
)

func deltas(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.RequireFromString(v))
	}
	return out
}

func TestDetectSpike_SuddenSpike(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	historical := deltas("10.00", "10.50", "9.80", "10.20", "9.90")
	value := decimal.RequireFromString("35.00") // More than 3x the average (~10)

	isAnomaly, reason := detector.DetectSpike(value, historical)

	if !isAnomaly {
		t.Error("Expected anomaly for sudden spike")
	}

	if reason == "" {
		t.Error("Expected reason for spike anomaly")
	}
}

func TestDetectSpike_NormalValue(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	historical := deltas("10.00", "10.50", "9.80", "10.20")
	value := decimal.RequireFromString("10.30")

	isAnomaly, reason := detector.DetectSpike(value, historical)

	if isAnomaly {
		t.Errorf("Expected no anomaly, but got: %s", reason)
	}
}

func TestDetectSpike_InsufficientData(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	historical := deltas("10.00", "10.50") // Less than MinDataPointsForDetection
	value := decimal.RequireFromString("100.00")

	isAnomaly, _ := detector.DetectSpike(value, historical)

	if isAnomaly {
		t.Error("Should not detect spike with insufficient historical data")
	}
}

func TestDetectSpike_ZeroAverage(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	historical := deltas("0", "0", "0")
	value := decimal.RequireFromString("5.00")

	isAnomaly, _ := detector.DetectSpike(value, historical)

	if isAnomaly {
		t.Error("Should not flag spikes against a zero average")
	}
}

func TestDetectSpike_EmptyHistorical(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	isAnomaly, _ := detector.DetectSpike(decimal.RequireFromString("10.00"), nil)

	if isAnomaly {
		t.Error("Should not detect spike without history")
	}
}
