package metrics

import (
	"testing"

	"go.uber.org/zap"
)

func TestMetrics(t *testing.T) {
	logger := zap.NewNop()
	m := New(logger)

	// Test counter increment
	m.IncrementCounter("clicks_recorded_total", "recorded")
	m.IncrementCounter("redirects_total", "redirected")

	// Test high-level methods
	m.RecordClick("duplicate")
	m.RecordRedirect("bad_request")
	m.RecordBotUpdate("command")
	m.RecordReferralQualified()
	m.RecordDailyReset(1704067200)
	m.ObserveShortenerDuration(0.42)
}
