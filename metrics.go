package authcore

import "github.com/pgclosets/authcore/internal/metrics"

// MetricsSnapshot exposes engine counters keyed by stable names, plus the
// admission latency histogram when enabled (8 buckets, ≤5ms through +Inf).
type MetricsSnapshot struct {
	Counters            map[string]uint64
	AdmitLatencyBuckets []uint64
}

var metricNames = map[metrics.ID]string{
	metrics.TokenIssued:      "token_issued",
	metrics.TokenInvalid:     "token_invalid",
	metrics.TokenRefreshed:   "token_refreshed",
	metrics.CSRFRejected:     "csrf_rejected",
	metrics.RateAllowed:      "rate_allowed",
	metrics.RateDenied:       "rate_denied",
	metrics.BackendDegraded:  "rate_backend_degraded",
	metrics.BackendRecovered: "rate_backend_recovered",
	metrics.SessionCreated:   "session_created",
	metrics.AuthRejected:     "auth_rejected",
}

func snapshotFrom(s metrics.Snapshot) MetricsSnapshot {
	out := MetricsSnapshot{Counters: make(map[string]uint64, len(metricNames))}
	for id, name := range metricNames {
		out.Counters[name] = s.Counters[id]
	}
	if buckets, ok := s.Histograms[metrics.AdmitLatency]; ok {
		out.AdmitLatencyBuckets = buckets
	}
	return out
}
