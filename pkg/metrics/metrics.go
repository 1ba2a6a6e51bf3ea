package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveCalls tracks calls the platform has reported answered but not
	// yet terminal. Driven entirely by the event webhook.
	ActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dialer_active_calls",
		Help: "Number of outbound calls currently in progress",
	})

	CallEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialer_call_events_total",
		Help: "Call status callbacks received from the voice platform",
	}, []string{"status"})

	RecordingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialer_recordings_total",
		Help: "Recording-ready callbacks received from the voice platform",
	})

	TokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialer_tokens_issued_total",
		Help: "Capability tokens issued to clients",
	})

	TokenCapRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialer_token_cap_rejections_total",
		Help: "Token requests rejected by the per-user session cap",
	})
)
