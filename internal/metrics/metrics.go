package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceived counts webhook events that parsed successfully.
	EventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "babelbridge_events_received_total",
		Help: "Inbound webhook events accepted from the bridge.",
	})

	// MessagesRelayed counts translated replies delivered back through the bridge.
	MessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "babelbridge_messages_relayed_total",
		Help: "Translated messages sent back through the bridge.",
	})

	// TranslationFailures counts provider errors and timeouts (non-fatal, skipped).
	TranslationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "babelbridge_translation_failures_total",
		Help: "Translation attempts that failed and were skipped.",
	})

	// StoreFailures counts persistence errors on the relay path.
	StoreFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "babelbridge_store_failures_total",
		Help: "Store writes that failed while processing an event.",
	})

	// BridgeSendFailures counts outbound deliveries the bridge rejected.
	BridgeSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "babelbridge_bridge_send_failures_total",
		Help: "Outbound sends the bridge failed to deliver.",
	})
)
