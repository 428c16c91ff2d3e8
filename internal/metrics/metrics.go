package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcage_messages_received_total",
		Help: "Total number of MQTT messages received per channel.",
	}, []string{"channel"})
	MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcage_messages_dropped_total",
		Help: "Total number of inbound messages dropped before inference.",
	}, []string{"reason"})
	Predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcage_predictions_total",
		Help: "Total number of prediction records per channel, label and source.",
	}, []string{"channel", "label", "source"})
	InferenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcage_inference_errors_total",
		Help: "Total number of model invocations that failed.",
	}, []string{"channel"})
	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcage_publish_failures_total",
		Help: "Total number of predictions that could not be published.",
	}, []string{"channel"})
	SinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcage_sink_failures_total",
		Help: "Total number of records a downstream sink failed to accept.",
	}, []string{"sink"})
	ModelLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcage_model_loads_total",
		Help: "Total number of model load attempts per channel and result.",
	}, []string{"channel", "result"})
	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartcage_inference_duration_seconds",
		Help:    "Duration of a single inference.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	}, []string{"channel"})
	AdminActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smartcage_admin_session_active",
		Help: "1 when this instance holds the admin session.",
	})
)

// Drop reasons
const (
	DropUnknownTopic = "unknown_topic"
	DropDecodeError  = "decode_error"
)

// Model load results
const (
	LoadOK     = "ok"
	LoadFailed = "failed"
)
