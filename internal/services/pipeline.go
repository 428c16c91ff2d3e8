package services

import (
	"context"
	"errors"
	"log"

	"smartcage-backend/internal/aggregator"
	"smartcage-backend/internal/decoder"
	"smartcage-backend/internal/metrics"
	"smartcage-backend/internal/models"
)

// Publisher sends outbound payloads to the transport
type Publisher interface {
	PublishJSON(topic string, v interface{}) error
}

// Sink receives every stored prediction record (persistence, live feeds)
type Sink interface {
	Name() string
	Save(ctx context.Context, rec models.PredictionRecord) error
}

// Pipeline runs one message through decode, infer, record and publish
type Pipeline struct {
	decoder   *decoder.Decoder
	engine    *InferenceEngine
	store     *aggregator.Store
	publisher Publisher
	outbound  map[models.Channel]string
	sinks     []Sink
}

// PipelineConfig holds the collaborators of a Pipeline
type PipelineConfig struct {
	Decoder   *decoder.Decoder
	Engine    *InferenceEngine
	Store     *aggregator.Store
	Publisher Publisher
	Outbound  map[models.Channel]string // channel -> prediction topic
}

// NewPipeline creates a new pipeline
func NewPipeline(config PipelineConfig) *Pipeline {
	return &Pipeline{
		decoder:   config.Decoder,
		engine:    config.Engine,
		store:     config.Store,
		publisher: config.Publisher,
		outbound:  config.Outbound,
	}
}

// AddSink registers a sink notified after each record is stored
func (p *Pipeline) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// Handle processes one delivery to completion.
// ok is false when the message was ignored or dropped before inference.
func (p *Pipeline) Handle(ctx context.Context, msg models.Message) (rec models.PredictionRecord, ok bool) {
	reading, err := p.decoder.Decode(msg.Topic, msg.Payload, msg.ReceivedAt)
	if errors.Is(err, decoder.ErrUnknownTopic) {
		metrics.MessagesDropped.WithLabelValues(metrics.DropUnknownTopic).Inc()
		return models.PredictionRecord{}, false
	}
	if err != nil {
		metrics.MessagesDropped.WithLabelValues(metrics.DropDecodeError).Inc()
		log.Printf("Pipeline: Dropping message: %v", err)
		return models.PredictionRecord{}, false
	}

	metrics.MessagesReceived.WithLabelValues(string(reading.Channel)).Inc()
	if decoder.OutOfRange(reading) {
		log.Printf("Pipeline: ldr_value %d outside %d-%d, classifying anyway", reading.LDRValue, models.LDRMin, models.LDRMax)
	}

	rec = p.engine.Infer(reading)

	if err := p.store.Record(rec); err != nil {
		log.Printf("Pipeline: Failed to record prediction: %v", err)
	}
	metrics.Predictions.WithLabelValues(string(rec.Channel), rec.Label, string(rec.Source)).Inc()

	p.publish(rec)

	for _, sink := range p.sinks {
		if err := sink.Save(ctx, rec); err != nil {
			metrics.SinkFailures.WithLabelValues(sink.Name()).Inc()
			log.Printf("Pipeline: Sink %s failed: %v", sink.Name(), err)
		}
	}

	return rec, true
}

// publish sends the outbound payload; failures are logged, the record is already stored
func (p *Pipeline) publish(rec models.PredictionRecord) {
	topic, ok := p.outbound[rec.Channel]
	if !ok || p.publisher == nil {
		return
	}

	if err := p.publisher.PublishJSON(topic, rec.Outbound()); err != nil {
		metrics.PublishFailures.WithLabelValues(string(rec.Channel)).Inc()
		log.Printf("Pipeline: Failed to publish %s prediction: %v", rec.Channel, err)
	}
}
