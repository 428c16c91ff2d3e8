package services

import (
	"context"
	"errors"
	"log"
	"time"

	"smartcage-backend/internal/cache"
	"smartcage-backend/internal/database"
	"smartcage-backend/internal/metrics"
	"smartcage-backend/internal/models"
)

// ClickHouseSink persists prediction records
type ClickHouseSink struct {
	db *database.ClickHouseDB
}

func NewClickHouseSink(db *database.ClickHouseDB) *ClickHouseSink {
	return &ClickHouseSink{db: db}
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Save(ctx context.Context, rec models.PredictionRecord) error {
	return s.db.SavePrediction(ctx, rec)
}

// LiveFeedSink publishes records as JSON on a Redis pub/sub channel
type LiveFeedSink struct {
	cache   *cache.Service
	channel string
}

func NewLiveFeedSink(c *cache.Service, channel string) *LiveFeedSink {
	return &LiveFeedSink{cache: c, channel: channel}
}

func (s *LiveFeedSink) Name() string { return "redis" }

func (s *LiveFeedSink) Save(ctx context.Context, rec models.PredictionRecord) error {
	return s.cache.Publish(ctx, s.channel, rec)
}

// ErrSinkBusy is returned when an AsyncSink queue is full and the record is dropped
var ErrSinkBusy = errors.New("sink queue full")

// AsyncSink moves a slow sink off the processing loop.
// Save only enqueues; Start delivers records with a per-record timeout.
type AsyncSink struct {
	sink    Sink
	records chan models.PredictionRecord
	timeout time.Duration
}

func NewAsyncSink(sink Sink, buffer int, timeout time.Duration) *AsyncSink {
	if buffer <= 0 {
		buffer = 100
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncSink{
		sink:    sink,
		records: make(chan models.PredictionRecord, buffer),
		timeout: timeout,
	}
}

func (a *AsyncSink) Name() string { return a.sink.Name() }

// Save queues the record without blocking
func (a *AsyncSink) Save(_ context.Context, rec models.PredictionRecord) error {
	select {
	case a.records <- rec:
		return nil
	default:
		return ErrSinkBusy
	}
}

// Start delivers queued records until the context is cancelled
func (a *AsyncSink) Start(ctx context.Context) {
	log.Printf("Sink %s: Starting...", a.sink.Name())
	for {
		select {
		case <-ctx.Done():
			log.Printf("Sink %s: Shutting down...", a.sink.Name())
			return
		case rec := <-a.records:
			saveCtx, cancel := context.WithTimeout(ctx, a.timeout)
			err := a.sink.Save(saveCtx, rec)
			cancel()
			if err != nil {
				metrics.SinkFailures.WithLabelValues(a.sink.Name()).Inc()
				log.Printf("Sink %s: Failed to save record: %v", a.sink.Name(), err)
			}
		}
	}
}
