// Package kafka publishes joined flight records to a sink topic for
// downstream persistence and analytics consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/flightwx-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces joined records to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the sink topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes joined records in a single
// WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, records []domain.JoinedFlightRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a joined record into a Kafka message. The key
// groups a carrier's legs for one origin-day onto one partition.
func serializeToMessage(rec domain.JoinedFlightRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize joined record: %w", err)
	}

	key := fmt.Sprintf("%s|%s|%s",
		rec.Flight.FlightDate.Format("2006-01-02"), rec.Flight.Carrier, rec.Flight.Origin)

	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "origin", Value: []byte(rec.Flight.Origin)},
			{Key: "processed_at", Value: []byte(rec.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
