// Package kafka publishes job result summaries so downstream consumers can
// react to completed extractions without polling the output directory.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/floodhapi/rofsw-extract/internal/config"
	"github.com/floodhapi/rofsw-extract/internal/domain"
)

// Writer produces job result messages to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured results topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishResult serializes and publishes one completed job result.
func (w *Writer) PublishResult(ctx context.Context, result *domain.JobResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish job result: %w", err)
	}
	w.logger.Info("published job result", "job", result.JobName, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a JobResult into a Kafka message keyed by job
// name. The archive reference rides in a header so consumers can pick up
// the zip without parsing the body.
func serializeToMessage(result *domain.JobResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize job result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.JobName),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "postcode", Value: []byte(result.Postcode)},
			{Key: "zip_filename", Value: []byte(result.ZipFilename)},
		},
	}, nil
}
