package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docchat/internal/app"
	"docchat/internal/model"
	"docchat/internal/platform/rabbitmq"
)

// Converter turns a staged PDF into a corpus document.
type Converter interface {
	Convert(ctx context.Context, job model.IngestJob) (*app.UploadResult, error)
}

// IngestWorker consumes ingest jobs one at a time. Failed jobs are dropped
// rather than requeued; the staged PDF stays in place for a manual retry.
type IngestWorker struct {
	conn      *amqp.Connection
	converter Converter
	queueName string
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, converter Converter, queueName string) *IngestWorker {
	return &IngestWorker{
		conn:      conn,
		converter: converter,
		queueName: queueName,
		logger:    slog.Default().With("component", "ingest_worker", "queue", queueName),
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					w.logger.Error("ingest job failed", "error", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *IngestWorker) handle(ctx context.Context, body []byte) error {
	var job model.IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode ingest job failed: %w", err)
	}
	if job.FileName == "" {
		return fmt.Errorf("decode ingest job failed: %w", app.ErrInvalidInput)
	}

	result, err := w.converter.Convert(ctx, job)
	if err != nil {
		return fmt.Errorf("convert %s: %w", job.FileName, err)
	}
	w.logger.Info("document ingested", "file", job.FileName, "document", result.Document)
	return nil
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
