package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"service-order-attachments/internal/blobstore"
	"service-order-attachments/internal/model"
)

// Requeuer puts a cleanup message back on the queue with a new attempt count
// once delay has passed.
type Requeuer interface {
	PublishDelayed(ctx context.Context, payload any, delay time.Duration) error
}

// maxRetryDelay caps the doubling retry delay.
const maxRetryDelay = 30 * time.Minute

type disposition int

const (
	dispositionAck disposition = iota
	dispositionDrop
	dispositionRetry
)

// OrphanCleanupWorker deletes blobs whose record insert failed and whose
// immediate delete failed as well.
type OrphanCleanupWorker struct {
	conn        *amqp.Connection
	blobs       blobstore.Store
	requeue     Requeuer
	queueName   string
	maxAttempts int
	retryBase   time.Duration
	logger      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrphanCleanupWorker(conn *amqp.Connection, blobs blobstore.Store, requeue Requeuer, queueName string, maxAttempts int, retryBase time.Duration, logger *slog.Logger) *OrphanCleanupWorker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if retryBase <= 0 {
		retryBase = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OrphanCleanupWorker{
		conn:        conn,
		blobs:       blobs,
		requeue:     requeue,
		queueName:   queueName,
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
		logger:      logger.With(slog.String("worker", "orphan_cleanup")),
	}
}

func (w *OrphanCleanupWorker) Start(ctx context.Context) error {
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

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
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

				switch w.handle(workerCtx, d.Body) {
				case dispositionAck:
					_ = d.Ack(false)
				case dispositionDrop:
					_ = d.Nack(false, false)
				case dispositionRetry:
					_ = d.Nack(false, true)
				}
			}
		}
	}()

	w.logger.Info("worker started", slog.String("queue", w.queueName))
	return nil
}

func (w *OrphanCleanupWorker) handle(ctx context.Context, body []byte) disposition {
	var msg model.OrphanBlob
	if err := json.Unmarshal(body, &msg); err != nil {
		w.logger.Error("decode cleanup message failed", slog.Any("error", err))
		return dispositionDrop
	}
	if _, err := blobstore.CleanKey(msg.Key); err != nil {
		w.logger.Error("cleanup message has invalid key", slog.String("id", msg.ID), slog.Any("error", err))
		return dispositionDrop
	}

	err := w.blobs.Delete(ctx, msg.Key)
	if err == nil || errors.Is(err, blobstore.ErrNotFound) {
		w.logger.Info("orphaned attachment removed",
			slog.String("id", msg.ID),
			slog.String("key", msg.Key),
			slog.Int("attempts", msg.Attempts),
		)
		return dispositionAck
	}

	if msg.Attempts >= w.maxAttempts {
		w.logger.Error("giving up on orphaned attachment",
			slog.String("id", msg.ID),
			slog.String("key", msg.Key),
			slog.Int("attempts", msg.Attempts),
			slog.Any("error", err),
		)
		return dispositionAck
	}

	delay := w.retryDelay(msg.Attempts)
	w.logger.Warn("remove orphaned attachment failed, requeueing",
		slog.String("id", msg.ID),
		slog.String("key", msg.Key),
		slog.Int("attempts", msg.Attempts),
		slog.Duration("delay", delay),
		slog.Any("error", err),
	)
	msg.Attempts++
	if err := w.requeue.PublishDelayed(ctx, msg, delay); err != nil {
		w.logger.Error("requeue cleanup message failed", slog.String("id", msg.ID), slog.Any("error", err))
		return dispositionRetry
	}
	return dispositionAck
}

// retryDelay doubles from retryBase for every failed attempt.
func (w *OrphanCleanupWorker) retryDelay(attempts int) time.Duration {
	delay := w.retryBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return min(delay, maxRetryDelay)
}

func (w *OrphanCleanupWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
