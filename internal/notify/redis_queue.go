package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultQueueKey = "eventflow:notifications"
	popTimeout      = 5 * time.Second
)

// RedisQueue pushes notifications onto a Redis list consumed by Worker.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

// Worker pops queued notifications and hands them to the Deliverer.
type Worker struct {
	client    *redis.Client
	key       string
	deliverer *Deliverer
	logger    *slog.Logger
}

func NewWorker(client *redis.Client, key string, deliverer *Deliverer, logger *slog.Logger) *Worker {
	if key == "" {
		key = DefaultQueueKey
	}
	return &Worker{client: client, key: key, deliverer: deliverer, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Notification worker started", "queue", w.key)
	for {
		if ctx.Err() != nil {
			w.logger.Info("Notification worker stopped")
			return
		}

		res, err := w.client.BRPop(ctx, popTimeout, w.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("Failed to pop notification", "error", err)
			time.Sleep(time.Second)
			continue
		}

		// BRPop returns the key followed by the value.
		if len(res) != 2 {
			continue
		}
		w.handle(ctx, []byte(res[1]))
	}
}

func (w *Worker) handle(ctx context.Context, payload []byte) {
	n, err := decode(payload)
	if err != nil {
		w.logger.Error("Dropping malformed notification", "error", err)
		return
	}
	if err := w.deliverer.Deliver(context.WithoutCancel(ctx), n); err != nil {
		w.logger.Error("Failed to deliver notification",
			"kind", n.Kind,
			"event_id", n.Event.ID,
			"error", err,
		)
	}
}

func decode(payload []byte) (models.Notification, error) {
	var n models.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return n, fmt.Errorf("decode notification: %w", err)
	}
	if n.Kind == "" {
		return n, errors.New("notification kind missing")
	}
	return n, nil
}
