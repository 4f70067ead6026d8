package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/emperorhan/terra-sync/internal/metrics"
	"github.com/emperorhan/terra-sync/internal/store"
	"github.com/redis/go-redis/v9"
)

const subscriberBuffer = 64

// Notifier publishes store changes on a Redis pub/sub channel so every
// API replica can push them to its own clients.
type Notifier struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

var _ store.Notifier = (*Notifier)(nil)

func NewNotifier(url, channel string, logger *slog.Logger) (*Notifier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewNotifierFromClient(client, channel, logger), nil
}

func NewNotifierFromClient(client *redis.Client, channel string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		client:  client,
		channel: channel,
		logger:  logger.With("component", "redis_notifier", "channel", channel),
	}
}

func (n *Notifier) Close() error {
	return n.client.Close()
}

func (n *Notifier) Publish(ctx context.Context, change store.Change) error {
	payload, err := encodeChange(change)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		metrics.NotifyPublishErrors.WithLabelValues("redis").Inc()
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed by the server.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan store.Change, error) {
	sub := n.client.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", n.channel, err)
	}

	out := make(chan store.Change, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				change, err := decodeChange(msg.Payload)
				if err != nil {
					n.logger.Warn("dropping malformed change", "error", err)
					continue
				}
				select {
				case out <- change:
				default:
					n.logger.Debug("subscriber buffer full; change dropped", "token_id", change.TokenID)
				}
			}
		}
	}()
	return out, nil
}

func encodeChange(change store.Change) (string, error) {
	raw, err := json.Marshal(change)
	if err != nil {
		return "", fmt.Errorf("marshal change: %w", err)
	}
	return string(raw), nil
}

func decodeChange(payload string) (store.Change, error) {
	var change store.Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return store.Change{}, fmt.Errorf("unmarshal change: %w", err)
	}
	if change.Table == "" {
		return store.Change{}, fmt.Errorf("change without table")
	}
	return change, nil
}
