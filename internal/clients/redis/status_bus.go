package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

// StatusEvent is the wire shape published on every ingest run transition so
// the web layer can stream progress to the user.
type StatusEvent struct {
	RunID     string    `json:"run_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type StatusBus interface {
	Publish(ctx context.Context, evt StatusEvent) error
	StartForwarder(ctx context.Context, onEvent func(evt StatusEvent)) error
	Close() error
}

type statusBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewStatusBus(log *logger.Logger) (StatusBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "ingest_status"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &statusBus{
		log:     log.With("service", "RedisStatusBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *statusBus) Publish(ctx context.Context, evt StatusEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis status bus not initialized")
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *statusBus) StartForwarder(ctx context.Context, onEvent func(evt StatusEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis status bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var evt StatusEvent
				if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
					b.log.Warn("bad redis status payload", "error", err)
					continue
				}
				onEvent(evt)
			}
		}
	}()

	return nil
}

func (b *statusBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
