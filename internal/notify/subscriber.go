package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReloadFunc rebuilds the map from the feed
type ReloadFunc func(ctx context.Context) error

// Subscriber reloads the map whenever a message arrives on the reload
// channel. Messages that queue up during a reload are coalesced into one.
type Subscriber struct {
	client  *redis.Client
	channel string
	reload  ReloadFunc
	logger  *zap.Logger
}

// NewClient creates a redis client for addr
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// NewSubscriber creates a new subscriber
func NewSubscriber(client *redis.Client, channel string, reload ReloadFunc, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		client:  client,
		channel: channel,
		reload:  reload,
		logger:  logger.Named("reload_subscriber"),
	}
}

// Run subscribes and handles messages until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed so a bad address fails fast.
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	s.logger.Info("listening for reload notifications", zap.String("channel", s.channel))
	s.consume(ctx, pubsub.Channel())
	return nil
}

func (s *Subscriber) consume(ctx context.Context, messages <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			coalesced := drain(messages)
			s.logger.Info("reload requested",
				zap.String("payload", msg.Payload),
				zap.Int("coalesced", coalesced))

			if err := s.reload(ctx); err != nil {
				s.logger.Error("reload failed", zap.Error(err))
			}
		}
	}
}

// drain discards already queued messages and returns how many there were.
func drain(messages <-chan *redis.Message) int {
	n := 0
	for {
		select {
		case _, ok := <-messages:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Publish announces that the feed has changed
func Publish(ctx context.Context, client *redis.Client, channel, payload string) error {
	if err := client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish reload notification: %w", err)
	}
	return nil
}
