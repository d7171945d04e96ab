package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// Redis publishes collaborator calls as Commands on RendererChannel.
type Redis struct {
	redis  *redis.Client
	logger *log.Logger
	now    func() time.Time
}

var _ tts.Collaborator = (*Redis)(nil)

// NewRedis returns a collaborator publishing through client.
func NewRedis(client *redis.Client, logger *log.Logger) *Redis {
	return &Redis{
		redis:  client,
		logger: logger.With("component", "backend"),
		now:    time.Now,
	}
}

func (r *Redis) EnqueueRemote(ctx context.Context, id, user, message string) error {
	return r.publish(ctx, Command{Op: OpEnqueue, ID: id, User: user, Message: message})
}

func (r *Redis) UpdateSettings(ctx context.Context, s tts.ControlSettings) error {
	return r.publish(ctx, Command{Op: OpSettings, Settings: &s})
}

func (r *Redis) SetEnabled(ctx context.Context, enabled bool) error {
	return r.publish(ctx, Command{Op: OpEnabled, Enabled: &enabled})
}

func (r *Redis) ClearQueue(ctx context.Context) error {
	return r.publish(ctx, Command{Op: OpClear})
}

func (r *Redis) Skip(ctx context.Context, id string) error {
	return r.publish(ctx, Command{Op: OpSkip, ID: id})
}

func (r *Redis) Remove(ctx context.Context, id string) error {
	return r.publish(ctx, Command{Op: OpRemove, ID: id})
}

func (r *Redis) publish(ctx context.Context, cmd Command) error {
	cmd.Timestamp = r.now()
	data, err := json.Marshal(cmd)
	if err != nil {
		return &tts.CommunicationError{Op: string(cmd.Op), Cause: fmt.Errorf("marshal command: %w", err)}
	}

	if err := r.redis.Publish(ctx, RendererChannel, data).Err(); err != nil {
		return &tts.CommunicationError{Op: string(cmd.Op), Cause: fmt.Errorf("publish command: %w", err)}
	}

	r.logger.Debug("published command", "op", cmd.Op, "id", cmd.ID)
	return nil
}

// Subscribe decodes JSON messages from channel into T and hands them to fn
// until ctx is canceled. Malformed messages are logged and skipped.
func Subscribe[T any](ctx context.Context, client *redis.Client, channel string, logger *log.Logger, fn func(context.Context, T)) error {
	pubsub := client.Subscribe(ctx, channel)
	defer pubsub.Close() //nolint:errcheck

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	logger.Info("subscribed", "channel", channel)

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive %s: %w", channel, err)
		}

		var v T
		if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
			logger.Error("unmarshal message", "channel", channel, "err", err)
			continue
		}
		fn(ctx, v)
	}
}
