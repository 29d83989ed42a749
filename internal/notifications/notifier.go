// Package notifications delivers member-facing notifications: transactional
// email through a pluggable transport and realtime events over Redis pub/sub
// and websockets.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"guildhall/internal/middleware"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	broadcastChannel  = "notifications:broadcast"
)

// Realtime event types.
const (
	EventReferralStatusChanged = "referral_status_changed"
	EventReferralMatched       = "referral_matched"
	EventApplicationReviewed   = "application_reviewed"
)

// Event is the JSON envelope pushed to websocket clients.
type Event struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, payload map[string]any) Event {
	return Event{Type: eventType, Payload: payload, CreatedAt: time.Now().UTC()}
}

// Notifier publishes realtime events into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier. A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a payload to a single user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uuid.UUID, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishEvent marshals ev and publishes it to every listed user.
func (n *Notifier) PublishEvent(ctx context.Context, ev Event, userIDs ...uuid.UUID) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if err := n.PublishUser(ctx, id, string(body)); err != nil {
			return err
		}
	}
	return nil
}

// PublishBroadcast sends a payload to all connected users.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, broadcastChannel, payload).Err()
}

// StartPatternSubscriber subscribes to the user and broadcast channels and calls
// onMessage for each message until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", broadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uuid.UUID) string {
	return userChannelPrefix + userID.String()
}

// ParseUserChannel extracts the user id from a channel produced by UserChannel.
func ParseUserChannel(channel string) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
