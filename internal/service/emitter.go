package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/repository"
	"github.com/rongwang/staff-scheduler/internal/utils"
)

// Stream settings for the Redis sink
const (
	EventStream        = "staff:events"
	eventStreamMaxLen  = 10000
	eventSchemaVersion = "v1"
)

// NotificationSpec describes the notification attached to an event
type NotificationSpec struct {
	UserIDs     []string `json:"userIds"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	Type        string   `json:"type"`
	Popup       bool     `json:"popup"`
	RelatedID   string   `json:"relatedId,omitempty"`
	RelatedType string   `json:"relatedType,omitempty"`
}

// Event is a side effect of a state transition. An empty Action skips the
// audit entry; a nil Notify skips notifications.
type Event struct {
	ActorID    string                 `json:"actorId,omitempty"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Notify     *NotificationSpec      `json:"notify,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// Emitter receives events after the transition they describe has committed.
// Emit never fails: sinks log and swallow their own errors.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// StoreEmitter persists audit and notification rows through the repository.
// Each write is its own statement outside any business transaction.
type StoreEmitter struct {
	repo   repository.Repository
	logger *utils.Logger
}

func NewStoreEmitter(repo repository.Repository, logger *utils.Logger) *StoreEmitter {
	return &StoreEmitter{repo: repo, logger: logger}
}

func (e *StoreEmitter) Emit(ctx context.Context, ev Event) {
	if ev.Action != "" {
		entry := &models.AuditLog{
			Action:     ev.Action,
			EntityType: ev.EntityType,
			EntityID:   ev.EntityID,
			Details:    encodeDetails(ev.Details),
		}
		if ev.ActorID != "" {
			actor := ev.ActorID
			entry.UserID = &actor
		}
		if err := e.repo.CreateAuditLog(ctx, entry); err != nil {
			e.logger.Errorf("audit write failed for %s %s/%s: %v", ev.Action, ev.EntityType, ev.EntityID, err)
		}
	}

	if ev.Notify == nil {
		return
	}
	for _, userID := range ev.Notify.UserIDs {
		n := &models.Notification{
			UserID:      userID,
			Title:       ev.Notify.Title,
			Message:     ev.Notify.Message,
			Type:        ev.Notify.Type,
			IsPopup:     ev.Notify.Popup,
			RelatedID:   ev.Notify.RelatedID,
			RelatedType: ev.Notify.RelatedType,
		}
		if n.Type == "" {
			n.Type = "info"
		}
		if err := e.repo.CreateNotification(ctx, n); err != nil {
			e.logger.Errorf("notification write failed for user %s (%s): %v", userID, ev.Action, err)
		}
	}
}

func encodeDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return ""
	}
	b, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprintf("%v", details)
	}
	return string(b)
}

// RedisPublisher appends events to a capped Redis stream for external consumers
type RedisPublisher struct {
	rdb    *redis.Client
	stream string
	logger *utils.Logger
}

// NewRedisPublisher creates a publisher from a redis:// URL
func NewRedisPublisher(redisURL string, logger *utils.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisPublisher{
		rdb:    redis.NewClient(opts),
		stream: EventStream,
		logger: logger,
	}, nil
}

// Ping checks the connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *RedisPublisher) Emit(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Errorf("failed to marshal event %s: %v", ev.Action, err)
		return
	}

	result := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: eventStreamMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload":        string(payload),
			"action":         ev.Action,
			"published_at":   ev.OccurredAt.Unix(),
			"schema_version": eventSchemaVersion,
		},
	})
	if result.Err() != nil {
		p.logger.Errorf("failed to publish event %s to stream: %v", ev.Action, result.Err())
	}
}

// Close closes the Redis client connection
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// MultiEmitter fans an event out to several sinks in order
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ctx context.Context, ev Event) {
	for _, e := range m {
		e.Emit(ctx, ev)
	}
}
