package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-feed-be/internal/database"
	"github.com/isdelr/ender-feed-be/internal/models"
	"github.com/rs/zerolog/log"
)

// EventPublisher forwards activity events to an external stream.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, userID *string) error
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
}

// EventService provides business logic for the activity log.
type EventService struct {
	db        *database.DB
	publisher EventPublisher
}

// NewEventService creates a new EventService. publisher may be nil.
func NewEventService(db *database.DB, publisher EventPublisher) *EventService {
	return &EventService{db: db, publisher: publisher}
}

// CreateEvent logs a new event to the database and publishes it.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, userID *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO events (id, type, level, message, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)"),
		event.ID, event.Type, event.Level, event.Message, event.UserID, database.ToUnix(event.CreatedAt))
	if err != nil {
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to publish activity event")
		}
	}
	return nil
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		s.db.Rebind("SELECT id, type, level, message, user_id, created_at FROM events ORDER BY created_at DESC, id DESC LIMIT ?"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			event     models.Event
			createdAt int64
		)
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.UserID, &createdAt); err != nil {
			return nil, err
		}
		event.CreatedAt = database.FromUnix(createdAt)
		events = append(events, event)
	}
	return events, rows.Err()
}

// recordEvent writes to the activity log without failing the caller's operation.
func recordEvent(ctx context.Context, events EventServiceProvider, eventType, level, message string, userID string) {
	if events == nil {
		return
	}
	var uid *string
	if userID != "" {
		uid = &userID
	}
	if err := events.CreateEvent(ctx, eventType, level, message, uid); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to record activity event")
	}
}
