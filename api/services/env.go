package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"pingpoint/db"
	"pingpoint/logger"
	"pingpoint/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Domain event routing keys.
const (
	EventConnectionCreated   = "connection.created"
	EventValidationRequested = "validation.requested"
	EventValidationApproved  = "validation.approved"
	EventValidationDeclined  = "validation.declined"
	EventValidationExpired   = "validation.expired"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// EventPublisher delivers domain events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

// Env carries the collaborators shared by every service.
type Env struct {
	DB     *gorm.DB
	Log    *slog.Logger
	Events EventPublisher
	Clock  Clock
}

func (e Env) withDefaults() Env {
	if e.Log == nil {
		e.Log = logger.Discard()
	}
	if e.Events == nil {
		e.Events = noopPublisher{}
	}
	if e.Clock == nil {
		e.Clock = systemClock{}
	}
	return e
}

func (e Env) now() time.Time {
	return e.Clock.Now().UTC()
}

func (e Env) read(ctx context.Context) *gorm.DB {
	return db.Read(ctx, e.DB)
}

func (e Env) write(ctx context.Context) *gorm.DB {
	return db.Write(ctx, e.DB)
}

func (e Env) dialect() string {
	return db.Dialect(e.DB)
}

// fail passes domain errors through and logs anything else before wrapping it.
func (e Env) fail(op string, err error) error {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	e.Log.Error("store failure", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

// publish sends an event after commit. Failures are logged only.
func (e Env) publish(ctx context.Context, routingKey string, payload any) {
	if err := e.Events.Publish(ctx, routingKey, payload); err != nil {
		e.Log.Warn("event publish failed", "event", routingKey, "error", err)
	}
}

// forUpdate locks the selected rows where the dialect supports it.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if db.Dialect(tx) == db.DriverPostgres {
		return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return tx
}

// Services is the registry handed to the HTTP layer.
type Services struct {
	Profiles    *ProfileService
	Locations   *LocationService
	Pings       *PingService
	Connections *ConnectionService
	Validations *ValidationService
}

func New(env Env) *Services {
	env = env.withDefaults()
	return &Services{
		Profiles:    NewProfileService(env),
		Locations:   NewLocationService(env),
		Pings:       NewPingService(env),
		Connections: NewConnectionService(env),
		Validations: NewValidationService(env),
	}
}

var uuidV4 = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// ParseID accepts a version 4 UUID in canonical form.
func ParseID(raw string) (uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if !uuidV4.MatchString(raw) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

func requireID(field, raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, ErrMissingField.With("%s is required", field)
	}
	id, ok := ParseID(raw)
	if !ok {
		return uuid.Nil, ErrInvalidRequest.With("%s must be a UUID", field)
	}
	return id, nil
}

func userExists(tx *gorm.DB, id uuid.UUID) (bool, error) {
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func requireUser(tx *gorm.DB, id uuid.UUID) error {
	ok, err := userExists(tx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound.With("user %s does not exist", id)
	}
	return nil
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func displayName(name *string, email string) string {
	if name != nil && strings.TrimSpace(*name) != "" {
		return *name
	}
	return email
}
