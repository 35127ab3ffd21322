// Package event publishes auth lifecycle events for downstream dashboard
// services (activity feed, notifications). Publishing is best effort: a
// broker outage never fails the auth operation that triggered the event.
package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/calliri/hearth/pkg/kafka"
	"github.com/calliri/hearth/pkg/logger"
)

const (
	topicUserEvents   = "hearth.auth.users"
	topicDeviceEvents = "hearth.auth.devices"
	topicInviteEvents = "hearth.auth.invites"

	source = "hearth"
)

// Publisher is the subset of the Kafka producer the auth services use.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Producer emits auth domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates an event producer. publisher may be nil, in which
// case all emits are dropped, which is how single-node deployments without
// Kafka run.
func NewProducer(publisher Publisher, l *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: l}
}

// UserRegistered is emitted when an invite is consumed into a new account.
type UserRegistered struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// PasswordEstablished is emitted on first-login password setup.
type PasswordEstablished struct {
	UserID string `json:"user_id"`
}

// PasswordChanged is emitted when an existing password is replaced.
type PasswordChanged struct {
	UserID         string `json:"user_id"`
	DevicesRevoked int64  `json:"devices_revoked"`
}

// DeviceRegistered is emitted when a device joins the registry.
type DeviceRegistered struct {
	DeviceID string `json:"device_id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
}

// DeviceRevoked is emitted when a device's refresh token is invalidated.
type DeviceRevoked struct {
	DeviceID string `json:"device_id"`
	UserID   string `json:"user_id"`
	ByUserID string `json:"by_user_id"`
}

// InviteCreated is emitted when an admin issues a new invite.
type InviteCreated struct {
	InviteID  string    `json:"invite_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (p *Producer) UserRegistered(ctx context.Context, e UserRegistered) {
	p.emit(ctx, topicUserEvents, "auth.user_registered", e.UserID, "user", e)
}

func (p *Producer) PasswordEstablished(ctx context.Context, e PasswordEstablished) {
	p.emit(ctx, topicUserEvents, "auth.password_established", e.UserID, "user", e)
}

func (p *Producer) PasswordChanged(ctx context.Context, e PasswordChanged) {
	p.emit(ctx, topicUserEvents, "auth.password_changed", e.UserID, "user", e)
}

func (p *Producer) DeviceRegistered(ctx context.Context, e DeviceRegistered) {
	p.emit(ctx, topicDeviceEvents, "auth.device_registered", e.DeviceID, "device", e)
}

func (p *Producer) DeviceRevoked(ctx context.Context, e DeviceRevoked) {
	p.emit(ctx, topicDeviceEvents, "auth.device_revoked", e.DeviceID, "device", e)
}

func (p *Producer) InviteCreated(ctx context.Context, e InviteCreated) {
	p.emit(ctx, topicInviteEvents, "auth.invite_created", e.InviteID, "invite", e)
}

func (p *Producer) emit(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) {
	if p.publisher == nil {
		return
	}

	evt, err := kafka.NewEvent(eventType, aggregateID, aggregateType, source, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	evt.CorrelationID = logger.CorrelationIDFromContext(ctx)

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}
