package client

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes acquisition lifecycle events to NATS for
// consumption by the notifications service.
//
// Subject convention: notifications.acq.<event_type>
// Event types: request_submitted, approval_required, request_approved,
// request_rejected, request_returned, advisory_requested, advisory_completed.
//
// All publish operations are non-fatal — errors are logged but never
// propagated to the caller, so notification failures never interrupt
// workflow operations.
type NotificationPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventID       string         `json:"event_id"`
	EventType     string         `json:"event_type"`
	RequestID     int64          `json:"request_id"`
	RequestNumber string         `json:"request_number"`
	ActorID       string         `json:"actor_id,omitempty"`
	Role          string         `json:"role,omitempty"`
	Team          string         `json:"team,omitempty"`
	Severity      string         `json:"severity,omitempty"`
	Category      string         `json:"category,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection disables publishing.
func NewNotificationPublisher(nc *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nc: nc, log: log}
}

// NotifyRole publishes an event addressed to a workflow role (the active
// step's approver).
func (p *NotificationPublisher) NotifyRole(eventType string, requestID int64, requestNumber, role, actorID string, payload map[string]any) {
	p.publish(eventType, &NotificationEvent{
		EventType:     eventType,
		RequestID:     requestID,
		RequestNumber: requestNumber,
		ActorID:       actorID,
		Role:          role,
		Payload:       payload,
	})
}

// NotifyTeam publishes an event addressed to an advisory team.
func (p *NotificationPublisher) NotifyTeam(eventType string, requestID int64, requestNumber, team string, payload map[string]any) {
	p.publish(eventType, &NotificationEvent{
		EventType:     eventType,
		RequestID:     requestID,
		RequestNumber: requestNumber,
		Team:          team,
		Payload:       payload,
	})
}

// NotifyRequestor publishes an event addressed back to the requestor.
func (p *NotificationPublisher) NotifyRequestor(eventType string, requestID int64, requestNumber, actorID string, payload map[string]any) {
	p.publish(eventType, &NotificationEvent{
		EventType:     eventType,
		RequestID:     requestID,
		RequestNumber: requestNumber,
		ActorID:       actorID,
		Payload:       payload,
	})
}

func (p *NotificationPublisher) publish(eventType string, event *NotificationEvent) {
	if p.nc == nil {
		return
	}

	event.EventID = uuid.NewString()
	event.Severity = "info"
	event.Category = "acq_workflow"

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.acq.%s", eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("request_number", event.RequestNumber).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("request_number", event.RequestNumber).
		Msg("notification: event published")
}
