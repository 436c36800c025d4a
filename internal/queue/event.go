// Package queue defines the session audit events exchanged over RabbitMQ
// and the consumer that writes them to a log file.
package queue

import (
	"time"

	"github.com/iliyamo/inventory-admin/internal/model"
)

// DefaultQueue is the durable queue session events travel on.
const DefaultQueue = "session.events"

// EventType is login or logout.
type EventType string

const (
	EventLogin  EventType = "login"
	EventLogout EventType = "logout"
)

// SessionEvent is published whenever a session starts or ends on the
// server.  It carries the identity from the token, never the token.
type SessionEvent struct {
	Type     EventType  `json:"type"`
	UserID   uint64     `json:"user_id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	At       time.Time  `json:"at"`
}

// NewSessionEvent builds an event for claims at time at.
func NewSessionEvent(typ EventType, claims model.Claims, at time.Time) SessionEvent {
	return SessionEvent{
		Type:     typ,
		UserID:   claims.ID,
		Username: claims.Username,
		Role:     claims.Role,
		At:       at.UTC(),
	}
}

func (e SessionEvent) valid() bool {
	return (e.Type == EventLogin || e.Type == EventLogout) && e.UserID != 0 && e.Role.Valid()
}
