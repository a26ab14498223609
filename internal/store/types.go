package store

import (
	"errors"
	"time"
)

var (
	ErrEmptyRecipient = errors.New("store: recipient is empty")
	ErrEmptyMessage   = errors.New("store: message is empty")
	ErrMessageTooLong = errors.New("store: message exceeds max length")
)

// MaxMessageLen bounds the persisted message text. Matches the longest body
// the outbound messaging provider accepts in one message.
const MaxMessageLen = 1600

// Config configures the reminder database.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

type Status string

const (
	StatusActive   Status = "active"
	StatusSent     Status = "sent"
	StatusCanceled Status = "canceled"
	StatusFailed   Status = "failed"
)

// Terminal reports whether a status can never transition again.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusCanceled || s == StatusFailed
}

type Kind string

const (
	// KindSingle is a one-off reminder armed at an absolute fire-time.
	KindSingle Kind = "single"
	// KindLead is a member of a lead-sequence spaced before a target date.
	KindLead Kind = "lead"
)

// Reminder is one scheduled, one-time notification.
//
// FireAt and CreatedAt are interpreted in the server's local time zone;
// they are stored as Unix milliseconds so the zone choice stays a pure
// presentation concern.
type Reminder struct {
	ID        string
	Recipient string
	Message   string
	FireAt    time.Time
	Kind      Kind
	Status    Status
	CreatedAt time.Time
}

// Draft is the not-yet-persisted form of a reminder.
type Draft struct {
	Recipient string
	Message   string
	FireAt    time.Time
	Kind      Kind
}

func (d Draft) validate() error {
	if d.Recipient == "" {
		return ErrEmptyRecipient
	}
	if d.Message == "" {
		return ErrEmptyMessage
	}
	if len(d.Message) > MaxMessageLen {
		return ErrMessageTooLong
	}
	return nil
}
