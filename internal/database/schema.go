package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultSessionName = "New Chat"

// MessageStatus tracks the generation lifecycle of a message. Transitions
// into in_progress/complete/failed are driven by the external generation
// process; the only backward transition is failed/pending -> pending via
// resume.
type MessageStatus string

const (
	StatusPending    MessageStatus = "pending"
	StatusInProgress MessageStatus = "in_progress"
	StatusComplete   MessageStatus = "complete"
	StatusFailed     MessageStatus = "failed"
)

func ParseMessageStatus(s string) (MessageStatus, error) {
	switch MessageStatus(s) {
	case StatusPending, StatusInProgress, StatusComplete, StatusFailed:
		return MessageStatus(s), nil
	default:
		return "", fmt.Errorf("unknown message status '%s'", s)
	}
}

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

func ParseSender(s string) (Sender, error) {
	switch Sender(s) {
	case SenderUser, SenderAI:
		return Sender(s), nil
	default:
		return "", fmt.Errorf("unknown sender '%s'", s)
	}
}

type Session struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Name       string    `gorm:"not null;index"`
	IsFavorite bool      `gorm:"not null;index;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Messages []Message `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

type Message struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	SessionID uuid.UUID `gorm:"type:uuid;not null;index"`

	Sender  Sender         `gorm:"size:10;not null;index"`
	Content string         `gorm:"type:text;not null"`
	Context datatypes.JSON `gorm:"type:jsonb"` // opaque caller-supplied document

	Status         MessageStatus  `gorm:"size:20;not null;index"`
	PartialContent sql.NullString `gorm:"type:text"`
	ErrorMessage   sql.NullString `gorm:"type:text"`

	// Timestamp is the logical message time used for chronological
	// ordering, distinct from CreatedAt/UpdatedAt which track row mutation.
	Timestamp time.Time `gorm:"not null;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AfterFind rejects rows whose persisted enum columns hold values outside
// the closed sets above, so a bad row surfaces as a store-read error
// instead of leaking into the domain.
func (m *Message) AfterFind(*gorm.DB) error {
	if _, err := ParseMessageStatus(string(m.Status)); err != nil {
		return fmt.Errorf("message %s: %w", m.ID, err)
	}
	if _, err := ParseSender(string(m.Sender)); err != nil {
		return fmt.Errorf("message %s: %w", m.ID, err)
	}
	return nil
}
