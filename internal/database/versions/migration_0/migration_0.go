// Package migration_0 holds a snapshot of the initial sessions/messages
// schema so later migrations can evolve the tables without depending on the
// current model structs.
package migration_0

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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

	Sender  string         `gorm:"size:10;not null;index"`
	Content string         `gorm:"type:text;not null"`
	Context datatypes.JSON `gorm:"type:jsonb"`

	Status         string         `gorm:"size:20;not null;index"`
	PartialContent sql.NullString `gorm:"type:text"`
	ErrorMessage   sql.NullString `gorm:"type:text"`

	Timestamp time.Time `gorm:"not null;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func Migration(txn *gorm.DB) error {
	return txn.AutoMigrate(&Session{}, &Message{})
}

func Rollback(txn *gorm.DB) error {
	return txn.Migrator().DropTable(&Message{}, &Session{})
}
