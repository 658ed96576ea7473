package sqlstore

import (
	"time"
)

type gormStream struct {
	ID         string `gorm:"primaryKey"`
	Name       string `gorm:"index"`
	State      int
	Version    int64
	Generation int
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName returns gorm table name
func (gs *gormStream) TableName() string { return "stream" }

// gormEvent is a single stored envelope. Deleting a stream bumps its
// generation and flags the rows, so $all (sequence order) stays append only.
type gormEvent struct {
	Sequence      uint64 `gorm:"autoIncrement;primaryKey"`
	ID            string `gorm:"index"`
	StreamID      string `gorm:"index:idx_optimistic_check,unique;index"`
	Generation    int    `gorm:"index:idx_optimistic_check,unique"`
	StreamVersion int64  `gorm:"index:idx_optimistic_check,unique"`
	Type          string
	ContentType   string
	Tenant        *string
	Envelope      []byte
	Deleted       bool      `gorm:"index"`
	OccurredOn    time.Time `gorm:"autoCreateTime"`
}

// TableName returns gorm table name
func (ge *gormEvent) TableName() string { return "event" }
