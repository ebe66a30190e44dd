/*
 * file: user.go
 * package: domain
 * description:
 *     Defines the persisted account entities: the user record and its
 *     single active refresh session. These are the only two tables this
 *     core owns; room and match state is in-memory only (see room.go).
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Never mutated by this core beyond creation.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// RefreshSession is the single active refresh-token row for a user.
// UserID carries a unique index so at most one session can exist per user;
// login and rotation both overwrite this row in place rather than inserting
// a new one.
type RefreshSession struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"userId"`
	RefreshTokenHash string     `gorm:"size:64;index;not null" json:"-"`
	ExpiresAt        time.Time  `gorm:"not null" json:"expiresAt"`
	RevokedAt        *time.Time `json:"revokedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
