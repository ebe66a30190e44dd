/*
 * file: ports.go
 * package: ports
 * description:
 * 			This file defines the interfaces that form the boundaries of the application's core logic (hexagon).
 * 			These ports allow the core services to be decoupled from specific infrastructure implementations
 */

package ports

import (
	"github.com/google/uuid"

	"github.com/fiveinarow/server/internal/core/domain"
)

/* UserRepository defines the contract for account persistence.
 * Any data storage solution must implement this interface to be used by the auth service.
 */
type UserRepository interface {
	Create(user *domain.User) error
	GetByUsername(username string) (*domain.User, error)
	GetByID(id uuid.UUID) (*domain.User, error)
}

// RefreshSessionRepository defines the contract for refresh-session persistence.
// Implementations must enforce one row per user (a unique index on user_id).
type RefreshSessionRepository interface {
	// Upsert creates or overwrites the single session row for session.UserID.
	Upsert(session *domain.RefreshSession) error
	GetByTokenHash(tokenHash string) (*domain.RefreshSession, error)
	RevokeByTokenHash(tokenHash string) error
}
