/*
 * file: repository.go
 * package: repository
 * description:
 *     Provides the concrete GORM implementation of the repository ports.
 *     These structs act as adapters, translating domain repository calls into
 *     database-specific queries, allowing the core business logic to remain
 *     decoupled from storage details.
 */

package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fiveinarow/server/internal/core/domain"
)

/*
 * GormUserRepository is the GORM implementation of the UserRepository port.
 *
 * Responsibilities:
 *   - Create and look up accounts by username or id.
 */
type GormUserRepository struct {
	db *gorm.DB
}

/*
 * NewGormUserRepository constructs a new GormUserRepository instance.
 *
 * Parameters:
 *   - db (*gorm.DB): A GORM database connection instance.
 *
 * Returns:
 *   - *GormUserRepository: A repository instance bound to the database.
 */
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

/*
 * Create inserts a new user record into the database.
 *
 * Parameters:
 *   - user (*domain.User): The user entity to persist.
 *
 * Returns:
 *   - error: An error if creation fails (including a unique-constraint
 *     violation on username, which the caller translates into UsernameTaken).
 */
func (r *GormUserRepository) Create(user *domain.User) error {
	return r.db.Create(user).Error
}

/*
 * GetByUsername retrieves a user by their unique username.
 *
 * Parameters:
 *   - username (string): The account's username.
 *
 * Returns:
 *   - *domain.User: The matching user entity.
 *   - error: gorm.ErrRecordNotFound if no such user exists.
 */
func (r *GormUserRepository) GetByUsername(username string) (*domain.User, error) {
	var user domain.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

/*
 * GetByID retrieves a user by their unique id.
 *
 * Parameters:
 *   - id (uuid.UUID): The account's id.
 *
 * Returns:
 *   - *domain.User: The matching user entity.
 *   - error: gorm.ErrRecordNotFound if no such user exists.
 */
func (r *GormUserRepository) GetByID(id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

/*
 * GormRefreshSessionRepository is the GORM implementation of the
 * RefreshSessionRepository port.
 *
 * Responsibilities:
 *   - Enforce the single-session-per-user invariant via an upsert keyed on
 *     user_id, and serve the hash-lookup path used by refresh/logout.
 */
type GormRefreshSessionRepository struct {
	db *gorm.DB
}

/*
 * NewGormRefreshSessionRepository constructs a new
 * GormRefreshSessionRepository instance.
 *
 * Parameters:
 *   - db (*gorm.DB): A GORM database connection instance.
 *
 * Returns:
 *   - *GormRefreshSessionRepository: A repository instance bound to the database.
 */
func NewGormRefreshSessionRepository(db *gorm.DB) *GormRefreshSessionRepository {
	return &GormRefreshSessionRepository{db: db}
}

/*
 * Upsert creates or overwrites the single session row for session.UserID.
 * Any prior row for the same user (different id, hash, expiry, revocation)
 * is replaced in place so exactly one row per user ever exists.
 *
 * Parameters:
 *   - session (*domain.RefreshSession): The session row to write.
 *
 * Returns:
 *   - error: An error if the write fails.
 */
func (r *GormRefreshSessionRepository) Upsert(session *domain.RefreshSession) error {
	var existing domain.RefreshSession
	err := r.db.Where("user_id = ?", session.UserID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.Create(session).Error
	case err != nil:
		return err
	default:
		existing.ID = session.ID
		existing.RefreshTokenHash = session.RefreshTokenHash
		existing.ExpiresAt = session.ExpiresAt
		existing.RevokedAt = nil
		existing.CreatedAt = session.CreatedAt
		return r.db.Save(&existing).Error
	}
}

/*
 * GetByTokenHash retrieves the session row matching a refresh token's hash.
 *
 * Parameters:
 *   - tokenHash (string): SHA-256 hex digest of the refresh token secret.
 *
 * Returns:
 *   - *domain.RefreshSession: The matching session row.
 *   - error: gorm.ErrRecordNotFound if no such row exists.
 */
func (r *GormRefreshSessionRepository) GetByTokenHash(tokenHash string) (*domain.RefreshSession, error) {
	var session domain.RefreshSession
	err := r.db.Where("refresh_token_hash = ?", tokenHash).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

/*
 * RevokeByTokenHash sets revoked_at to now for the row matching tokenHash.
 * Unknown hashes are treated as already-revoked: the call still succeeds.
 *
 * Parameters:
 *   - tokenHash (string): SHA-256 hex digest of the refresh token secret.
 *
 * Returns:
 *   - error: An error only if the underlying write fails.
 */
func (r *GormRefreshSessionRepository) RevokeByTokenHash(tokenHash string) error {
	return r.db.Model(&domain.RefreshSession{}).
		Where("refresh_token_hash = ?", tokenHash).
		Update("revoked_at", gorm.Expr("now()")).Error
}
