/*
 * file: auth_service.go
 * package: services
 * description:
 *     Password hashing/verification, signed short-lived access tokens, and
 *     opaque rotating refresh tokens backed by a server-side session row.
 */

package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/fiveinarow/server/internal/core/domain"
	"github.com/fiveinarow/server/internal/core/ports"
)

const minPasswordLength = 6

// Claims are the contents of a verified access token.
type Claims struct {
	UserID   uuid.UUID
	Username string
	IssuedAt time.Time
	ExpireAt time.Time
}

// Tokens is the pair handed back to a client on login or refresh.
type Tokens struct {
	AccessToken           string
	AccessTokenExpiresIn  int64
	RefreshToken          string
	RefreshTokenExpiresIn int64
}

// accessClaims is the JWT claim set signed into the access token.
type accessClaims struct {
	jwt.RegisteredClaims
	UID uuid.UUID `json:"uid"`
}

/*
 * AuthService provides account registration, login, token refresh, and
 * logout, plus access-token verification for the HTTP and socket surfaces.
 *
 * Fields:
 *   - users (ports.UserRepository): Backing store for accounts.
 *   - sessions (ports.RefreshSessionRepository): Backing store for refresh sessions.
 *   - jwtSecret ([]byte): Symmetric secret used to sign and verify access tokens.
 *   - accessTTL (time.Duration): Access token lifetime.
 *   - refreshTTL (time.Duration): Refresh token lifetime.
 *   - rotateThreshold (time.Duration): Remaining-lifetime floor below which
 *     a refresh rotates the refresh secret instead of reusing it.
 *   - kick (func(username string)): Hook invoked after a successful login
 *     to evict any prior live socket for the same username.
 */
type AuthService struct {
	users    ports.UserRepository
	sessions ports.RefreshSessionRepository

	jwtSecret       []byte
	accessTTL       time.Duration
	refreshTTL      time.Duration
	rotateThreshold time.Duration

	kick func(username string)
}

/*
 * NewAuthService constructs a new AuthService instance.
 *
 * Parameters:
 *   - users (ports.UserRepository): The account repository implementation.
 *   - sessions (ports.RefreshSessionRepository): The refresh-session repository implementation.
 *   - jwtSecret ([]byte): The symmetric secret for signing access tokens.
 *   - accessTTL (time.Duration): The access token lifetime.
 *   - refreshTTL (time.Duration): The refresh token lifetime.
 *   - rotateThreshold (time.Duration): The rotation threshold, clamped to [0, refreshTTL].
 *
 * Returns:
 *   - *AuthService: A new service instance configured with the provided dependencies.
 */
func NewAuthService(users ports.UserRepository, sessions ports.RefreshSessionRepository, jwtSecret []byte, accessTTL, refreshTTL, rotateThreshold time.Duration) *AuthService {
	if rotateThreshold < 0 {
		rotateThreshold = 0
	}
	if rotateThreshold > refreshTTL {
		rotateThreshold = refreshTTL
	}
	return &AuthService{
		users:           users,
		sessions:        sessions,
		jwtSecret:       jwtSecret,
		accessTTL:       accessTTL,
		refreshTTL:      refreshTTL,
		rotateThreshold: rotateThreshold,
	}
}

/*
 * SetKickHook registers the callback invoked after a successful login, used
 * to evict any prior live socket for the same username before tokens are
 * returned to the caller.
 *
 * Parameters:
 *   - kick (func(username string)): The eviction callback.
 *
 * Returns:
 *   - None.
 */
func (s *AuthService) SetKickHook(kick func(username string)) {
	s.kick = kick
}

/*
 * Register creates a new account.
 *
 * Parameters:
 *   - username (string): The desired username, trimmed before validation.
 *   - password (string): The plaintext password; must be at least 6 characters.
 *
 * Returns:
 *   - error: *Error{Kind: BadRequest} on empty username or short password,
 *     *Error{Kind: UsernameTaken} on uniqueness violation, *Error{Kind: Internal}
 *     on any other storage failure, or nil on success.
 */
func (s *AuthService) Register(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return NewError(BadRequest, "username must not be empty")
	}
	if len(password) < minPasswordLength {
		return NewError(BadRequest, "password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return NewError(Internal, "failed to hash password")
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(user); err != nil {
		if isUniqueViolation(err) {
			return NewError(UsernameTaken, "username already taken")
		}
		return NewError(Internal, "failed to create account")
	}
	return nil
}

/*
 * Login verifies credentials and mints a fresh token pair, upserting the
 * caller's single refresh-session row and evicting any prior live socket.
 *
 * Parameters:
 *   - username (string): The account's username.
 *   - password (string): The plaintext password to verify.
 *
 * Returns:
 *   - *Tokens: The newly minted access/refresh token pair.
 *   - error: *Error{Kind: InvalidCredentials} on unknown user or bad
 *     password, *Error{Kind: Internal} on storage failure.
 */
func (s *AuthService) Login(username, password string) (*Tokens, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(InvalidCredentials, "invalid username or password")
		}
		return nil, NewError(Internal, "failed to look up account")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, NewError(InvalidCredentials, "invalid username or password")
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	if s.kick != nil {
		s.kick(user.Username)
	}
	return tokens, nil
}

/*
 * Refresh exchanges a refresh token for a new access token, rotating the
 * refresh secret when its remaining lifetime has dropped to or below the
 * configured threshold.
 *
 * Parameters:
 *   - refreshToken (string): The opaque refresh secret presented by the client.
 *
 * Returns:
 *   - *Tokens: The new token pair (refresh token unchanged unless rotated).
 *   - error: *Error{Kind: Unauthorized} on unknown/revoked token,
 *     *Error{Kind: TokenExpired} on an expired session.
 */
func (s *AuthService) Refresh(refreshToken string) (*Tokens, error) {
	hash := hashRefreshToken(refreshToken)
	session, err := s.sessions.GetByTokenHash(hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(Unauthorized, "unknown refresh token")
		}
		return nil, NewError(Internal, "failed to look up session")
	}
	if session.RevokedAt != nil {
		return nil, NewError(Unauthorized, "refresh token revoked")
	}

	now := time.Now()
	if !now.Before(session.ExpiresAt) {
		return nil, NewError(TokenExpired, "refresh token expired")
	}

	user, err := s.users.GetByID(session.UserID)
	if err != nil {
		return nil, NewError(Internal, "failed to look up account")
	}

	accessToken, err := s.signAccessToken(user)
	if err != nil {
		return nil, NewError(Internal, "failed to sign access token")
	}

	remaining := session.ExpiresAt.Sub(now)
	if remaining > s.rotateThreshold {
		return &Tokens{
			AccessToken:           accessToken,
			AccessTokenExpiresIn:  int64(s.accessTTL.Seconds()),
			RefreshToken:          refreshToken,
			RefreshTokenExpiresIn: int64(remaining.Seconds()),
		}, nil
	}

	newSecret, newHash, err := newRefreshSecret()
	if err != nil {
		return nil, NewError(Internal, "failed to generate refresh token")
	}
	session.ID = uuid.New()
	session.RefreshTokenHash = newHash
	session.ExpiresAt = now.Add(s.refreshTTL)
	session.RevokedAt = nil
	session.CreatedAt = now
	if err := s.sessions.Upsert(session); err != nil {
		return nil, NewError(Internal, "failed to persist rotated session")
	}

	return &Tokens{
		AccessToken:           accessToken,
		AccessTokenExpiresIn:  int64(s.accessTTL.Seconds()),
		RefreshToken:          newSecret,
		RefreshTokenExpiresIn: int64(s.refreshTTL.Seconds()),
	}, nil
}

/*
 * VerifyAccessToken validates the signature and expiry of an access token.
 *
 * Parameters:
 *   - token (string): The bearer token to verify.
 *
 * Returns:
 *   - *Claims: The decoded claims on success.
 *   - error: *Error{Kind: TokenExpired} if the token has expired,
 *     *Error{Kind: Unauthorized} for any other validation failure.
 */
func (s *AuthService) VerifyAccessToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, NewError(TokenExpired, "access token expired")
		}
		return nil, NewError(Unauthorized, "invalid access token")
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return nil, NewError(Unauthorized, "invalid access token")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || time.Now().After(exp.Time) {
		return nil, NewError(TokenExpired, "access token expired")
	}

	var issuedAt time.Time
	if iat, _ := claims.GetIssuedAt(); iat != nil {
		issuedAt = iat.Time
	}

	return &Claims{
		UserID:   claims.UID,
		Username: claims.Subject,
		IssuedAt: issuedAt,
		ExpireAt: exp.Time,
	}, nil
}

/*
 * Logout revokes the session identified by a refresh token. Unknown tokens
 * succeed silently, and repeated calls are idempotent.
 *
 * Parameters:
 *   - refreshToken (string): The opaque refresh secret to revoke.
 *
 * Returns:
 *   - error: *Error{Kind: Internal} on storage failure, nil otherwise.
 */
func (s *AuthService) Logout(refreshToken string) error {
	hash := hashRefreshToken(refreshToken)
	if err := s.sessions.RevokeByTokenHash(hash); err != nil {
		return NewError(Internal, "failed to revoke session")
	}
	return nil
}

/*
 * issueTokens mints a fresh access/refresh pair and upserts the caller's
 * single session row.
 *
 * Parameters:
 *   - user (*domain.User): The account to issue tokens for.
 *
 * Returns:
 *   - *Tokens: The newly minted token pair.
 *   - error: *Error on signing or storage failure.
 */
func (s *AuthService) issueTokens(user *domain.User) (*Tokens, error) {
	accessToken, err := s.signAccessToken(user)
	if err != nil {
		return nil, NewError(Internal, "failed to sign access token")
	}

	secret, hash, err := newRefreshSecret()
	if err != nil {
		return nil, NewError(Internal, "failed to generate refresh token")
	}

	now := time.Now()
	session := &domain.RefreshSession{
		ID:               uuid.New(),
		UserID:           user.ID,
		RefreshTokenHash: hash,
		ExpiresAt:        now.Add(s.refreshTTL),
		RevokedAt:        nil,
		CreatedAt:        now,
	}
	if err := s.sessions.Upsert(session); err != nil {
		return nil, NewError(Internal, "failed to persist session")
	}

	return &Tokens{
		AccessToken:           accessToken,
		AccessTokenExpiresIn:  int64(s.accessTTL.Seconds()),
		RefreshToken:          secret,
		RefreshTokenExpiresIn: int64(s.refreshTTL.Seconds()),
	}, nil
}

/*
 * signAccessToken signs a new HMAC-SHA256 JWT carrying the user's identity.
 *
 * Parameters:
 *   - user (*domain.User): The account to sign a token for.
 *
 * Returns:
 *   - string: The compact JWT string.
 *   - error: A signing error, if any.
 */
func (s *AuthService) signAccessToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
		UID: user.ID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

/*
 * newRefreshSecret generates a fresh 32-byte cryptographically random
 * refresh secret and its SHA-256 hex digest.
 *
 * Parameters:
 *   - None.
 *
 * Returns:
 *   - string: The URL-safe, unpadded base64 secret handed to the client.
 *   - string: The hex-encoded SHA-256 hash stored server-side.
 *   - error: An error if the system randomness source fails.
 */
func newRefreshSecret() (secret, hash string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	hash = hashRefreshToken(secret)
	return secret, hash, nil
}

/*
 * hashRefreshToken computes the hex-encoded SHA-256 digest of a refresh
 * secret, the only form ever persisted.
 *
 * Parameters:
 *   - token (string): The refresh secret to hash.
 *
 * Returns:
 *   - string: The hex-encoded digest.
 */
func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

/*
 * isUniqueViolation reports whether err looks like a unique-constraint
 * violation on the users.username index. Error text is matched rather than
 * a driver-specific error code so this works across the pg and sqlite
 * drivers GORM can sit on.
 *
 * Parameters:
 *   - err (error): The storage error to classify.
 *
 * Returns:
 *   - bool: true if err indicates a uniqueness violation.
 */
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
