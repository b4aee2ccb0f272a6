// Package auth manages users, password verification, and the two-token
// session scheme: short-lived JWT access tokens plus rotating refresh
// tokens stored hashed in the database.
package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors. The HTTP layer maps these to status codes.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrRateLimited        = errors.New("too many login attempts")
	ErrSetupComplete      = errors.New("setup already completed")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrUserNotFound       = errors.New("user not found")
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
	minPasswordLen  = 8

	loginAttemptLimit  = 5
	loginAttemptWindow = time.Minute
)

// bcryptCost is the work factor used when hashing passwords.
// Lowered in tests to keep them fast.
var bcryptCost = bcrypt.DefaultCost

// User is the API-facing account representation. Password hashes never
// leave this package.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	LastLoginAt time.Time `json:"last_login_at,omitzero"`
}

// Session is the result of a successful login or refresh. The refresh
// token travels only in an HttpOnly cookie, never in the JSON body.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`

	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// Service implements authentication against the users and refresh_tokens
// tables.
type Service struct {
	db      *sql.DB
	secret  []byte
	now     func() time.Time
	limiter *rateLimiter
}

// NewService creates an auth service signing tokens with secret.
func NewService(db *sql.DB, secret []byte) *Service {
	return NewServiceWithClock(db, secret, time.Now)
}

// NewServiceWithClock injects the clock for tests.
func NewServiceWithClock(db *sql.DB, secret []byte, now func() time.Time) *Service {
	return &Service{
		db:      db,
		secret:  secret,
		now:     now,
		limiter: newRateLimiter(loginAttemptLimit, loginAttemptWindow, now),
	}
}

// SetupRequired reports whether no account exists yet.
func (s *Service) SetupRequired() (bool, error) {
	count, err := s.countUsers()
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Setup creates the initial admin account. It only works while the users
// table is empty.
func (s *Service) Setup(username, password string) (User, error) {
	count, err := s.countUsers()
	if err != nil {
		return User{}, err
	}
	if count > 0 {
		return User{}, ErrSetupComplete
	}
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidCredentials)
	}
	if len(password) < minPasswordLen {
		return User{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, err
	}
	res, err := s.db.Exec(`
		INSERT INTO users (username, password_hash, is_admin) VALUES (?, ?, 1)
	`, username, string(hash))
	if err != nil {
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return s.UserByID(id)
}

// Login verifies credentials and issues a session. Every attempt from an
// IP counts against the rate limit, successful or not.
func (s *Service) Login(username, password, ip string) (*Session, error) {
	if !s.limiter.Allow(ip) {
		return nil, ErrRateLimited
	}

	user, hash, err := s.userByUsername(username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if _, err := s.db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, s.now().Unix(), user.ID); err != nil {
		return nil, err
	}
	user.LastLoginAt = time.Unix(s.now().Unix(), 0).UTC()
	return s.issueSession(user)
}

// Refresh rotates a refresh token: the presented token's row is deleted
// and a fresh session is issued. A rotated, expired, or unknown token
// yields ErrInvalidToken, which also catches replay of stolen tokens.
func (s *Service) Refresh(refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	hash := hashRefreshToken(refreshToken)

	var (
		userID    int64
		expiresAt int64
	)
	err := s.db.QueryRow(`
		SELECT user_id, expires_at FROM refresh_tokens WHERE token_hash = ?
	`, hash).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	// Rotation: the presented token is single-use.
	if _, err := s.db.Exec(`DELETE FROM refresh_tokens WHERE token_hash = ?`, hash); err != nil {
		return nil, err
	}
	if time.Unix(expiresAt, 0).Before(s.now()) {
		return nil, ErrInvalidToken
	}

	user, err := s.UserByID(userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return s.issueSession(user)
}

// Logout deletes the presented refresh token. Unknown tokens are ignored.
func (s *Service) Logout(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM refresh_tokens WHERE token_hash = ?`, hashRefreshToken(refreshToken))
	return err
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes every refresh token of the user so stolen cookies die with the
// old password.
func (s *Service) ChangePassword(userID int64, current, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}

	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM users WHERE id = ?`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, string(newHash), userID); err != nil {
		return err
	}
	_, err = s.db.Exec(`DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	return err
}

// UserByID loads a user by primary key.
func (s *Service) UserByID(id int64) (User, error) {
	var (
		user      User
		isAdmin   int
		createdAt int64
		lastLogin sql.NullInt64
	)
	err := s.db.QueryRow(`
		SELECT id, username, is_admin, created_at, last_login_at
		FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Username, &isAdmin, &createdAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	user.IsAdmin = isAdmin != 0
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	if lastLogin.Valid {
		user.LastLoginAt = time.Unix(lastLogin.Int64, 0).UTC()
	}
	return user, nil
}

// Users returns every account, ordered by id. Password hashes stay behind.
func (s *Service) Users() ([]User, error) {
	rows, err := s.db.Query(`
		SELECT id, username, is_admin, created_at, last_login_at
		FROM users ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			user      User
			isAdmin   int
			createdAt int64
			lastLogin sql.NullInt64
		)
		if err := rows.Scan(&user.ID, &user.Username, &isAdmin, &createdAt, &lastLogin); err != nil {
			return nil, err
		}
		user.IsAdmin = isAdmin != 0
		user.CreatedAt = time.Unix(createdAt, 0).UTC()
		if lastLogin.Valid {
			user.LastLoginAt = time.Unix(lastLogin.Int64, 0).UTC()
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Service) userByUsername(username string) (User, string, error) {
	var (
		user      User
		hash      string
		isAdmin   int
		createdAt int64
		lastLogin sql.NullInt64
	)
	err := s.db.QueryRow(`
		SELECT id, username, password_hash, is_admin, created_at, last_login_at
		FROM users WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &hash, &isAdmin, &createdAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, "", ErrUserNotFound
	}
	if err != nil {
		return User{}, "", err
	}
	user.IsAdmin = isAdmin != 0
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	if lastLogin.Valid {
		user.LastLoginAt = time.Unix(lastLogin.Int64, 0).UTC()
	}
	return user, hash, nil
}

func (s *Service) countUsers() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (s *Service) issueSession(user User) (*Session, error) {
	access, err := s.newAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := generateToken()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(refreshTokenTTL)
	if _, err := s.db.Exec(`
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)
	`, user.ID, hashRefreshToken(refresh), expiresAt.Unix()); err != nil {
		return nil, err
	}

	return &Session{
		AccessToken:      access,
		TokenType:        "bearer",
		ExpiresIn:        int(accessTokenTTL.Seconds()),
		User:             user,
		RefreshToken:     refresh,
		RefreshExpiresAt: expiresAt,
	}, nil
}
