package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Refresh token cookie parameters. The cookie is scoped to the auth
// endpoints so it never rides along on ordinary API calls.
const (
	RefreshCookieName = "wgc_refresh"
	RefreshCookiePath = "/api/auth"
)

const qrTokenTTL = 5 * time.Minute

// Claims are the access-token claims: the username in the standard
// subject plus the numeric user id.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

type qrClaims struct {
	InterfaceName string `json:"interface_name"`
	PublicKey     string `json:"public_key"`
	jwt.RegisteredClaims
}

func (s *Service) newAccessToken(user User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseAccessToken verifies an access token and returns its claims.
func (s *Service) ParseAccessToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewQRToken issues a short-lived token authorizing one peer's QR image.
// The token stands in for the session cookie so a phone can fetch the
// image without being logged in.
func (s *Service) NewQRToken(iface, publicKey string) (string, error) {
	claims := qrClaims{
		InterfaceName: iface,
		PublicKey:     publicKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.now().Add(qrTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseQRToken verifies a QR token and returns the interface name and
// peer public key it was issued for.
func (s *Service) ParseQRToken(token string) (iface, publicKey string, err error) {
	claims := &qrClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.InterfaceName == "" || claims.PublicKey == "" {
		return "", "", ErrInvalidToken
	}
	return claims.InterfaceName, claims.PublicKey, nil
}

func (s *Service) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return s.secret, nil
}

// generateToken returns a cryptographically random 32-byte hex string.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashRefreshToken derives the storable form of a refresh token. Only
// hashes hit the database, so a leaked database cannot mint sessions.
func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
