// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName holds the guest session token.
const CookieName = "auth_token"

var errMissingSubject = errors.New("missing sub in jwt")

// Sessions mints and verifies guest identity tokens. The token's subject is
// an opaque, stable user id; nothing else is derived from it.
type Sessions struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration // 0 => tokens never expire
}

// NewSessions generates a fresh ed25519 key pair. Tokens issued by one process
// are not valid in the next unless the keys are loaded with NewSessionsFromPath.
func NewSessions(ttl time.Duration) (*Sessions, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Sessions{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// NewSessionsFromPath reads a raw ed25519 key pair from disk.
func NewSessionsFromPath(privatePath, publicPath string, ttl time.Duration) (*Sessions, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 key sizes")
	}
	return &Sessions{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		ttl:        ttl,
	}, nil
}

// CreateJWT signs a token with "sub" = userID.
func (s *Sessions) CreateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
	}
	if s.ttl > 0 {
		claims["exp"] = time.Now().Add(s.ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// AuthenticateJWT verifies a token and returns its subject.
func (s *Sessions) AuthenticateJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errMissingSubject
	}
	return sub, nil
}

// UserFromRequest returns the guest user id carried by the request's cookie.
func (s *Sessions) UserFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	userID, err := s.AuthenticateJWT(c.Value)
	if err != nil {
		return "", false
	}
	return userID, true
}

// EnsureGuestUser returns the request's guest user id, minting a new one and
// setting the cookie when the request has none or an invalid one.
func (s *Sessions) EnsureGuestUser(w http.ResponseWriter, r *http.Request) (string, error) {
	if userID, ok := s.UserFromRequest(r); ok {
		return userID, nil
	}

	userID := uuid.NewString()
	token, err := s.CreateJWT(userID)
	if err != nil {
		return "", fmt.Errorf("failed to create guest JWT: %w", err)
	}
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
	if s.ttl > 0 {
		cookie.MaxAge = int(s.ttl.Seconds())
	}
	http.SetCookie(w, cookie)
	return userID, nil
}
