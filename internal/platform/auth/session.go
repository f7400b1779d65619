// Package auth is the admin gate: one shared clinic password exchanged for
// a short-lived signed session token.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL = 8 * time.Hour
	sessionIssuer     = "dentboard"
	adminSubject      = "admin"
)

var (
	ErrGateDisabled    = errors.New("admin gate is not configured")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid session token")
)

// Claims is the payload of an admin session token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// GateConfig carries the admin credentials. PasswordHash (bcrypt) wins over
// the plain Password when both are set.
type GateConfig struct {
	Password     string
	PasswordHash string
	Secret       string
	TTL          time.Duration
}

// Gate checks the admin password and signs and verifies session tokens.
type Gate struct {
	password []byte
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewGate(cfg GateConfig) *Gate {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Gate{
		password: []byte(cfg.Password),
		hash:     []byte(cfg.PasswordHash),
		secret:   []byte(cfg.Secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Enabled reports whether a password and a signing secret are configured.
func (g *Gate) Enabled() bool {
	return len(g.secret) > 0 && (len(g.hash) > 0 || len(g.password) > 0)
}

// Session is an issued admin token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login exchanges the clinic password for a signed session.
func (g *Gate) Login(password string) (*Session, error) {
	if !g.Enabled() {
		return nil, ErrGateDisabled
	}
	if !g.checkPassword(password) {
		return nil, ErrInvalidPassword
	}

	now := g.now()
	exp := now.Add(g.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   adminSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: adminSubject,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Session{Token: token, ExpiresAt: exp}, nil
}

func (g *Gate) checkPassword(password string) bool {
	if len(g.hash) > 0 {
		return bcrypt.CompareHashAndPassword(g.hash, []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare(g.password, []byte(password)) == 1
}

// Verify parses a session token and checks its signature, issuer and expiry.
func (g *Gate) Verify(token string) (*Claims, error) {
	if !g.Enabled() {
		return nil, ErrGateDisabled
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !parsed.Valid || claims.Role != adminSubject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword produces the bcrypt value for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
