package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestGate(cfg GateConfig) *Gate {
	g := NewGate(cfg)
	g.now = func() time.Time { return testNow }
	return g
}

func TestGate_Enabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  GateConfig
		want bool
	}{
		{"nothing", GateConfig{}, false},
		{"password without secret", GateConfig{Password: "x"}, false},
		{"secret without password", GateConfig{Secret: "s"}, false},
		{"plain", GateConfig{Password: "x", Secret: "s"}, true},
		{"hash", GateConfig{PasswordHash: "$2a$...", Secret: "s"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewGate(tt.cfg).Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGate_LoginPlainPassword(t *testing.T) {
	g := newTestGate(GateConfig{Password: "molar", Secret: "secret"})

	if _, err := g.Login("incisor"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	s, err := g.Login("molar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := testNow.Add(DefaultSessionTTL); !s.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt, want)
	}
	claims, err := g.Verify(s.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "admin" || claims.Role != "admin" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestGate_LoginBcryptHash(t *testing.T) {
	hash, err := HashPassword("molar")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	g := newTestGate(GateConfig{Password: "ignored", PasswordHash: hash, Secret: "secret"})

	if _, err := g.Login("ignored"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("plain password must not be used when a hash is set, got %v", err)
	}
	if _, err := g.Login("molar"); err != nil {
		t.Errorf("expected login with hashed password, got %v", err)
	}
}

func TestGate_LoginDisabled(t *testing.T) {
	if _, err := NewGate(GateConfig{}).Login("x"); !errors.Is(err, ErrGateDisabled) {
		t.Errorf("expected ErrGateDisabled, got %v", err)
	}
}

func TestGate_VerifyRejects(t *testing.T) {
	g := newTestGate(GateConfig{Password: "molar", Secret: "secret", TTL: time.Hour})
	s, err := g.Login("molar")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	other := newTestGate(GateConfig{Password: "molar", Secret: "other"})
	if _, err := other.Verify(s.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: expected ErrInvalidToken, got %v", err)
	}

	g.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	if _, err := g.Verify(s.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: expected ErrInvalidToken, got %v", err)
	}

	g.now = func() time.Time { return testNow }
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "dentboard",
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
		Role: "viewer",
	})
	tok, _ := forged.SignedString([]byte("secret"))
	if _, err := g.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("non-admin role: expected ErrInvalidToken, got %v", err)
	}

	if _, err := g.Verify("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: expected ErrInvalidToken, got %v", err)
	}
}
