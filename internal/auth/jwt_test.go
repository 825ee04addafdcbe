package auth

import (
	"errors"
	"testing"
	"time"

	"classroom-session-service/internal/domain"
)

func TestGenerateValidateRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)

	token, err := svc.Generate("user-1", "Alice", domain.RoleStudent)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	p := claims.Principal()
	if p.ID != "user-1" || p.DisplayName != "Alice" || p.Role != domain.RoleStudent {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", time.Hour).Generate("user-1", "Alice", domain.RoleTeacher)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewJWTService("secret-b", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService("test-secret", -time.Minute)
	token, err := svc.Generate("user-1", "Alice", domain.RoleStudent)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)
	token, err := svc.Generate("user-1", "Alice", domain.Role("admin"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for unknown role, got %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)
	if _, err := svc.Validate("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}
