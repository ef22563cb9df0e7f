package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/sharediary/internal/model"
)

const testSecret = "test-secret-for-session-tokens"

var issuedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenIssuer_IssueVerify_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSecret).WithClock(fixedClock(issuedAt))

	token, err := issuer.Issue(42, "user@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if !claims.ExpiresAt.Time.Equal(issuedAt.Add(TokenTTL)) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, issuedAt.Add(TokenTTL))
	}
}

func TestTokenIssuer_Verify_Expiry(t *testing.T) {
	token, err := NewTokenIssuer(testSecret).WithClock(fixedClock(issuedAt)).Issue(1, "")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{"just issued", issuedAt, false},
		{"six days later", issuedAt.Add(6 * 24 * time.Hour), false},
		{"one second before expiry", issuedAt.Add(TokenTTL - time.Second), false},
		{"one second after expiry", issuedAt.Add(TokenTTL + time.Second), true},
		{"thirty days later", issuedAt.Add(30 * 24 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenIssuer(testSecret).WithClock(fixedClock(tt.at)).Verify(token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidToken) {
				t.Errorf("error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestTokenIssuer_Verify_Rejects(t *testing.T) {
	issuer := NewTokenIssuer(testSecret).WithClock(fixedClock(issuedAt))
	valid, err := issuer.Issue(7, "a@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims := Claims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(TokenTTL)),
		},
	}

	otherSecret, _ := NewTokenIssuer("another-secret").WithClock(fixedClock(issuedAt)).Issue(7, "a@example.com")
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))

	noExp := claims
	noExp.ExpiresAt = nil
	withoutExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, noExp).SignedString([]byte(testSecret))

	zeroUser := claims
	zeroUser.UserID = 0
	withZeroUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, zeroUser).SignedString([]byte(testSecret))

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", otherSecret},
		{"alg none", noneAlg},
		{"hs512", hs512},
		{"missing exp", withoutExp},
		{"zero user id", withZeroUser},
		{"tampered payload", tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
			}
			if !errors.Is(err, model.ErrAuthentication) {
				t.Errorf("error should wrap model.ErrAuthentication")
			}
		})
	}
}
