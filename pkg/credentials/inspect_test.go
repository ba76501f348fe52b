package credentials

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestInspectAccessTokenReadsBackendClaims(t *testing.T) {
	t.Parallel()
	issuedAt := time.Unix(1700000000, 0).UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "0b9f6f0e-1111-4c3a-9a49-5a0c1f1f0001",
		"username": "rider",
		"email":    "rider@example.com",
		"role":     "admin",
		"type":     "access",
		"iat":      issuedAt.Unix(),
		"exp":      issuedAt.Add(15 * time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte("unknown-to-the-client"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	info, err := InspectAccessToken(signed)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Username != "rider" || info.Role != "admin" || info.Type != "access" {
		t.Fatalf("unexpected claims: %+v", info)
	}
	if !info.ExpiresAt.Equal(issuedAt.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", info.ExpiresAt)
	}
	if info.Expired(issuedAt.Add(time.Minute)) {
		t.Fatalf("expected token valid one minute after issue")
	}
	if !info.Expired(issuedAt.Add(time.Hour)) {
		t.Fatalf("expected token expired after an hour")
	}
}

func TestInspectAccessTokenRejectsGarbage(t *testing.T) {
	t.Parallel()
	if _, err := InspectAccessToken("not-a-jwt"); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
	if _, err := InspectAccessToken(""); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
}

func TestFingerprintIsStableAndShort(t *testing.T) {
	t.Parallel()
	first := Fingerprint("A1")
	if first != Fingerprint("A1") {
		t.Fatalf("expected stable fingerprint")
	}
	if len(first) != fingerprintLength {
		t.Fatalf("expected %d characters, got %d", fingerprintLength, len(first))
	}
	if first == Fingerprint("A2") {
		t.Fatalf("expected different tokens to differ")
	}
	if Fingerprint("") != "" {
		t.Fatalf("expected empty fingerprint for empty token")
	}
}
