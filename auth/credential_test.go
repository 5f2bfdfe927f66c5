package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestExpiresSoonWithJWT(t *testing.T) {
	soon := &Credential{AccessToken: signedToken(t, time.Now().Add(10*time.Second))}
	if !soon.ExpiresSoon(time.Minute) {
		t.Fatalf("token expiring in 10s should report ExpiresSoon(1m)")
	}

	later := &Credential{AccessToken: signedToken(t, time.Now().Add(time.Hour))}
	if later.ExpiresSoon(time.Minute) {
		t.Fatalf("token expiring in 1h should not report ExpiresSoon(1m)")
	}
}

func TestExpiresSoonWithOpaqueToken(t *testing.T) {
	opaque := &Credential{AccessToken: "not-a-jwt"}
	if opaque.ExpiresSoon(time.Hour) {
		t.Fatalf("opaque token must never report ExpiresSoon")
	}
	if !opaque.ExpiresAt().IsZero() {
		t.Fatalf("opaque token should have zero expiry")
	}
}

func TestValid(t *testing.T) {
	var nilCred *Credential
	if nilCred.Valid() {
		t.Fatalf("nil credential must not be valid")
	}
	if (&Credential{}).Valid() {
		t.Fatalf("empty credential must not be valid")
	}
	if !(&Credential{AccessToken: "at"}).Valid() {
		t.Fatalf("credential with access token must be valid")
	}
}
