package jwt

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestExpiresAtReadsExpClaim(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)
	tok := signed(t, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})

	got, err := ExpiresAt(tok)
	if err != nil {
		t.Fatalf("ExpiresAt: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("expected %v, got %v", exp, got)
	}
}

func TestExpiresAtIgnoresSignature(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1900000000}`))
	tok := "eyJhbGciOiJSUzk5OSJ9." + payload + ".not-a-signature"

	got, err := ExpiresAt(tok)
	if err != nil {
		t.Fatalf("ExpiresAt: %v", err)
	}
	if got.Unix() != 1_900_000_000 {
		t.Fatalf("unexpected expiry %v", got)
	}
}

func TestExpiresAtMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"two segments":   "a.b",
		"bad base64":     "a.%%%.c",
		"not json":       "a." + base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".c",
		"array payload":  "a." + base64.RawURLEncoding.EncodeToString([]byte("[1]")) + ".c",
		"string exp":     "a." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":"soon"}`)) + ".c",
		"opaque":         "d8f1c6a0b2e34f6c9e1a",
		"four segments":  "a.b.c.d",
		"null payload":   "a." + base64.RawURLEncoding.EncodeToString([]byte("null")) + ".c",
		"whitespace tok": "   ",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ExpiresAt(tok)
			if !errors.Is(err, ErrMalformedToken) {
				t.Fatalf("expected ErrMalformedToken, got %v", err)
			}
		})
	}
}

func TestExpiresAtMissingExp(t *testing.T) {
	tok := signed(t, jwt.MapClaims{"sub": "u1"})
	if _, err := ExpiresAt(tok); !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("expected ErrNoExpiry, got %v", err)
	}
}

func TestDecodeClaims(t *testing.T) {
	iat := time.Unix(1_800_000_000, 0)
	exp := iat.Add(15 * time.Minute)
	tok := signed(t, jwt.MapClaims{"sub": "u1", "iat": iat.Unix(), "exp": exp.Unix(), "roles": []string{"admin"}})

	c, err := Decode(tok)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Subject != "u1" || !c.ExpiresAt.Equal(exp) || !c.IssuedAt.Equal(iat) {
		t.Fatalf("unexpected claims %+v", c)
	}
	if _, ok := c.Payload["roles"]; !ok {
		t.Fatal("expected custom claim in payload")
	}
}
