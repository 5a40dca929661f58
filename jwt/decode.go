package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken is returned when a token is not three dot-separated
	// segments with a base64url JSON object in the middle.
	ErrMalformedToken = errors.New("jwt: malformed token")
	// ErrNoExpiry is returned by ExpiresAt when the payload has no exp claim.
	ErrNoExpiry = errors.New("jwt: token has no exp claim")
)

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Claims is the subset of registered claims the client reads, plus the full
// payload for display.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Payload   jwt.MapClaims
}

// Decode returns the payload claims of token without checking its signature.
func Decode(token string) (Claims, error) {
	payload, err := decodePayload(token)
	if err != nil {
		return Claims{}, err
	}

	out := Claims{Payload: payload}
	if out.Subject, err = payload.GetSubject(); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	exp, err := payload.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if exp != nil {
		out.ExpiresAt = exp.Time
	}
	iat, err := payload.GetIssuedAt()
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, nil
}

// ExpiresAt returns the exp claim of token without checking its signature.
func ExpiresAt(token string) (time.Time, error) {
	payload, err := decodePayload(token)
	if err != nil {
		return time.Time{}, err
	}
	exp, err := payload.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

func decodePayload(token string) (jwt.MapClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	raw, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformedToken)
	}
	return claims, nil
}
