package authclient

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/authclient/transport"
)

var (
	// ErrNoRefreshToken is returned by RefreshToken when no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrFeatureDisabled matches every *FeatureDisabledError via errors.Is.
	ErrFeatureDisabled = errors.New("feature disabled")
	// ErrBuilderUsed is returned by a second call to Builder.Build.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrInvalidAuthResponse is returned when an auth response carries no access token.
	ErrInvalidAuthResponse = errors.New("invalid auth response")
	// ErrInvalidConfig matches every *ConfigurationError via errors.Is.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("manager closed")
)

// TransportError is the error type returned for failed API calls.
type TransportError = transport.Error

// Feature names an optional, configuration-gated operation.
type Feature string

const (
	FeatureRegistration      Feature = "registration"
	FeaturePasswordReset     Feature = "password_reset"
	FeatureEmailVerification Feature = "email_verification"
)

// FeatureDisabledError reports a call to an operation whose feature flag is off.
type FeatureDisabledError struct {
	Feature Feature
}

func (e *FeatureDisabledError) Error() string {
	switch e.Feature {
	case FeatureRegistration:
		return "Registration is disabled"
	case FeaturePasswordReset:
		return "Password reset is disabled"
	case FeatureEmailVerification:
		return "Email verification is disabled"
	default:
		return fmt.Sprintf("%s is disabled", e.Feature)
	}
}

func (e *FeatureDisabledError) Is(target error) bool {
	return target == ErrFeatureDisabled
}

// ConfigurationError reports an invalid Config field.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("authclient: invalid config: %s %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// IsFeatureDisabled reports whether err was caused by a disabled feature.
func IsFeatureDisabled(err error) bool {
	return errors.Is(err, ErrFeatureDisabled)
}

// ErrorMessage returns a human-readable message for err suitable for display.
// API messages win over fallback; network failures use fallback.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var fe *FeatureDisabledError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	if errors.Is(err, ErrNoRefreshToken) {
		return err.Error()
	}
	return transport.MessageOf(err, fallback)
}
