package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"market-finder/internal/geo"
	"market-finder/internal/models"
)

const (
	MaxPayloadBytes    = 512
	MaxPayloadsPerCall = 64
	maxResourceIDLen   = 128
)

// resource ids are opaque upstream keys; path separators and whitespace are never valid
var resourceIDRegex = regexp.MustCompile(`^[A-Za-z0-9._~:@-]+$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateViewID checks that id is a view id handed out by the service.
func ValidateViewID(id string) error {
	if id == "" {
		return &ValidationError{
			Field:   "view_id",
			Message: "is required",
		}
	}

	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{
			Field:   "view_id",
			Message: "must be a valid UUID",
		}
	}

	return nil
}

// ValidateResourceID checks a market or category id before it is put in an upstream path.
func ValidateResourceID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	if len(id) > maxResourceIDLen {
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("cannot exceed %d characters", maxResourceIDLen),
		}
	}

	if !resourceIDRegex.MatchString(id) {
		return &ValidationError{
			Field:   fieldName,
			Message: "contains invalid characters",
		}
	}

	return nil
}

// ValidateScanPayloads checks a batch of decoded frames. Empty payloads are allowed
// and ignored by the flow.
func ValidateScanPayloads(payloads []string) error {
	if len(payloads) == 0 {
		return &ValidationError{
			Field:   "payloads",
			Message: "is required",
		}
	}

	if len(payloads) > MaxPayloadsPerCall {
		return &ValidationError{
			Field:   "payloads",
			Message: fmt.Sprintf("cannot contain more than %d payloads", MaxPayloadsPerCall),
		}
	}

	for i, p := range payloads {
		if len(p) > MaxPayloadBytes {
			return &ValidationError{
				Field:   fmt.Sprintf("payloads[%d]", i),
				Message: fmt.Sprintf("cannot exceed %d bytes", MaxPayloadBytes),
			}
		}
	}

	return nil
}

// ValidateLocationReport checks the position of a granted location report. A denial
// carries no position.
func ValidateLocationReport(r models.LocationReport) error {
	if !r.Granted {
		return nil
	}

	pos := geo.Coordinates{Latitude: r.Latitude, Longitude: r.Longitude}
	if err := pos.Validate(); err != nil {
		return &ValidationError{
			Field:   "location",
			Message: err.Error(),
		}
	}

	return nil
}
