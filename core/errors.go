package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RelayErrorNotFound        = "RELAY_NOT_FOUND"
	RelayErrorConflict        = "RELAY_CONFLICT"
	RelayErrorValidation      = "RELAY_VALIDATION"
	RelayErrorUpstreamFailure = "RELAY_UPSTREAM_FAILURE"
	RelayErrorLinkageMissing  = "RELAY_LINKAGE_MISSING"
	RelayErrorInternal        = "RELAY_INTERNAL_ERROR"
)

// Machine readable reasons attached to conflict errors.
const (
	ReasonIdempotencyKeyReused = "idempotency_key_reused"
	ReasonOrderStatusLocked    = "order_status_locked"
	ReasonInvalidTransition    = "invalid_transition"
	ReasonDeliveryLeaseLost    = "delivery_lease_lost"
)

var (
	ErrIdempotencyKeyTaken = errors.New("core: idempotency key already recorded")
	ErrRecordNotFound      = errors.New("core: record not found")
)

func NotFoundError(message string, metadata map[string]any) error {
	return newRelayError(message, goerrors.CategoryNotFound, RelayErrorNotFound, metadata)
}

func ConflictError(message string, reason string, metadata map[string]any) error {
	fields := copyAnyMap(metadata)
	if strings.TrimSpace(reason) != "" {
		fields["reason"] = reason
	}
	return newRelayError(message, goerrors.CategoryConflict, RelayErrorConflict, fields)
}

func ValidationError(field string, message string) error {
	return goerrors.NewValidation("core: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(RelayErrorValidation).
		WithSeverity(goerrors.SeverityError)
}

func UpstreamError(source error, message string, metadata map[string]any) error {
	if source == nil {
		return newRelayError(message, goerrors.CategoryExternal, RelayErrorUpstreamFailure, metadata)
	}
	err := goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(RelayErrorUpstreamFailure)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func LinkageMissingError(message string, metadata map[string]any) error {
	return newRelayError(message, goerrors.CategoryOperation, RelayErrorLinkageMissing, metadata)
}

// LeaseLostError reports that a delivery outcome was not written because the
// row is no longer pending under the lease the caller claimed.
func LeaseLostError(deliveryID string) error {
	return ConflictError("delivery lease lost", ReasonDeliveryLeaseLost, map[string]any{
		"delivery_id": deliveryID,
	})
}

func IsNotFound(err error) bool {
	return goerrors.IsNotFound(err) || errors.Is(err, ErrRecordNotFound)
}

func IsConflict(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryConflict)
}

func IsValidation(err error) bool {
	return goerrors.IsValidation(err)
}

func IsUpstreamFailure(err error) bool {
	return hasTextCode(err, RelayErrorUpstreamFailure)
}

func IsLinkageMissing(err error) bool {
	return hasTextCode(err, RelayErrorLinkageMissing)
}

func IsLeaseLost(err error) bool {
	return ConflictReason(err) == ReasonDeliveryLeaseLost
}

// ConflictReason returns the reason recorded on a conflict error, if any.
func ConflictReason(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryConflict {
		return ""
	}
	reason, _ := rich.Metadata["reason"].(string)
	return reason
}

func hasTextCode(err error, code string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

func newRelayError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(relayHTTPStatus(category, textCode)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func relayErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureRelayErrorEnvelope(richErr)
	}
	if errors.Is(err, ErrRecordNotFound) {
		return ensureRelayErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryNotFound, "record not found"))
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newRelayError(err.Error(), goerrors.CategoryNotFound, RelayErrorNotFound, nil)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newRelayError(err.Error(), goerrors.CategoryValidation, RelayErrorValidation, nil)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureRelayErrorEnvelope(mapped)
}

func ensureRelayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultRelayTextCode(err.Category)
	}
	if err.Code == 0 {
		err.Code = relayHTTPStatus(err.Category, err.TextCode)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultRelayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return RelayErrorValidation
	case goerrors.CategoryNotFound:
		return RelayErrorNotFound
	case goerrors.CategoryConflict:
		return RelayErrorConflict
	case goerrors.CategoryExternal:
		return RelayErrorUpstreamFailure
	default:
		return RelayErrorInternal
	}
}

func relayHTTPStatus(category goerrors.Category, textCode string) int {
	if textCode == RelayErrorLinkageMissing {
		return http.StatusUnprocessableEntity
	}
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
