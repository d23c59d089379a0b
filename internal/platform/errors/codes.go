// Package errors provides structured, coded errors for livegate services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeInvalidAddress Code = "INVALID_ADDRESS"
	CodeRateLimited    Code = "RATE_LIMITED"

	// Access errors
	CodeAccessDenied    Code = "ACCESS_DENIED"
	CodeChainReadFailed Code = "CHAIN_READ_FAILED"

	// Token errors
	CodeMissingSecret Code = "MISSING_SECRET"
	CodeTokenInvalid  Code = "TOKEN_INVALID"
	CodeTokenExpired  Code = "TOKEN_EXPIRED"
	CodeTokenRevoked  Code = "TOKEN_REVOKED"

	// Room provider errors
	CodeMissingAPIKey      Code = "MISSING_API_KEY"
	CodeRoomCreationFailed Code = "ROOM_CREATION_FAILED"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeInvalidInput,
		CodeInvalidAddress:
		return http.StatusBadRequest

	// Unauthorized - token cannot be trusted
	case CodeTokenInvalid,
		CodeTokenExpired,
		CodeTokenRevoked:
		return http.StatusUnauthorized

	case CodeAccessDenied:
		return http.StatusForbidden

	case CodeRateLimited:
		return http.StatusTooManyRequests

	// Everything else fails closed as a server error, including chain reads.
	default:
		return http.StatusInternalServerError
	}
}
