// Package errors provides structured error handling for the saga engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Run errors
	CodeRunNotFound       Code = "RUN_NOT_FOUND"
	CodeRunEmptyParty     Code = "RUN_EMPTY_PARTY"
	CodeRunEmptyContentID Code = "RUN_EMPTY_CONTENT_ID"

	// Action resolution errors
	CodeSceneNotFound   Code = "SCENE_NOT_FOUND"
	CodeRoundNotFound   Code = "ROUND_NOT_FOUND"
	CodeActionNotFound  Code = "ACTION_NOT_FOUND"
	CodeTurnViolation   Code = "TURN_VIOLATION"
	CodeDownedViolation Code = "DOWNED_VIOLATION"

	// Profile errors
	CodeProfileNotFound Code = "PROFILE_NOT_FOUND"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"

	// Content errors
	CodeContentNotFound Code = "CONTENT_NOT_FOUND"
	CodeContentInvalid  Code = "CONTENT_INVALID"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeRunEmptyParty,
		CodeRunEmptyContentID,
		CodeContentInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeTurnViolation,
		CodeDownedViolation:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeRunNotFound,
		CodeSceneNotFound,
		CodeRoundNotFound,
		CodeActionNotFound,
		CodeProfileNotFound,
		CodeContentNotFound:
		return codes.NotFound

	case CodeStoreUnavailable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
