package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New(CodeTurnViolation, "not your turn")
	wrapped := fmt.Errorf("handle action: %w", base)

	if !errors.Is(wrapped, New(CodeTurnViolation, "different message")) {
		t.Fatal("expected errors with the same code to match")
	}
	if errors.Is(wrapped, New(CodeDownedViolation, "not your turn")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeStoreUnavailable, "put run", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be traversable")
	}
	if GetCode(err) != CodeStoreUnavailable {
		t.Fatalf("expected store unavailable code, got %q", GetCode(err))
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeRunNotFound, codes.NotFound},
		{CodeActionNotFound, codes.NotFound},
		{CodeTurnViolation, codes.FailedPrecondition},
		{CodeDownedViolation, codes.FailedPrecondition},
		{CodeRunEmptyParty, codes.InvalidArgument},
		{CodeStoreUnavailable, codes.Unavailable},
		{CodeUnknown, codes.Internal},
	}
	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.code, tt.want, got)
		}
	}
}

func TestHandleErrorUnknown(t *testing.T) {
	err := HandleError(errors.New("boom"))
	st, ok := status.FromError(err)
	if !ok {
		t.Fatal("expected a grpc status")
	}
	if st.Code() != codes.Internal {
		t.Fatalf("expected internal, got %v", st.Code())
	}
}
