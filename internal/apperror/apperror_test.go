package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ErrorMessagePriority(t *testing.T) {
	base := errors.New("base")
	err := &Error{Kind: KindValidation, Msg: "msg", Err: base}
	if err.Error() != "msg" {
		t.Fatalf("expected msg, got %q", err.Error())
	}
}

func TestError_ErrorFallsBackToWrapped(t *testing.T) {
	base := errors.New("base")
	err := &Error{Kind: KindValidation, Err: base}
	if err.Error() != "base" {
		t.Fatalf("expected base, got %q", err.Error())
	}
}

func TestError_ErrorFallsBackToKind(t *testing.T) {
	err := &Error{Kind: KindNotFound}
	if err.Error() != string(KindNotFound) {
		t.Fatalf("expected kind string, got %q", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	base := errors.New("base")
	err := &Error{Kind: KindValidation, Err: base}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to be reachable via errors.Is")
	}
}

func TestIs_MatchesWrappedKind(t *testing.T) {
	err := NotFound("x", nil)
	wrapped := fmt.Errorf("wrap: %w", err)
	if !Is(wrapped, KindNotFound) {
		t.Fatalf("expected Is to match wrapped kind")
	}
	if Is(wrapped, KindValidation) {
		t.Fatalf("expected Is to be false for different kind")
	}
}

func TestUnprocessable_Kind(t *testing.T) {
	err := Unprocessable("Cannot activate coupon. Already active.", nil)
	if !Is(err, KindUnprocessable) {
		t.Fatalf("expected unprocessable kind")
	}
	if err.Error() != "Cannot activate coupon. Already active." {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDetailsOf(t *testing.T) {
	err := ValidationDetails("validation failed", []string{"Name can't be blank", "Code can't be blank"}, nil)
	details := DetailsOf(fmt.Errorf("wrap: %w", err))
	if len(details) != 2 || details[0] != "Name can't be blank" {
		t.Fatalf("unexpected details: %v", details)
	}

	single := DetailsOf(NotFound("coupon not found", nil))
	if len(single) != 1 || single[0] != "coupon not found" {
		t.Fatalf("expected message fallback, got %v", single)
	}

	if DetailsOf(errors.New("plain")) != nil {
		t.Fatalf("expected nil details for non-app errors")
	}
}
