package errors

import (
	"fmt"
	"testing"
)

func TestMirrorError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeInvalidInput, "bad input")
	if err.Code != ErrCodeInvalidInput {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidInput, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeRequestFailed, "request failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeRequestFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeConfigNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	// Test WithDetail
	detailed := err.WithDetail("field", "environment").WithDetail("attempt", 2)
	if detailed.Details["field"] != "environment" {
		t.Error("WithDetail should add details")
	}
}

func TestIsFollowsWrappedChain(t *testing.T) {
	inner := RequestCancelled("run-plan")
	outer := fmt.Errorf("dispatch: %w", Wrap(inner, ErrCodeInternal, "loop stopped"))

	if !Is(outer, ErrCodeInternal) {
		t.Error("Is should find the outer code through fmt wrapping")
	}
	if !Is(outer, ErrCodeRequestCancelled) {
		t.Error("Is should find the cause code")
	}
	if GetCode(outer) != ErrCodeInternal {
		t.Errorf("GetCode should return the first MirrorError code, got %s", GetCode(outer))
	}
}

func TestErrorConstructors(t *testing.T) {
	err := PayloadMalformed("file", fmt.Errorf("expected map"))
	if err.Code != ErrCodePayloadMalformed {
		t.Errorf("expected code %s, got %s", ErrCodePayloadMalformed, err.Code)
	}
	if err.Details["topic"] != "file" {
		t.Error("PayloadMalformed should include topic detail")
	}

	err = RequestStatus("fetch-files", 502)
	if err.Code != ErrCodeRequestFailed {
		t.Errorf("expected code %s, got %s", ErrCodeRequestFailed, err.Code)
	}
	if err.Details["status"] != 502 {
		t.Error("RequestStatus should include status detail")
	}

	err = ConfigNotFound("/tmp/mirror.yml")
	if err.Details["path"] != "/tmp/mirror.yml" {
		t.Error("ConfigNotFound should include path detail")
	}
}
