package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeValidation, "invalid input"),
			want: "VALIDATION_ERROR: invalid input",
		},
		{
			name: "with wrapped error",
			err:  Wrap(CodeIO, "reading behaviors", errors.New("no such file")),
			want: "IO_ERROR: reading behaviors: no such file",
		},
		{
			name: "malformed impression",
			err:  MalformedImpressionError("A-x", "label must be 0 or 1"),
			want: `MALFORMED_IMPRESSION: malformed impression "A-x": label must be 0 or 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeInternal, "wrapped", underlying)

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"validation", ValidationError("bad"), 2},
		{"malformed", MalformedImpressionError("x", "missing delimiter"), 2},
		{"not found", NotFoundError("split"), 2},
		{"io", IOError("open", errors.New("denied")), 1},
		{"unavailable", ServiceUnavailableError("redis", nil), 1},
		{"plain", errors.New("boom"), 1},
		{"wrapped app error", fmt.Errorf("loading: %w", ValidationError("bad")), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := New(CodeValidation, "invalid").
		WithDetail("line", "3").
		WithDetail("column", "time")

	if err.Details["line"] != "3" {
		t.Errorf("Details[line] = %s, want 3", err.Details["line"])
	}

	if err.Details["column"] != "time" {
		t.Errorf("Details[column] = %s, want time", err.Details["column"])
	}
}

func TestMalformedImpressionError_Detail(t *testing.T) {
	err := MalformedImpressionError("N1", "missing delimiter")
	if err.Details["token"] != "N1" {
		t.Errorf("Details[token] = %q, want N1", err.Details["token"])
	}
}

func TestIsMalformedImpression(t *testing.T) {
	malformed := MalformedImpressionError("A-x", "bad label")
	wrapped := fmt.Errorf("record 4: %w", malformed)

	if !IsMalformedImpression(malformed) {
		t.Error("IsMalformedImpression(MalformedImpressionError) = false, want true")
	}
	if !IsMalformedImpression(wrapped) {
		t.Error("IsMalformedImpression(wrapped) = false, want true")
	}
	if IsMalformedImpression(ValidationError("x")) {
		t.Error("IsMalformedImpression(ValidationError) = true, want false")
	}
	if IsMalformedImpression(errors.New("standard error")) {
		t.Error("IsMalformedImpression(standard error) = true, want false")
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := NotFoundError("test")
	other := ValidationError("test")

	if !IsNotFound(notFound) {
		t.Error("IsNotFound(NotFoundError) = false, want true")
	}

	if IsNotFound(other) {
		t.Error("IsNotFound(ValidationError) = true, want false")
	}

	if IsNotFound(errors.New("standard error")) {
		t.Error("IsNotFound(standard error) = true, want false")
	}
}

func TestIsValidation(t *testing.T) {
	validation := ValidationError("test")
	other := NotFoundError("test")

	if !IsValidation(validation) {
		t.Error("IsValidation(ValidationError) = false, want true")
	}

	if IsValidation(other) {
		t.Error("IsValidation(NotFoundError) = true, want false")
	}
}
