package pgutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErr(code string) error {
	return &pgconn.PgError{Code: code, Message: "constraint violation"}
}

func wrapped(err error) error {
	return fmt.Errorf("exec insert: %w", err)
}

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"nil error", nil, CodeUniqueViolation, false},
		{"matching code", pgErr(CodeUniqueViolation), CodeUniqueViolation, true},
		{"wrapped matching code", wrapped(pgErr(CodeUniqueViolation)), CodeUniqueViolation, true},
		{"different code", pgErr(CodeForeignKeyViolation), CodeUniqueViolation, false},
		{"non-pg error", errors.New("connection refused"), CodeUniqueViolation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hasCode(tt.err, tt.code)
			if got != tt.want {
				t.Errorf("hasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Error("IsUniqueViolation(nil) = true, want false")
	}
	if !IsUniqueViolation(pgErr(CodeUniqueViolation)) {
		t.Error("IsUniqueViolation() = false, want true")
	}
	if IsUniqueViolation(pgErr(CodeForeignKeyViolation)) {
		t.Error("IsUniqueViolation() = true for foreign key code, want false")
	}
	if !IsUniqueViolation(wrapped(pgErr(CodeUniqueViolation))) {
		t.Error("IsUniqueViolation() = false for wrapped error, want true")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !IsForeignKeyViolation(pgErr(CodeForeignKeyViolation)) {
		t.Error("IsForeignKeyViolation() = false, want true")
	}
	if IsForeignKeyViolation(pgErr(CodeUniqueViolation)) {
		t.Error("IsForeignKeyViolation() = true for unique code, want false")
	}
}

func TestIsNotNullViolation(t *testing.T) {
	if !IsNotNullViolation(pgErr(CodeNotNullViolation)) {
		t.Error("IsNotNullViolation() = false, want true")
	}
	if IsNotNullViolation(pgErr(CodeUniqueViolation)) {
		t.Error("IsNotNullViolation() = true for unique code, want false")
	}
}

func TestIsCheckViolation(t *testing.T) {
	if !IsCheckViolation(pgErr(CodeCheckViolation)) {
		t.Error("IsCheckViolation() = false, want true")
	}
	if IsCheckViolation(pgErr(CodeUniqueViolation)) {
		t.Error("IsCheckViolation() = true for unique code, want false")
	}
}

func TestErrorCodeConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant string
		expected string
	}{
		{"CodeUniqueViolation", CodeUniqueViolation, "23505"},
		{"CodeForeignKeyViolation", CodeForeignKeyViolation, "23503"},
		{"CodeNotNullViolation", CodeNotNullViolation, "23502"},
		{"CodeCheckViolation", CodeCheckViolation, "23514"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.constant, tt.expected)
			}
		})
	}
}
