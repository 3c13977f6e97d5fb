package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert user: %w", &pq.Error{Code: "23505", Constraint: "users_email_key"})
	constraint, ok := UniqueViolation(err)
	if !ok || constraint != "users_email_key" {
		t.Fatalf("expected users_email_key violation, got %q ok=%v", constraint, ok)
	}

	if _, ok := UniqueViolation(&pq.Error{Code: "23503"}); ok {
		t.Fatalf("foreign key violation must not be reported as unique")
	}
	if _, ok := UniqueViolation(errors.New("boom")); ok {
		t.Fatalf("plain error must not be reported as unique")
	}
}

func TestQuoteLiteral(t *testing.T) {
	if got := quoteLiteral("O'Brien"); got != "'O''Brien'" {
		t.Fatalf("unexpected quoting: %s", got)
	}
}
