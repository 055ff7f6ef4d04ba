package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres unique_violation.
const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a unique-index violation,
// optionally on a specific constraint. Used to translate lost
// check-then-act races into the same typed errors the existence checks
// produce.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if string(pqErr.Code) != uniqueViolationCode {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
