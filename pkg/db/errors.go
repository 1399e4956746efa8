package db

import "strings"

// IsUniqueViolation reports whether err carries a Postgres unique violation.
// With a constraintName it matches that constraint specifically, otherwise it
// falls back to the generic duplicate-key text. String matching keeps this
// usable for both the pgx and lib/pq drivers without importing either here.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}
