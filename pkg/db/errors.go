package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure. With
// a constraint name only that constraint matches. Postgres errors are matched
// on SQLSTATE; sqlite only reports text, so its message is checked instead
// ("UNIQUE constraint failed: item_sessions.order_id").
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if pg := pkgerrors.PGDiagnosticsOf(err); pg != nil {
		if pg.Code != pgUniqueViolation {
			return false
		}
		return constraint == "" || pg.Constraint == constraint
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraint == "" || strings.Contains(msg, constraint)
}
