package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/orderflow-backend/api/responses"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

const ifMatchHeader = "If-Match"

// Precondition parses If-Match into the expected session version. When
// required is false a missing header skips the version check.
func Precondition(required bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(ifMatchHeader))
			if raw == "" {
				if required {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "If-Match header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			version, err := parseVersion(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "If-Match must be a positive session version").
					WithDetails(map[string]any{"if_match": raw}))
				return
			}

			ctx := WithExpectedVersion(r.Context(), version)
			if logg != nil {
				ctx = logg.WithField(ctx, "expected_version", version)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseVersion accepts 7, "7" and W/"7".
func parseVersion(raw string) (int64, error) {
	v := strings.TrimPrefix(raw, "W/")
	v = strings.Trim(v, `"`)
	version, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	if version < 1 {
		return 0, strconv.ErrRange
	}
	return version, nil
}
