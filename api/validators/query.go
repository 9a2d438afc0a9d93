package validators

import (
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

const maxCategoryLen = 64

// QueryCategory reads the optional ?category= filter of catalog listings.
// Category codes are upper-case slugs (CLOTHING, FUR); empty means all
// categories.
func QueryCategory(r *http.Request) (string, error) {
	raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("category")))
	if raw == "" {
		return "", nil
	}
	if len(raw) > maxCategoryLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "category is too long").WithDetails(map[string]any{"field": "category", "max": maxCategoryLen})
	}
	for _, c := range raw {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' && c != '-' {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "category must be a category code").WithDetails(map[string]any{"field": "category"})
		}
	}
	return raw, nil
}
