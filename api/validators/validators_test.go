package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

type quoteBody struct {
	Lines    []string        `json:"lines" validate:"required,min=1"`
	Discount decimal.Decimal `json:"discount_percent" validate:"percent"`
}

func decode(body string) error {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest quoteBody
	return DecodeJSONBody(req, &dest)
}

func TestDecodeJSONBody(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr string
		field   string
	}{
		{name: "ok", body: `{"lines":["a"],"discount_percent":"15"}`},
		{name: "empty", body: ``, wantErr: "request body is required"},
		{name: "unknown field", body: `{"lines":["a"],"extra":1}`, wantErr: "invalid request body"},
		{name: "trailing document", body: `{"lines":["a"]}{"lines":["b"]}`, wantErr: "single JSON object"},
		{name: "empty lines", body: `{"lines":[]}`, wantErr: "validation failed", field: "lines"},
		{name: "percent above range", body: `{"lines":["a"],"discount_percent":"101"}`, wantErr: "validation failed", field: "discount_percent"},
		{name: "negative percent", body: `{"lines":["a"],"discount_percent":"-1"}`, wantErr: "validation failed", field: "discount_percent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := decode(tc.body)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(typed.Message(), tc.wantErr) {
				t.Fatalf("expected %q in %q", tc.wantErr, typed.Message())
			}
			if tc.field != "" {
				details, _ := typed.Details().(map[string]string)
				if _, ok := details[tc.field]; !ok {
					t.Fatalf("expected details for %s, got %v", tc.field, typed.Details())
				}
			}
		})
	}
}

func TestDecodeJSONBodyTooLarge(t *testing.T) {
	body := `{"lines":["` + strings.Repeat("x", maxBodyBytes) + `"]}`
	err := decode(body)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body too large" {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestQueryCategory(t *testing.T) {
	cases := map[string]struct {
		want string
		ok   bool
	}{
		"":                      {"", true},
		"clothing":              {"CLOTHING", true},
		" FUR ":                 {"FUR", true},
		"bad;drop":              {"", false},
		strings.Repeat("A", 65): {"", false},
	}
	for raw, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		q := req.URL.Query()
		q.Set("category", raw)
		req.URL.RawQuery = q.Encode()

		got, err := QueryCategory(req)
		if tc.ok != (err == nil) || got != tc.want {
			t.Fatalf("%q: got %q err=%v", raw, got, err)
		}
	}
}

func TestParseUUIDParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("sessionId", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	if _, err := ParseUUIDParam(req, "sessionId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
