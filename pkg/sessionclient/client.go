// Package sessionclient talks to the item session HTTP API and satisfies the
// remote store contract of the item manager.
package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/internal/itemsessions"
	"github.com/angelmondragon/orderflow-backend/internal/validation"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

const (
	defaultTimeout             = 10 * time.Second
	errorBodyReadLimit   int64 = 4096
	successBodyReadLimit int64 = 4 << 20

	headerIfMatch        = "If-Match"
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

var errBaseURLRequired = errors.New("item session api base url is required")

// Client calls the item session API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	validate   *validator.Validate
	newKey     func() string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a client for the API rooted at baseURL, e.g.
// http://localhost:8080/api/v1.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
		validate:   newResponseValidator(),
		newKey:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func newResponseValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Initialize creates or fetches the session of orderID.
func (c *Client) Initialize(ctx context.Context, orderID uuid.UUID) (*itemsessions.SessionDTO, error) {
	return c.session(ctx, call{
		method:     http.MethodPost,
		path:       fmt.Sprintf("/orders/%s/item-session", orderID),
		idempotent: true,
	})
}

// Get reads a session.
func (c *Client) Get(ctx context.Context, sessionID uuid.UUID) (*itemsessions.SessionDTO, error) {
	return c.session(ctx, call{method: http.MethodGet, path: sessionPath(sessionID)})
}

// Synchronize asks the API to reconcile the session aggregates.
func (c *Client) Synchronize(ctx context.Context, sessionID uuid.UUID) (*itemsessions.SessionDTO, error) {
	return c.session(ctx, call{method: http.MethodPost, path: sessionPath(sessionID) + "/sync"})
}

// AddItem submits the item of the open create wizard.
func (c *Client) AddItem(ctx context.Context, sessionID uuid.UUID, expectedVersion int64, input itemsessions.ItemInput) (*itemsessions.SessionDTO, error) {
	return c.session(ctx, call{
		method:     http.MethodPost,
		path:       sessionPath(sessionID) + "/items",
		body:       input,
		version:    expectedVersion,
		idempotent: true,
	})
}

// UpdateItem submits the item being edited.
func (c *Client) UpdateItem(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64, input itemsessions.ItemInput) (*itemsessions.SessionDTO, error) {
	return c.session(ctx, call{
		method:  http.MethodPut,
		path:    fmt.Sprintf("%s/items/%s", sessionPath(sessionID), itemID),
		body:    input,
		version: expectedVersion,
	})
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error) {
	return c.session(ctx, call{
		method:  http.MethodDelete,
		path:    fmt.Sprintf("%s/items/%s", sessionPath(sessionID), itemID),
		version: expectedVersion,
	})
}

// StartWizard opens the create form.
func (c *Client) StartWizard(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error) {
	return c.session(ctx, call{method: http.MethodPost, path: sessionPath(sessionID) + "/wizard", version: expectedVersion})
}

// StartEditWizard opens the edit form for itemID.
func (c *Client) StartEditWizard(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error) {
	return c.session(ctx, call{
		method:  http.MethodPost,
		path:    fmt.Sprintf("%s/wizard/%s", sessionPath(sessionID), itemID),
		version: expectedVersion,
	})
}

// CloseWizard discards the open form.
func (c *Client) CloseWizard(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error) {
	return c.session(ctx, call{method: http.MethodDelete, path: sessionPath(sessionID) + "/wizard", version: expectedVersion})
}

// Reset empties the session.
func (c *Client) Reset(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error) {
	return c.session(ctx, call{method: http.MethodPost, path: sessionPath(sessionID) + "/reset", version: expectedVersion})
}

// Terminate deletes the session.
func (c *Client) Terminate(ctx context.Context, sessionID uuid.UUID) error {
	return c.do(ctx, call{method: http.MethodDelete, path: sessionPath(sessionID)}, nil)
}

// Validate returns the session's validation findings.
func (c *Client) Validate(ctx context.Context, sessionID uuid.UUID) (*validation.Result, error) {
	var out validation.Result
	if err := c.do(ctx, call{method: http.MethodGet, path: sessionPath(sessionID) + "/validation"}, &out); err != nil {
		return nil, err
	}
	if out.Errors == nil {
		out.Errors = map[string][]string{}
	}
	out.IsValid = len(out.Errors) == 0
	return &out, nil
}

// CheckReadiness asks whether the item stage may complete.
func (c *Client) CheckReadiness(ctx context.Context, sessionID uuid.UUID) (*itemsessions.ReadinessDTO, error) {
	var out itemsessions.ReadinessDTO
	if err := c.do(ctx, call{method: http.MethodGet, path: sessionPath(sessionID) + "/readiness"}, &out); err != nil {
		return nil, err
	}
	if out.Session != nil {
		if err := c.check(out.Session); err != nil {
			return nil, err
		}
	}
	if out.Validation.Errors == nil {
		out.Validation.Errors = map[string][]string{}
	}
	return &out, nil
}

// CompleteStage finalizes the session.
func (c *Client) CompleteStage(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error) {
	return c.session(ctx, call{
		method:     http.MethodPost,
		path:       sessionPath(sessionID) + "/complete",
		version:    expectedVersion,
		idempotent: true,
	})
}

type call struct {
	method     string
	path       string
	body       any
	version    int64
	idempotent bool
}

func (c *Client) session(ctx context.Context, req call) (*itemsessions.SessionDTO, error) {
	var out itemsessions.SessionDTO
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	if err := c.check(&out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []itemsessions.ItemDTO{}
	}
	return &out, nil
}

func (c *Client) check(dto *itemsessions.SessionDTO) error {
	if err := c.validate.Struct(dto); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeTransport, err, "session response failed validation")
	}
	return nil
}

// do executes req and decodes the data envelope into out. A nil out accepts
// any successful response.
func (c *Client) do(ctx context.Context, req call, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeTransport, "item session client not configured")
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "marshal request body")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeTransport, err, "build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.version > 0 {
		httpReq.Header.Set(headerIfMatch, strconv.FormatInt(req.version, 10))
	}
	if req.idempotent {
		httpReq.Header.Set(headerIdempotencyKey, c.newKey())
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set(headerRequestID, id)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return pkgerrors.Wrap(pkgerrors.CodeTransport, err, "request timed out")
		}
		return pkgerrors.Wrap(pkgerrors.CodeTransport, err, "execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeFailure(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, successBodyReadLimit))
	dec.DisallowUnknownFields()
	var envelope types.Envelope[json.RawMessage]
	if err := dec.Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeTransport, err, "decode response envelope")
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return pkgerrors.New(pkgerrors.CodeTransport, "response carried no data")
	}
	inner := json.NewDecoder(bytes.NewReader(envelope.Data))
	inner.DisallowUnknownFields()
	if err := inner.Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeTransport, err, "decode response data")
	}
	return nil
}

// ServerError is attached as details to transport errors raised from an API
// error response.
type ServerError struct {
	Status  int            `json:"status"`
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
	Details any            `json:"details,omitempty"`
}

// Retryable follows the server's error code. Responses without one are
// retryable only for 5xx and 429 statuses.
func (e ServerError) Retryable() bool {
	if e.Code != "" {
		return pkgerrors.MetadataFor(e.Code).Retryable
	}
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// ServerErrorOf returns the API error behind err, if any.
func ServerErrorOf(err error) (ServerError, bool) {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ServerError{}, false
	}
	se, ok := typed.Details().(ServerError)
	return se, ok
}

func decodeFailure(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	se := ServerError{Status: resp.StatusCode}

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		se.Code = pkgerrors.Code(envelope.Error.Code)
		se.Message = envelope.Error.Message
		se.Details = envelope.Error.Details
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}

	msg := se.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return pkgerrors.New(pkgerrors.CodeTransport, msg).WithDetails(se)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sessionPath(sessionID uuid.UUID) string {
	return "/item-sessions/" + sessionID.String()
}
