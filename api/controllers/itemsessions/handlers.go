// Package itemsessions serves the item session store over HTTP.
package itemsessions

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/api/middleware"
	"github.com/angelmondragon/orderflow-backend/api/responses"
	"github.com/angelmondragon/orderflow-backend/api/validators"
	internalsessions "github.com/angelmondragon/orderflow-backend/internal/itemsessions"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

const (
	paramOrderID   = "orderId"
	paramSessionID = "sessionId"
	paramItemID    = "itemId"
)

// Initialize creates the session of an order or returns the existing one.
func Initialize(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, paramOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := withOrder(r.Context(), logg, orderID)
		dto, err := svc.Initialize(ctx, orderID)
		writeSession(ctx, logg, w, http.StatusOK, dto, err)
	}
}

func Get(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return sessionHandler(logg, func(ctx context.Context, r *http.Request, id uuid.UUID) (*internalsessions.SessionDTO, error) {
		return svc.Get(ctx, id)
	})
}

func Synchronize(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return sessionHandler(logg, func(ctx context.Context, r *http.Request, id uuid.UUID) (*internalsessions.SessionDTO, error) {
		return svc.Synchronize(ctx, id)
	})
}

func AddItem(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, sessionID, ok := sessionContext(w, r, logg)
		if !ok {
			return
		}
		var input internalsessions.ItemInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		dto, err := svc.AddItem(ctx, sessionID, middleware.ExpectedVersionFromContext(ctx), input)
		writeSession(ctx, logg, w, http.StatusCreated, dto, err)
	}
}

func UpdateItem(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, sessionID, ok := sessionContext(w, r, logg)
		if !ok {
			return
		}
		itemID, err := validators.ParseUUIDParam(r, paramItemID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var input internalsessions.ItemInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		dto, err := svc.UpdateItem(ctx, sessionID, itemID, middleware.ExpectedVersionFromContext(ctx), input)
		writeSession(ctx, logg, w, http.StatusOK, dto, err)
	}
}

func DeleteItem(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return itemHandler(logg, func(ctx context.Context, sessionID, itemID uuid.UUID) (*internalsessions.SessionDTO, error) {
		return svc.DeleteItem(ctx, sessionID, itemID, middleware.ExpectedVersionFromContext(ctx))
	})
}

func StartWizard(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return sessionHandler(logg, func(ctx context.Context, r *http.Request, id uuid.UUID) (*internalsessions.SessionDTO, error) {
		return svc.StartWizard(ctx, id, middleware.ExpectedVersionFromContext(ctx))
	})
}

func StartEditWizard(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return itemHandler(logg, func(ctx context.Context, sessionID, itemID uuid.UUID) (*internalsessions.SessionDTO, error) {
		return svc.StartEditWizard(ctx, sessionID, itemID, middleware.ExpectedVersionFromContext(ctx))
	})
}

func CloseWizard(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return sessionHandler(logg, func(ctx context.Context, r *http.Request, id uuid.UUID) (*internalsessions.SessionDTO, error) {
		return svc.CloseWizard(ctx, id, middleware.ExpectedVersionFromContext(ctx))
	})
}

func Reset(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return sessionHandler(logg, func(ctx context.Context, r *http.Request, id uuid.UUID) (*internalsessions.SessionDTO, error) {
		return svc.Reset(ctx, id, middleware.ExpectedVersionFromContext(ctx))
	})
}

func Complete(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return sessionHandler(logg, func(ctx context.Context, r *http.Request, id uuid.UUID) (*internalsessions.SessionDTO, error) {
		return svc.CompleteStage(ctx, id, middleware.ExpectedVersionFromContext(ctx))
	})
}

// Terminate deletes the session and answers 204.
func Terminate(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, sessionID, ok := sessionContext(w, r, logg)
		if !ok {
			return
		}
		if err := svc.Terminate(ctx, sessionID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func Validate(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, sessionID, ok := sessionContext(w, r, logg)
		if !ok {
			return
		}
		res, err := svc.Validate(ctx, sessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func Readiness(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, sessionID, ok := sessionContext(w, r, logg)
		if !ok {
			return
		}
		res, err := svc.CheckReadiness(ctx, sessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// PricePreview applies urgency and discount overlays to the persisted items.
func PricePreview(svc internalsessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, sessionID, ok := sessionContext(w, r, logg)
		if !ok {
			return
		}
		var req PricePreviewRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		res, err := svc.PreviewPrice(ctx, sessionID, req.Options())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

type sessionOp func(ctx context.Context, r *http.Request, sessionID uuid.UUID) (*internalsessions.SessionDTO, error)

func sessionHandler(logg *logger.Logger, op sessionOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, sessionID, ok := sessionContext(w, r, logg)
		if !ok {
			return
		}
		dto, err := op(ctx, r, sessionID)
		writeSession(ctx, logg, w, http.StatusOK, dto, err)
	}
}

type itemOp func(ctx context.Context, sessionID, itemID uuid.UUID) (*internalsessions.SessionDTO, error)

func itemHandler(logg *logger.Logger, op itemOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, sessionID, ok := sessionContext(w, r, logg)
		if !ok {
			return
		}
		itemID, err := validators.ParseUUIDParam(r, paramItemID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		dto, err := op(ctx, sessionID, itemID)
		writeSession(ctx, logg, w, http.StatusOK, dto, err)
	}
}

func sessionContext(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (context.Context, uuid.UUID, bool) {
	sessionID, err := validators.ParseUUIDParam(r, paramSessionID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, uuid.Nil, false
	}
	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithSessionID(ctx, sessionID.String())
	}
	return ctx, sessionID, true
}

func withOrder(ctx context.Context, logg *logger.Logger, orderID uuid.UUID) context.Context {
	if logg == nil {
		return ctx
	}
	return logg.WithOrderID(ctx, orderID.String())
}

// writeSession answers with the session and its version as ETag so the
// caller can send it back as If-Match.
func writeSession(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, status int, dto *internalsessions.SessionDTO, err error) {
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	if dto == nil {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "empty session response"))
		return
	}
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(dto.Version, 10)))
	responses.WriteSuccessStatus(w, status, dto)
}
