package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"crowdvault/internal/escrow/models"
	"crowdvault/internal/notice"
	"crowdvault/internal/platform/middleware"
	"crowdvault/internal/transport/http/shared"
	"crowdvault/pkg/domain"
	dErrors "crowdvault/pkg/domain-errors"
)

// Service defines the interface for escrow operations.
type Service interface {
	Subscribe(ctx context.Context, caller domain.AccountID, name string, amount uint64) error
	Withdraw(ctx context.Context, caller domain.AccountID) error
	AdvanceToDividend(ctx context.Context, caller domain.AccountID) error
	InterestDue(ctx context.Context, caller domain.AccountID) (uint64, error)
	PayInterests(ctx context.Context, caller domain.AccountID, supplied uint64) error
	Cancel(ctx context.Context, caller domain.AccountID, supplied uint64) error
	Aggregate(ctx context.Context) (uint64, error)
	State() models.Cycle
	Params() models.Params
}

// Handler is the thin HTTP layer over the escrow service. It decodes
// requests and translates errors; custody rules live in the service.
type Handler struct {
	logger  *slog.Logger
	escrow  Service
	notices *notice.MemorySink
	auth    middleware.TokenValidator
}

// New creates a new escrow Handler. notices may be nil when no memory sink
// is wired; the endpoint then serves an empty list.
func New(escrow Service, notices *notice.MemorySink, logger *slog.Logger, auth middleware.TokenValidator) *Handler {
	return &Handler{
		logger:  logger,
		escrow:  escrow,
		notices: notices,
		auth:    auth,
	}
}

// Register mounts the escrow routes on the chi router. Read-only routes are
// public; mutating routes require an authenticated caller.
func (h *Handler) Register(r chi.Router) {
	escrowRouter := chi.NewRouter()
	escrowRouter.Use(middleware.Recovery(h.logger))
	escrowRouter.Use(middleware.RequestID)
	escrowRouter.Use(middleware.Logger(h.logger))
	escrowRouter.Use(middleware.Timeout(30 * time.Second))
	escrowRouter.Use(middleware.ContentTypeJSON)

	escrowRouter.Get("/escrow/aggregate", h.handleAggregate)
	escrowRouter.Get("/escrow/state", h.handleState)
	escrowRouter.Get("/escrow/notices", h.handleNotices)

	escrowRouter.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.auth, h.logger))
		r.Post("/escrow/subscribe", h.handleSubscribe)
		r.Post("/escrow/withdraw", h.handleWithdraw)
		r.Post("/escrow/advance", h.handleAdvance)
		r.Get("/escrow/interest", h.handleInterestDue)
		r.Post("/escrow/interest/pay", h.handlePayInterests)
		r.Post("/escrow/cancel", h.handleCancel)
	})

	r.Mount("/", escrowRouter)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.AccountID, bool) {
	account := middleware.GetAccountID(r.Context())
	if account.IsNil() {
		// Unreachable when RequireAuth is configured correctly.
		h.logger.ErrorContext(r.Context(), "account missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return account, true
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "invalid subscribe request",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.escrow.Subscribe(r.Context(), caller, req.Name, req.Amount); err != nil {
		h.logAndWrite(w, r, "subscribe failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := h.escrow.Withdraw(r.Context(), caller); err != nil {
		h.logAndWrite(w, r, "withdraw failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := h.escrow.AdvanceToDividend(r.Context(), caller); err != nil {
		h.logAndWrite(w, r, "advance failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleInterestDue(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	due, err := h.escrow.InterestDue(r.Context(), caller)
	if err != nil {
		h.logAndWrite(w, r, "interest query failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, AmountResponse{Amount: due})
}

func (h *Handler) handlePayInterests(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req SuppliedAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.escrow.PayInterests(r.Context(), caller, req.Amount); err != nil {
		h.logAndWrite(w, r, "interest payment failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req SuppliedAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.escrow.Cancel(r.Context(), caller, req.Amount); err != nil {
		h.logAndWrite(w, r, "cancel failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	aggregate, err := h.escrow.Aggregate(r.Context())
	if err != nil {
		h.logAndWrite(w, r, "aggregate query failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, AmountResponse{Amount: aggregate})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	params := h.escrow.Params()
	shared.WriteJSON(w, http.StatusOK, StateResponse{
		Cycle:           h.escrow.State().String(),
		TargetAmount:    params.TargetAmount,
		MinFund:         params.MinFund,
		MaxFund:         params.MaxFund,
		InterestPercent: params.InterestPercent,
	})
}

func (h *Handler) handleNotices(w http.ResponseWriter, r *http.Request) {
	events := []notice.Event{}
	if h.notices != nil {
		events = h.notices.List()
	}
	shared.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) logAndWrite(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logFn := h.logger.WarnContext
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		logFn = h.logger.ErrorContext
	}
	logFn(r.Context(), msg,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err.Error(),
	)
	shared.WriteError(w, err)
}
