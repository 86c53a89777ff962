package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/LeventeLantos/result-messaging/internal/auth"
	"github.com/LeventeLantos/result-messaging/internal/cache"
	"github.com/LeventeLantos/result-messaging/internal/client"
	"github.com/LeventeLantos/result-messaging/internal/model"
	"github.com/LeventeLantos/result-messaging/internal/repo"
	"github.com/LeventeLantos/result-messaging/internal/results"
	"github.com/LeventeLantos/result-messaging/internal/scheduler"
	"github.com/LeventeLantos/result-messaging/internal/service"
	"github.com/LeventeLantos/result-messaging/internal/sheet"
)

type Accounts interface {
	Register(ctx context.Context, in auth.RegisterInput) (model.User, error)
	Login(ctx context.Context, email, password string) (auth.Token, error)
	Me(ctx context.Context, p auth.Principal) (model.User, error)
	UpdateProfile(ctx context.Context, p auth.Principal, in auth.ProfileUpdate) (model.User, error)
	Users(ctx context.Context, role model.Role) ([]model.User, error)
	Approve(ctx context.Context, id string) error
	Delete(ctx context.Context, p auth.Principal, id string) error
	Middleware(next http.Handler) http.Handler
}

type Messenger interface {
	SendManual(ctx context.Context, caller service.Caller, message string, numbers []string) (service.Result, error)
	SendRows(ctx context.Context, caller service.Caller, rows []service.RecipientRow) (service.RowResult, error)
	ListFailures(ctx context.Context, caller service.Caller, q service.FailureQuery) ([]model.FailedSMS, error)
	ResendByIDs(ctx context.Context, caller service.Caller, ids []string) (service.ResendResult, error)
	ResendRecords(ctx context.Context, caller service.Caller, records []service.ResendRecord) (service.ResendResult, error)
	Recent(ctx context.Context, caller service.Caller, n int) ([]cache.Receipt, error)
	Balance(ctx context.Context) (string, error)
}

type ResendScheduler interface {
	Start() bool
	Stop() bool
	Status() scheduler.Status
}

type Handler struct {
	accounts  Accounts
	messaging Messenger
	sched     ResendScheduler
	validate  *validator.Validate
	logger    *slog.Logger

	uploadMaxBytes int64
}

func NewHandler(a Accounts, m Messenger, s ResendScheduler, logger *slog.Logger, uploadMaxBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = 10 << 20
	}
	return &Handler{
		accounts:       a,
		messaging:      m,
		sched:          s,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		logger:         logger.With("component", "api"),
		uploadMaxBytes: uploadMaxBytes,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("invalid request payload: " + err.Error())
	}
	return h.check(dst)
}

func (h *Handler) check(v any) error {
	if err := h.validate.Struct(v); err != nil {
		return badRequest("validation failed: " + err.Error())
	}
	return nil
}

type requestError struct {
	status int
	detail string
}

func (e *requestError) Error() string { return e.detail }

func badRequest(detail string) error {
	return &requestError{status: http.StatusBadRequest, detail: detail}
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and hidden behind a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		writeDetail(w, reqErr.status, reqErr.detail)
	case errors.Is(err, repo.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrDuplicateEmail):
		writeDetail(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
	case errors.Is(err, auth.ErrPendingApproval), errors.Is(err, auth.ErrForbidden):
		writeDetail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, results.ErrUnknownKind),
		errors.Is(err, sheet.ErrMissingResultColumn),
		errors.Is(err, sheet.ErrEmptyWorkbook):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, client.ErrBalanceUnavailable):
		writeDetail(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}

func caller(r *http.Request) (auth.Principal, service.Caller) {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p, service.Caller{UserID: p.UserID, Admin: p.IsAdmin()}
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
