package users

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/httputil"
	"github.com/CondeArmand/gamemate-backend/internal/models"
	"github.com/CondeArmand/gamemate-backend/internal/ownership"
)

type AccountStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetLinkedAccount(ctx context.Context, userID string, provider models.Provider) (*models.LinkedAccount, error)
	UnlinkAccount(ctx context.Context, userID string, provider models.Provider) (int64, error)
}

type LibraryStore interface {
	ListByUser(ctx context.Context, userID string, f ownership.ListFilter) ([]models.OwnedGame, int, error)
	Add(ctx context.Context, userID string, gameID uuid.UUID, source models.Provider) (*models.OwnedGame, error)
	Remove(ctx context.Context, userID string, gameID uuid.UUID) error
	UpdateStatus(ctx context.Context, userID string, gameID uuid.UUID, status models.GameStatus) error
}

type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, userID, steamID string) (string, error)
}

type Handler struct {
	accounts AccountStore
	library  LibraryStore
	queue    SyncEnqueuer
	logger   *zap.Logger
}

func NewHandler(accounts AccountStore, library LibraryStore, queue SyncEnqueuer, logger *zap.Logger) *Handler {
	return &Handler{accounts: accounts, library: library, queue: queue, logger: logger.Named("users")}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/{userID}", h.get)
	r.Post("/{userID}/sync", h.sync)
	r.Get("/{userID}/games", h.listGames)
	r.Post("/{userID}/games", h.addGame)
	r.Delete("/{userID}/games/{gameID}", h.removeGame)
	r.Put("/{userID}/games/{gameID}/status", h.updateStatus)
	r.Delete("/{userID}/linked-accounts/{provider}", h.unlink)
	return r
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if errors.Is(err, ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
		return
	}
	if err != nil {
		h.internal(w, "get user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	acct, err := h.accounts.GetLinkedAccount(r.Context(), userID, models.ProviderSteam)
	if errors.Is(err, ErrAccountMissing) {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no Steam account linked")
		return
	}
	if err != nil {
		h.internal(w, "get linked account", err)
		return
	}

	taskID, err := h.queue.EnqueueSync(r.Context(), userID, acct.ProviderAccountID)
	if err != nil {
		h.internal(w, "enqueue sync", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (h *Handler) listGames(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilter(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	games, total, err := h.library.ListByUser(r.Context(), chi.URLParam(r, "userID"), f)
	if err != nil {
		h.internal(w, "list games", err)
		return
	}
	skip, take := f.Page()
	httputil.WriteJSON(w, http.StatusOK, httputil.Page{Items: games, Total: total, Skip: skip, Take: take})
}

func (h *Handler) addGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GameID string `json:"game_id"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	gameID, err := uuid.Parse(req.GameID)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid game_id")
		return
	}

	o, err := h.library.Add(r.Context(), chi.URLParam(r, "userID"), gameID, models.ProviderManual)
	switch {
	case errors.Is(err, ownership.ErrAlreadyOwned):
		httputil.WriteError(w, http.StatusConflict, "CONFLICT", "game already in library")
	case errors.Is(err, ownership.ErrUnknownRef):
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "user or game not found")
	case err != nil:
		h.internal(w, "add game", err)
	default:
		httputil.WriteJSON(w, http.StatusCreated, o)
	}
}

func (h *Handler) removeGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	err := h.library.Remove(r.Context(), chi.URLParam(r, "userID"), gameID)
	if errors.Is(err, ownership.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "game not in library")
		return
	}
	if err != nil {
		h.internal(w, "remove game", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Status models.GameStatus `json:"status"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if !req.Status.Valid() {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid status")
		return
	}

	err := h.library.UpdateStatus(r.Context(), chi.URLParam(r, "userID"), gameID, req.Status)
	if errors.Is(err, ownership.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "game not in library")
		return
	}
	if err != nil {
		h.internal(w, "update status", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handler) unlink(w http.ResponseWriter, r *http.Request) {
	provider := models.Provider(strings.ToUpper(chi.URLParam(r, "provider")))
	if !provider.Valid() {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown provider")
		return
	}
	userID := chi.URLParam(r, "userID")
	removed, err := h.accounts.UnlinkAccount(r.Context(), userID, provider)
	if errors.Is(err, ErrAccountMissing) {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "account not linked")
		return
	}
	if err != nil {
		h.internal(w, "unlink account", err)
		return
	}
	h.logger.Info("account unlinked",
		zap.String("user_id", userID), zap.String("provider", string(provider)), zap.Int64("games_removed", removed))
	httputil.WriteNoContent(w)
}

func (h *Handler) internal(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", zap.Error(err))
	httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", op+" failed")
}

func gameIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "gameID"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid game id")
		return uuid.Nil, false
	}
	return id, true
}

func parseListFilter(r *http.Request) (ownership.ListFilter, error) {
	q := r.URL.Query()
	var f ownership.ListFilter
	if v := q.Get("status"); v != "" {
		s := models.GameStatus(strings.ToUpper(v))
		if !s.Valid() {
			return f, errors.New("invalid status")
		}
		f.Status = &s
	}
	if v := q.Get("provider"); v != "" {
		p := models.Provider(strings.ToUpper(v))
		if !p.Valid() {
			return f, errors.New("invalid provider")
		}
		f.Provider = &p
	}
	f.Name = q.Get("name")
	var err error
	if f.Skip, err = intParam(q.Get("skip")); err != nil {
		return f, errors.New("invalid skip")
	}
	if f.Take, err = intParam(q.Get("take")); err != nil {
		return f, errors.New("invalid take")
	}
	if f.Take > ownership.MaxTake {
		return f, errors.New("take must be at most " + strconv.Itoa(ownership.MaxTake))
	}
	return f, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("not a non-negative integer")
	}
	return n, nil
}
