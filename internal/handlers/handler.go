package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/content"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/feed"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/identity"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/registration"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/riddle"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db        store.DataStore
	redis     *store.RedisStore
	feed      *feed.Service
	registrar *registration.Registrar
	identity  *identity.Provider
	riddles   *riddle.Pool
	content   *content.Content
	logger    zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(
	db store.DataStore,
	redis *store.RedisStore,
	feedSvc *feed.Service,
	registrar *registration.Registrar,
	provider *identity.Provider,
	riddles *riddle.Pool,
	gameContent *content.Content,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		db:        db,
		redis:     redis,
		feed:      feedSvc,
		registrar: registrar,
		identity:  provider,
		riddles:   riddles,
		content:   gameContent,
		logger:    logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
