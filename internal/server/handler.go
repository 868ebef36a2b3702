package server

import (
	"context"
	"io"
	"net/http"

	"aggregator/internal/config"
	"aggregator/internal/dict"
	"aggregator/internal/metrics"
	"aggregator/internal/pipeline"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Registrar inserts a new dictionary entry; *dict.Store satisfies it.
type Registrar interface {
	Register(ctx context.Context, field, name string) (int32, error)
}

// Handler serves the dictionary registration API and the operational
// endpoints. Registration writes go straight to the reference store; the
// pipeline picks them up on its next cache refresh.
type Handler struct {
	cfg     config.Config
	metrics *metrics.Metrics
	store   Registrar
	tracked map[string]bool
}

func NewHandler(cfg config.Config, m *metrics.Metrics, store Registrar) *Handler {
	tracked := make(map[string]bool, len(cfg.Dictionaries))
	for _, d := range cfg.Dictionaries {
		tracked[d] = true
	}
	return &Handler{cfg: cfg, metrics: m, store: store, tracked: tracked}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/ua", h.HandleUA)
	mux.HandleFunc("POST /api/v1/{dict}", h.HandleRegister)
	mux.HandleFunc("/metrics", h.HandleMetrics)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
}

// HandleRegister inserts one entry into the named dictionary. The name must
// be a JSON string; anything else is a client error. Unknown dictionaries
// 404 so a typo cannot create a stray collection.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	field := r.PathValue("dict")
	if !h.tracked[field] {
		http.Error(w, "unknown dictionary", http.StatusNotFound)
		return
	}

	var body struct {
		Name any `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	name, ok := body.Name.(string)
	if !ok || name == "" {
		http.Error(w, "name must be a non-empty string", http.StatusBadRequest)
		return
	}

	code, err := h.store.Register(r.Context(), field, name)
	if err != nil {
		log.Error().Err(err).Str("dict", field).Msg("dictionary register failed")
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dict.Entry{Name: name, Code: code})
}

// HandleUA parses a user-agent string and registers each derived part into
// its dictionary, best-effort: a failed part is logged and skipped, the
// response is "ok" regardless, matching how clients batch-feed observed UAs.
func (h *Handler) HandleUA(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UA string `json:"ua"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UA == "" {
		http.Error(w, "ua must be a non-empty string", http.StatusBadRequest)
		return
	}

	browser, devType, devVendor, osName, _ := pipeline.UAParts(body.UA)
	parts := map[string]string{
		"browser":         browser,
		"deviceType":      devType,
		"deviceVendor":    devVendor,
		"operationSystem": osName,
	}
	for field, name := range parts {
		if name == "" || !h.tracked[field] {
			continue
		}
		if _, err := h.store.Register(r.Context(), field, name); err != nil {
			log.Error().Err(err).Str("dict", field).Str("name", name).Msg("ua register failed")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `"ok"`)
}

func (h *Handler) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, h.metrics.String())
}
