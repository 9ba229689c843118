package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/stmbus/stm-go/internal/arrivals"
	"github.com/stmbus/stm-go/internal/feed"
	"github.com/stmbus/stm-go/pkg/stm"
)

const (
	defaultMaxArrivals = 5
	maxArrivalsCap     = 10
)

// Handler handles HTTP requests
type Handler struct {
	client stm.Client
}

// NewHandler creates a new HTTP handler
func NewHandler(client stm.Client) *Handler {
	return &Handler{client: client}
}

// RegisterRoutes registers all routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.handleIndex).Methods("GET")
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/api/resolve", h.handleResolve).Methods("GET")
	r.HandleFunc("/api/inspect/{q}", h.handleInspect).Methods("GET")
	r.HandleFunc("/api/stop/{query}", h.handleStop).Methods("GET")
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Query string `json:"query,omitempty"`
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{
		"title":  "stm-go",
		"readme": "Next-bus arrivals: /api/resolve?q=, /api/stop/{code-or-id}?max=",
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeJSON(w, []struct{}{})
		return
	}
	h.writeJSON(w, h.client.ResolveStops(q))
}

func (h *Handler) handleInspect(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(mux.Vars(r)["q"])
	h.writeJSON(w, h.client.InspectStops(q))
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(mux.Vars(r)["query"])

	max := defaultMaxArrivals
	if s := r.URL.Query().Get("max"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			max = v
		}
	}
	if max > maxArrivalsCap {
		max = maxArrivalsCap
	}

	resp, err := h.client.Arrivals(r.Context(), query, max)
	if err != nil {
		var upstream *feed.UpstreamError
		switch {
		case errors.Is(err, arrivals.ErrStopNotFound):
			h.writeError(w, "stop_not_found", query, http.StatusNotFound)
		case errors.As(err, &upstream):
			h.writeError(w, "upstream_feed_error", query, http.StatusBadGateway)
		default:
			h.writeError(w, "server_error", query, http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.writeError(w, "encode_error", "", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code, query string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Query: query})
}
