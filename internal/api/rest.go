package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/buonappetort/rex/internal/dataset"
	"github.com/buonappetort/rex/internal/model"
	"github.com/buonappetort/rex/internal/query"
	"github.com/buonappetort/rex/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Deps holds the dependencies for the HTTP handler.
type Deps struct {
	Service *service.Service
	Logger  *slog.Logger
}

// NewHandler returns the HTTP handler serving the rex API.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handler{svc: deps.Service, log: deps.Logger}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handleHealth)
		r.Post("/rex", h.create)
		r.Get("/rex", h.list)
		r.Get("/rex/{id}", h.get)
		r.Post("/seed-user", h.seed)
		r.Post("/search", h.search)
		r.Post("/load-mcauley-data", h.ingest)
	})
	return r
}

type handler struct {
	svc *service.Service
	log *slog.Logger
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var c model.Candidate
	if !decodeBody(w, r, &c) {
		return
	}
	item, err := h.svc.Create(r.Context(), c)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := query.Params{
		OwnerID: firstNonEmpty(q.Get("ownerId"), q.Get("userId")),
		Order:   query.ParseOrder(q.Get("order")),
		Page:    parseIntParam(q.Get("page")),
		Limit:   parseIntParam(q.Get("limit")),
	}
	page, err := h.svc.List(r.Context(), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	if page.Items == nil {
		page.Items = []model.Item{}
	}
	if !page.Paginated {
		writeJSON(w, http.StatusOK, page.Items)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type seedRequest struct {
	OwnerID string `json:"ownerId"`
	UserID  string `json:"userId"`
}

type seedResponse struct {
	OwnerID string `json:"ownerId"`
	Seeded  int    `json:"seeded"`
}

func (h *handler) seed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	owner := strings.TrimSpace(firstNonEmpty(req.OwnerID, req.UserID))
	n, err := h.svc.Seed(r.Context(), owner)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, seedResponse{OwnerID: owner, Seeded: n})
}

type searchRequest struct {
	Query   string `json:"query"`
	OwnerID string `json:"ownerId"`
	UserID  string `json:"userId"`
	UseLLM  *bool  `json:"useLLM"`
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Search(r.Context(), service.SearchRequest{
		Query:       strings.TrimSpace(req.Query),
		OwnerID:     firstNonEmpty(req.OwnerID, req.UserID),
		UseExternal: req.UseLLM == nil || *req.UseLLM,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type ingestRequest struct {
	Categories   []string `json:"categories"`
	Limit        *int     `json:"limit"`
	FiveStarOnly *bool    `json:"fiveStarOnly"`
	Streaming    *bool    `json:"streaming"`
}

func (h *handler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	opts := dataset.DefaultOptions()
	opts.Categories = req.Categories
	if req.Limit != nil {
		opts.Limit = *req.Limit
	}
	if req.FiveStarOnly != nil {
		opts.FiveStarOnly = *req.FiveStarOnly
	}
	if req.Streaming != nil {
		opts.Streaming = *req.Streaming
	}

	res, err := h.svc.Ingest(r.Context(), opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// fail maps a service error onto the error payload.
func (h *handler) fail(w http.ResponseWriter, err error) {
	switch model.Classify(err) {
	case model.KindBadInput:
		httpError(w, http.StatusBadRequest, string(model.KindBadInput), "%s", err.Error())
	case model.KindNotFound:
		httpError(w, http.StatusNotFound, string(model.KindNotFound), "not found")
	default:
		if errors.Is(err, service.ErrIngestDisabled) {
			httpError(w, http.StatusInternalServerError, string(model.KindInternal), "%s", err.Error())
			return
		}
		h.log.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, string(model.KindInternal), "internal error")
	}
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, string(model.KindBadInput), "failed to read request body: %v", err)
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		httpError(w, http.StatusBadRequest, string(model.KindBadInput), "invalid JSON: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

// parseIntParam returns 0 for a missing or non-numeric value.
func parseIntParam(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
