package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gotomicro/ego/core/elog"

	"market-finder/internal/models"
	"market-finder/internal/notice"
	"market-finder/internal/redemption"
	"market-finder/internal/service"
	"market-finder/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
	logger      *elog.Component
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	Logger      *elog.Component
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
		Logger:      elog.DefaultLogger,
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	if opts.Logger == nil {
		opts.Logger = elog.DefaultLogger
	}
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
		logger:      opts.Logger,
	}
}

// Routes mounts the view endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/directory-views", func(r chi.Router) {
		r.Post("/", h.OpenDirectory)
		r.Route("/{view_id}", func(r chi.Router) {
			r.Get("/", h.GetDirectory)
			r.Delete("/", h.CloseDirectory)
			r.Put("/category", h.SelectCategory)
			r.Post("/location", h.ReportLocation)
		})
	})

	r.Route("/market-views", func(r chi.Router) {
		r.Post("/", h.OpenMarket)
		r.Route("/{view_id}", func(r chi.Router) {
			r.Get("/", h.GetMarketView)
			r.Delete("/", h.CloseMarket)
			r.Post("/camera", h.OpenCamera)
			r.Delete("/camera", h.CloseCamera)
			r.Post("/scans", h.SubmitScans)
			r.Post("/confirmation", h.Confirm)
		})
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// OpenDirectory handles POST /directory-views
func (h *Handler) OpenDirectory(w http.ResponseWriter, r *http.Request) {
	var req models.OpenDirectoryRequest
	// the body is optional: a front-end without a location answer yet sends none
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}

	st, err := h.service.OpenDirectory(r.Context(), req.Location)
	if err != nil {
		h.respondServiceError(w, err, nil)
		return
	}
	h.respondJSON(w, http.StatusCreated, st)
}

// GetDirectory handles GET /directory-views/{view_id}
func (h *Handler) GetDirectory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.viewID(w, r)
	if !ok {
		return
	}

	st, err := h.service.Directory(id)
	if err != nil {
		h.respondServiceError(w, err, nil)
		return
	}
	h.respondJSON(w, http.StatusOK, st)
}

// SelectCategory handles PUT /directory-views/{view_id}/category
func (h *Handler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.viewID(w, r)
	if !ok {
		return
	}

	var req models.SelectCategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.CategoryID = validation.SanitizeString(req.CategoryID)

	st, err := h.service.SelectCategory(r.Context(), id, req.CategoryID)
	if err != nil {
		h.respondServiceError(w, err, nil)
		return
	}
	h.respondJSON(w, http.StatusOK, st)
}

// ReportLocation handles POST /directory-views/{view_id}/location
func (h *Handler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.viewID(w, r)
	if !ok {
		return
	}

	var req models.LocationReport
	if !h.decode(w, r, &req) {
		return
	}

	st, err := h.service.ReportLocation(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, err, nil)
		return
	}
	h.respondJSON(w, http.StatusOK, st)
}

// CloseDirectory handles DELETE /directory-views/{view_id}
func (h *Handler) CloseDirectory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.viewID(w, r)
	if !ok {
		return
	}

	if err := h.service.CloseDirectory(id); err != nil {
		h.respondServiceError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OpenMarket handles POST /market-views
func (h *Handler) OpenMarket(w http.ResponseWriter, r *http.Request) {
	var req models.OpenMarketRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.MarketID = validation.SanitizeString(req.MarketID)

	st, err := h.service.OpenMarket(r.Context(), req.MarketID)
	if err != nil {
		h.respondServiceError(w, err, st.Notices)
		return
	}
	h.respondJSON(w, http.StatusCreated, st)
}

// GetMarketView handles GET /market-views/{view_id}
func (h *Handler) GetMarketView(w http.ResponseWriter, r *http.Request) {
	id, ok := h.viewID(w, r)
	if !ok {
		return
	}

	st, err := h.service.MarketView(id)
	if err != nil {
		h.respondServiceError(w, err, nil)
		return
	}
	h.respondJSON(w, http.StatusOK, st)
}

// OpenCamera handles POST /market-views/{view_id}/camera
func (h *Handler) OpenCamera(w http.ResponseWriter, r *http.Request) {
	id, ok := h.viewID(w, r)
	if !ok {
		return
	}

	var req models.CameraRequest
	if !h.decode(w, r, &req) {
		return
	}

	st, err := h.service.OpenCamera(r.Context(), id, req.Granted)
	if err != nil {
		h.respondServiceError(w, err, st.Notices)
		return
	}
	h.respondJSON(w, http.StatusOK, st)
}

// CloseCamera handles DELETE /market-views/{view_id}/camera
func (h *Handler) CloseCamera(w http.ResponseWriter, r *http.Request) {
	id, ok := h.viewID(w, r)
	if !ok {
		return
	}

	st, err := h.service.CloseCamera(id)
	if err != nil {
		h.respondServiceError(w, err, st.Notices)
		return
	}
	h.respondJSON(w, http.StatusOK, st)
}

// SubmitScans handles POST /market-views/{view_id}/scans
func (h *Handler) SubmitScans(w http.ResponseWriter, r *http.Request) {
	id, ok := h.viewID(w, r)
	if !ok {
		return
	}

	var req models.ScansRequest
	if !h.decode(w, r, &req) {
		return
	}
	for i := range req.Payloads {
		req.Payloads[i] = validation.SanitizeString(req.Payloads[i])
	}

	res, err := h.service.SubmitScans(r.Context(), id, req.Payloads)
	if err != nil {
		h.respondServiceError(w, err, nil)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// Confirm handles POST /market-views/{view_id}/confirmation
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.viewID(w, r)
	if !ok {
		return
	}

	var req models.ConfirmationRequest
	if !h.decode(w, r, &req) {
		return
	}

	st, err := h.service.Confirm(r.Context(), id, req.Accept)
	if err != nil {
		h.respondServiceError(w, err, st.Notices)
		return
	}
	h.respondJSON(w, http.StatusOK, st)
}

// CloseMarket handles DELETE /market-views/{view_id}
func (h *Handler) CloseMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.viewID(w, r)
	if !ok {
		return
	}

	if err := h.service.CloseMarket(id); err != nil {
		h.respondServiceError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) viewID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := validation.SanitizeString(chi.URLParam(r, "view_id"))
	if err := validation.ValidateViewID(id); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

// decode reads a JSON body into dst and answers the request itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			h.respondError(w, http.StatusBadRequest, "request body is required")
		case errors.As(err, &maxErr):
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		}
		return false
	}
	return true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error, notices []notice.Notice) {
	status := http.StatusInternalServerError
	switch {
	case validation.IsValidationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrViewNotFound):
		status = http.StatusNotFound
	case errors.Is(err, redemption.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, service.ErrMarketUnavailable):
		status = http.StatusBadGateway
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", elog.FieldErr(err))
		message = "internal error"
	}
	h.respondJSON(w, status, models.ErrorResponse{Error: message, Notices: notices})
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("write response failed", elog.FieldErr(err))
	}
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
