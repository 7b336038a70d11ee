package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"product-catalog/internal/model"
	"product-catalog/internal/service"

	"github.com/docker/go-units"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	// jsonBodyLimit caps product form bodies.
	jsonBodyLimit = 1 << 20
	// multipartOverhead is added to the image limit for part headers and boundaries.
	multipartOverhead = 1 << 20
	// imageFormField is the multipart field carrying the upload.
	imageFormField = "file"
)

// ProductHandler handles product-related HTTP requests.
type ProductHandler struct {
	service       service.ProductService
	maxUploadSize int64
	logger        zerolog.Logger
}

// NewProductHandler creates a new product handler. maxUploadSize bounds the
// accepted image size in bytes.
func NewProductHandler(service service.ProductService, maxUploadSize int64, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
		logger:        logger.With().Str("handler", "product").Logger(),
	}
}

// Register handles POST /api/products requests.
func (h *ProductHandler) Register(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}

	product, err := h.service.Register(r.Context(), form)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

// List handles GET /api/products requests. A title query searches, anything
// else lists the whole catalogue.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Search(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetByID handles GET /api/products/{id} requests.
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	product, err := h.service.Find(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// Update handles PUT /api/products/{id} requests.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}

	product, err := h.service.Update(r.Context(), id, form)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// Delete handles DELETE /api/products/{id} requests.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AttachImage handles PUT /api/products/{id}/image multipart uploads.
func (h *ProductHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	limit := h.maxUploadSize + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, r, http.StatusBadRequest, string(model.KindValidation),
				fmt.Sprintf("upload exceeds the %s limit", units.HumanSize(float64(h.maxUploadSize))), h.logger)
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, r, http.StatusBadRequest, string(model.KindValidation),
				fmt.Sprintf("multipart field %q is required", imageFormField), h.logger)
		default:
			writeError(w, r, http.StatusBadRequest, string(model.KindValidation),
				"request must be a multipart form", h.logger)
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, string(model.KindValidation), "failed to read uploaded file", h.logger)
		return
	}

	product, err := h.service.AttachImage(r.Context(), id, data, header.Filename)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// FetchImage handles GET /api/products/{id}/images/{imagePath} requests and
// writes the raw image bytes.
func (h *ProductHandler) FetchImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	image, err := h.service.FetchImage(r.Context(), id, chi.URLParam(r, "imagePath"))
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", image.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(image.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(image.Data); err != nil {
		h.logger.Debug().Err(err).Int64("product_id", id).Msg("client went away while sending image")
	}
}

func (h *ProductHandler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := productID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidID,
			fmt.Sprintf("invalid product ID %q", chi.URLParam(r, "id")), h.logger)
	}
	return id, ok
}

func (h *ProductHandler) decodeForm(w http.ResponseWriter, r *http.Request) (model.ProductForm, bool) {
	var form model.ProductForm

	r.Body = http.MaxBytesReader(w, r.Body, jsonBodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return form, false
	}

	return form, true
}
