package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/service"
	"github.com/rs/zerolog/log"
)

const defaultAutocompleteLimit = 20

type InventoryHandler struct {
	service   *service.InventoryService
	uploadDir string
}

func NewInventoryHandler(inventoryService *service.InventoryService, uploadDir string) *InventoryHandler {
	return &InventoryHandler{service: inventoryService, uploadDir: uploadDir}
}

// categoryParam reads the ?type= query parameter. When required is false a
// missing value falls back to the professional category.
func categoryParam(c *gin.Context, required bool) (domain.Category, bool) {
	return resolveCategory(c, c.Query("type"), required)
}

func resolveCategory(c *gin.Context, raw string, required bool) (domain.Category, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" && !required {
		return domain.CategoryProfessional, true
	}
	category, err := domain.ParseCategory(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return category, true
}

// writeError maps service errors onto HTTP status codes.
func writeError(c *gin.Context, err error, message string) {
	var (
		formatErr    *domain.FormatError
		ingestionErr *domain.IngestionError
		status       int
	)
	switch {
	case errors.As(err, &formatErr), errors.Is(err, domain.ErrNoSources), errors.Is(err, domain.ErrInvalidNeeds):
		status = http.StatusBadRequest
	case errors.As(err, &ingestionErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	default:
		_ = c.Error(err)
		log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// List returns every product of a category with its replenishment view.
func (h *InventoryHandler) List(c *gin.Context) {
	category, ok := categoryParam(c, false)
	if !ok {
		return
	}
	views, err := h.service.List(c.Request.Context(), category)
	if err != nil {
		writeError(c, err, "failed to list inventory")
		return
	}
	c.JSON(http.StatusOK, views)
}

// Search matches on ?name= or ?code=; the keyword "all" lists everything.
func (h *InventoryHandler) Search(c *gin.Context) {
	category, ok := categoryParam(c, false)
	if !ok {
		return
	}
	views, err := h.service.Search(c.Request.Context(), category, c.Query("name"), c.Query("code"))
	if err != nil {
		writeError(c, err, "failed to search inventory")
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *InventoryHandler) Autocomplete(c *gin.Context) {
	category, ok := categoryParam(c, false)
	if !ok {
		return
	}
	limit := defaultAutocompleteLimit
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("limit"))); err == nil && v > 0 {
		limit = v
	}
	names, err := h.service.Autocomplete(c.Request.Context(), category, c.Query("partial"), limit)
	if err != nil {
		writeError(c, err, "failed to autocomplete names")
		return
	}
	c.JSON(http.StatusOK, names)
}

func (h *InventoryHandler) LowStock(c *gin.Context) {
	category, ok := categoryParam(c, true)
	if !ok {
		return
	}
	views, err := h.service.LowStock(c.Request.Context(), category)
	if err != nil {
		writeError(c, err, "failed to list low stock")
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *InventoryHandler) Summary(c *gin.Context) {
	category, ok := categoryParam(c, false)
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), category)
	if err != nil {
		writeError(c, err, "failed to summarize inventory")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *InventoryHandler) Item(c *gin.Context) {
	category, ok := categoryParam(c, false)
	if !ok {
		return
	}
	key := domain.NewProductKey(c.Query("name"), c.Query("code"))
	if key.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	view, err := h.service.Item(c.Request.Context(), category, key)
	if err != nil {
		writeError(c, err, "failed to fetch inventory item")
		return
	}
	c.JSON(http.StatusOK, view)
}

type updateInfoRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Code string `json:"code"`
	domain.NeedsUpdate
}

// UpdateInfo applies a partial needs update: any of need, location and unitCount.
func (h *InventoryHandler) UpdateInfo(c *gin.Context) {
	var req updateInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	raw := c.Query("type")
	if raw == "" {
		raw = req.Type
	}
	category, ok := resolveCategory(c, raw, false)
	if !ok {
		return
	}
	if req.NeedsUpdate.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "one of need, location or unitCount is required"})
		return
	}

	key := domain.NewProductKey(req.Name, req.Code)
	profile, err := h.service.UpdateInfo(c.Request.Context(), category, key, req.NeedsUpdate)
	if err != nil {
		writeError(c, err, "failed to update needs profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"key":     key,
		"profile": profile,
	})
}

// Upload reconciles the multipart exports stock, incoming and dispensed of one category.
func (h *InventoryHandler) Upload(c *gin.Context) {
	category, ok := categoryParam(c, true)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
		return
	}
	defer form.RemoveAll()

	dir, err := os.MkdirTemp(h.uploadDir, "upload-*")
	if err != nil {
		writeError(c, err, "failed to prepare upload directory")
		return
	}
	defer os.RemoveAll(dir)

	files := make([]domain.UploadedFile, 0, len(form.File))
	for field, headers := range form.File {
		kind, err := domain.ParseSourceKind(field)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(headers) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("exactly one %s file is expected", field)})
			return
		}
		saved, err := h.save(c, dir, field, headers[0])
		if err != nil {
			writeError(c, err, "failed to save uploaded file")
			return
		}
		saved.Kind = kind
		files = append(files, saved)
	}

	result, err := h.service.Upload(c.Request.Context(), category, files)
	if err != nil {
		writeError(c, err, "failed to reconcile upload")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ImportNeeds loads needs profiles from an uploaded CSV or XLSX sheet.
func (h *InventoryHandler) ImportNeeds(c *gin.Context) {
	category, ok := categoryParam(c, false)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	dir, err := os.MkdirTemp(h.uploadDir, "needs-*")
	if err != nil {
		writeError(c, err, "failed to prepare upload directory")
		return
	}
	defer os.RemoveAll(dir)

	saved, err := h.save(c, dir, "needs", header)
	if err != nil {
		writeError(c, err, "failed to save uploaded file")
		return
	}

	imported, diags, err := h.service.ImportNeeds(c.Request.Context(), category, saved.Path)
	if err != nil {
		writeError(c, err, "failed to import needs")
		return
	}
	if diags == nil {
		diags = []domain.Diagnostic{}
	}
	c.JSON(http.StatusOK, gin.H{
		"imported":    imported,
		"diagnostics": diags,
	})
}

// save stores an uploaded part under dir, keeping the original extension for format detection.
func (h *InventoryHandler) save(c *gin.Context, dir, stem string, header *multipart.FileHeader) (domain.UploadedFile, error) {
	path := filepath.Join(dir, stem+strings.ToLower(filepath.Ext(header.Filename)))
	if err := c.SaveUploadedFile(header, path); err != nil {
		return domain.UploadedFile{}, err
	}
	return domain.UploadedFile{
		Filename: filepath.Base(header.Filename),
		Path:     path,
		Size:     header.Size,
	}, nil
}

func (h *InventoryHandler) RecentSearches(c *gin.Context) {
	category, ok := categoryParam(c, false)
	if !ok {
		return
	}
	items, err := h.service.RecentSearches(c.Request.Context(), category)
	if err != nil {
		writeError(c, err, "failed to fetch recent searches")
		return
	}
	c.JSON(http.StatusOK, items)
}

// AddRecentSearch records ?keyword= at the front of the category's list.
func (h *InventoryHandler) AddRecentSearch(c *gin.Context) {
	category, ok := categoryParam(c, false)
	if !ok {
		return
	}
	keyword := strings.TrimSpace(c.Query("keyword"))
	if keyword == "" {
		c.JSON(http.StatusOK, gin.H{"status": "empty"})
		return
	}
	if err := h.service.AddRecentSearch(c.Request.Context(), category, keyword); err != nil {
		writeError(c, err, "failed to save recent search")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *InventoryHandler) Runs(c *gin.Context) {
	category, ok := categoryParam(c, false)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := h.service.Runs(c.Request.Context(), category, limit)
	if err != nil {
		writeError(c, err, "failed to list reconciliation runs")
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (h *InventoryHandler) Run(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}
	run, err := h.service.Run(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to fetch reconciliation run")
		return
	}
	c.JSON(http.StatusOK, run)
}
