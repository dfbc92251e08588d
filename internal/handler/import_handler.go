package handler

import (
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mcatalog/internal/pkg/errcode"
	"github.com/xxxsen/mcatalog/internal/pkg/response"
	"github.com/xxxsen/mcatalog/internal/service"
)

type ImportHandler struct {
	imports       *service.ImportService
	maxUploadSize int64
}

func NewImportHandler(imports *service.ImportService, maxUploadSize int64) *ImportHandler {
	return &ImportHandler{imports: imports, maxUploadSize: maxUploadSize}
}

// Create accepts a multipart descriptor upload: "file" plus the declared "entries" count.
func (h *ImportHandler) Create(c *gin.Context) {
	entries, err := strconv.Atoi(strings.TrimSpace(c.PostForm("entries")))
	if err != nil || entries < 0 {
		response.Error(c, errcode.ErrInvalid, "entries must be a non-negative integer")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		response.Error(c, errcode.ErrImportTooLarge, "file too large (max "+formatUploadLimit(h.maxUploadSize)+")")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, errcode.ErrImportFailed, "failed to read file")
		return
	}
	task, err := h.imports.CreateTask(c.Request.Context(), getUserID(c), data, entries)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"task_id": task.ID, "total_entries": task.TotalEntries})
}

func (h *ImportHandler) List(c *gin.Context) {
	items, err := h.imports.ListProgress(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *ImportHandler) Get(c *gin.Context) {
	item, err := h.imports.GetProgress(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *ImportHandler) Entries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, err := h.imports.ListEntries(c.Request.Context(), getUserID(c), c.Param("id"), c.Query("status"), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}
