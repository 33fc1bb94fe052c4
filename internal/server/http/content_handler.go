package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	authapp "mlwio/internal/auth/app"
	authdomain "mlwio/internal/auth/domain"
	catalogapp "mlwio/internal/catalog/app"
	catalogdomain "mlwio/internal/catalog/domain"
	"mlwio/internal/shared/logging"
)

// ContentHandler serves the catalog API.
type ContentHandler struct {
	catalog *catalogapp.Service
	auth    *authapp.Service
	logger  logging.Logger
}

// NewContentHandler constructs a ContentHandler. The auth service is used to
// re-check credentials before deletes.
func NewContentHandler(catalog *catalogapp.Service, auth *authapp.Service) *ContentHandler {
	return &ContentHandler{
		catalog: catalog,
		auth:    auth,
		logger:  logging.NewComponentLogger("ContentHandler"),
	}
}

// HandleList processes GET /api/content, optionally filtered by ?category=.
func (h *ContentHandler) HandleList(c *gin.Context) {
	var (
		items []catalogdomain.ContentItem
		err   error
	)
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		items, err = h.catalog.ListByCategory(c.Request.Context(), category)
	} else {
		items, err = h.catalog.ListContent(c.Request.Context())
	}
	if err != nil {
		respondInternal(c, h.logger, "Get content", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// HandleSearch processes GET /api/content/search?q=&category=.
func (h *ContentHandler) HandleSearch(c *gin.Context) {
	items, err := h.catalog.SearchContent(c.Request.Context(), c.Query("q"), c.Query("category"))
	if err != nil {
		if errors.Is(err, catalogdomain.ErrSearchQueryRequired) {
			respondError(c, http.StatusBadRequest, msgSearchQuery)
			return
		}
		respondInternal(c, h.logger, "Search content", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// HandleGet processes GET /api/content/:id.
func (h *ContentHandler) HandleGet(c *gin.Context) {
	item, err := h.catalog.GetContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeContentError(c, "Get content by ID", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// HandleCreate processes POST /api/content.
func (h *ContentHandler) HandleCreate(c *gin.Context) {
	var input catalogdomain.ContentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, bindErrorMessage(err))
		return
	}
	item, err := h.catalog.CreateContent(c.Request.Context(), input)
	if err != nil {
		h.writeContentError(c, "Create content", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// HandleUpdate processes PUT /api/content/:id.
func (h *ContentHandler) HandleUpdate(c *gin.Context) {
	var input catalogdomain.ContentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, bindErrorMessage(err))
		return
	}
	item, err := h.catalog.UpdateContent(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.writeContentError(c, "Update content", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// HandleDelete processes DELETE /api/content/:id. The caller must repeat
// their username and password in the body.
func (h *ContentHandler) HandleDelete(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		respondError(c, http.StatusBadRequest, msgCredentials)
		return
	}
	if _, err := h.auth.VerifyCredentials(c.Request.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, authdomain.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, msgWrongPassword)
			return
		}
		respondInternal(c, h.logger, "Delete content", err)
		return
	}
	if err := h.catalog.DeleteContent(c.Request.Context(), c.Param("id")); err != nil {
		h.writeContentError(c, "Delete content", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgContentDeleted})
}

// HandleUploadLogs processes GET /api/upload-logs.
func (h *ContentHandler) HandleUploadLogs(c *gin.Context) {
	logs, err := h.catalog.ListUploadLogs(c.Request.Context())
	if err != nil {
		respondInternal(c, h.logger, "Get upload logs", err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *ContentHandler) writeContentError(c *gin.Context, op string, err error) {
	var verr *catalogdomain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, catalogdomain.ErrContentNotFound):
		respondError(c, http.StatusNotFound, msgContentNotFound)
	default:
		respondInternal(c, h.logger, op, err)
	}
}
