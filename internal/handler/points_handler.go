package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/decode-labs/decode-api/internal/models"
	"github.com/decode-labs/decode-api/internal/service"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
	"github.com/decode-labs/decode-api/pkg/response"
)

// PointsHandler exposes balance, history, leaderboard and statement endpoints.
type PointsHandler struct {
	points     *service.PointsService
	statements *service.StatementService
}

// NewPointsHandler constructs PointsHandler.
func NewPointsHandler(points *service.PointsService, statements *service.StatementService) *PointsHandler {
	return &PointsHandler{points: points, statements: statements}
}

// Balance godoc
// @Summary Get the caller's points balance
// @Tags Points
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /points/balance [get]
func (h *PointsHandler) Balance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	balance, err := h.points.Balance(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// History godoc
// @Summary List the caller's points history
// @Tags Points
// @Produce json
// @Security BearerAuth
// @Param kind query string false "Filter by kind"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /points/history [get]
func (h *PointsHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.LedgerFilter{
		UserID: claims.UserID,
		Kind:   models.LedgerKind(c.Query("kind")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	entries, total, err := h.points.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Leaderboard godoc
// @Summary Get the points leaderboard
// @Tags Points
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /points/leaderboard [get]
func (h *PointsHandler) Leaderboard(c *gin.Context) {
	entries, err := h.points.Leaderboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// RequestStatement godoc
// @Summary Request a points statement export
// @Tags Points
// @Produce json
// @Security BearerAuth
// @Success 202 {object} response.Envelope
// @Router /points/statements [post]
func (h *PointsHandler) RequestStatement(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	statement, err := h.statements.Request(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, statement, nil)
}

// GetStatement godoc
// @Summary Get a statement and its download link
// @Tags Points
// @Produce json
// @Security BearerAuth
// @Param id path string true "Statement ID"
// @Success 200 {object} response.Envelope
// @Router /points/statements/{id} [get]
func (h *PointsHandler) GetStatement(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	link, err := h.statements.Get(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadStatement godoc
// @Summary Download a rendered statement with a signed token
// @Tags Points
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /points/statements/download [get]
func (h *PointsHandler) DownloadStatement(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	reader, err := h.statements.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer func() { _ = reader.Close() }()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="points-statement.pdf"`)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}
