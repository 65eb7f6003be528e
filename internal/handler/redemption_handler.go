package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/decode-labs/decode-api/internal/models"
	"github.com/decode-labs/decode-api/internal/service"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
	"github.com/decode-labs/decode-api/pkg/response"
)

// RedemptionHandler exposes reward redemption endpoints.
type RedemptionHandler struct {
	redemptions *service.RedemptionService
}

// NewRedemptionHandler constructs RedemptionHandler.
func NewRedemptionHandler(redemptions *service.RedemptionService) *RedemptionHandler {
	return &RedemptionHandler{redemptions: redemptions}
}

// Create godoc
// @Summary Redeem points for a reward
// @Tags Redemptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RedeemRequest true "Redemption payload"
// @Success 201 {object} response.Envelope
// @Router /redemptions [post]
func (h *RedemptionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	redemption, err := h.redemptions.Redeem(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, redemption)
}

// List godoc
// @Summary List redemptions
// @Tags Redemptions
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /redemptions [get]
func (h *RedemptionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.RedemptionFilter{
		Status: models.RedemptionStatus(c.Query("status")),
	}
	// Admins see everything; learners see their own.
	if claims.Role != models.RoleAdmin {
		filter.UserID = claims.UserID
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	redemptions, total, err := h.redemptions.ListRedemptions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, redemptions, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get a redemption
// @Tags Redemptions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Redemption ID"
// @Success 200 {object} response.Envelope
// @Router /redemptions/{id} [get]
func (h *RedemptionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	redemption, err := h.redemptions.GetRedemption(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role == models.RoleAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, redemption, nil)
}

// UpdateStatus godoc
// @Summary Update a redemption's fulfilment status
// @Tags Redemptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Redemption ID"
// @Param payload body service.UpdateRedemptionRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /redemptions/{id}/status [put]
func (h *RedemptionHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateRedemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	redemption, err := h.redemptions.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, redemption, nil)
}
