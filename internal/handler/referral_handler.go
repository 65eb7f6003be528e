package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decode-labs/decode-api/internal/service"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
	"github.com/decode-labs/decode-api/pkg/response"
)

// ReferralHandler exposes candidate referral endpoints.
type ReferralHandler struct {
	referrals *service.ReferralService
}

// NewReferralHandler constructs ReferralHandler.
func NewReferralHandler(referrals *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// Create godoc
// @Summary Submit a candidate referral
// @Tags Referrals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateReferralRequest true "Referral payload"
// @Success 201 {object} response.Envelope
// @Router /referrals [post]
func (h *ReferralHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	referral, err := h.referrals.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, referral)
}

// List godoc
// @Summary List the caller's referrals
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /referrals [get]
func (h *ReferralHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	referrals, err := h.referrals.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, referrals, nil)
}

// UpdateStatus godoc
// @Summary Update a referral's hiring status
// @Tags Referrals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Referral ID"
// @Param payload body service.UpdateReferralRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /referrals/{id}/status [put]
func (h *ReferralHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	referral, err := h.referrals.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, referral, nil)
}
