package promo

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"meetuply/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/promo/redeem", h.Redeem)
}

type redeemRequest struct {
	Code string `json:"code" binding:"required,max=64"`
}

// Redeem godoc
// @Summary      Redeem promo code
// @Description  Credits the code's coins to the caller's wallet, once per user
// @Tags         Promo
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Router       /promo/redeem [post]
func (h *Handler) Redeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	w, err := h.service.Redeem(c.Request.Context(), c.GetInt64("user_id"), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrCodeNotFound):
			response.Error(c, http.StatusNotFound, "CODE_NOT_FOUND", "Promo code not found")
		case errors.Is(err, ErrCodeExpired):
			response.Error(c, http.StatusGone, "CODE_EXPIRED", "Promo code expired or disabled")
		case errors.Is(err, ErrAlreadyRedeemed):
			response.Error(c, http.StatusConflict, "ALREADY_REDEEMED", "Promo code already redeemed")
		default:
			response.Error(c, http.StatusInternalServerError, "PROMO_ERROR", "Failed to redeem code")
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"balance": w.Balance})
}
