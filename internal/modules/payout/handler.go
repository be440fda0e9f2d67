package payout

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"meetuply/internal/modules/payment"
	"meetuply/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	payoutGroup := rg.Group("/payout")
	{
		payoutGroup.POST("/card", h.AttachCard)
	}
}

type attachCardRequest struct {
	Pan     string `json:"pan" binding:"required,min=12,max=19"`
	ExpDate string `json:"exp_date" binding:"required,len=4"`
}

// AttachCard godoc
// @Summary      Attach payout card
// @Description  Binds the card organizer shares are paid out to
// @Tags         Payout
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Router       /payout/card [post]
func (h *Handler) AttachCard(c *gin.Context) {
	var req attachCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	user, err := h.service.AttachCard(c.Request.Context(), c.GetInt64("user_id"), req.Pan, req.ExpDate)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCardNumber), errors.Is(err, ErrInvalidExpDate):
			response.Error(c, http.StatusBadRequest, "INVALID_CARD", err.Error())
		case errors.Is(err, payment.ErrGatewayRejected):
			response.Error(c, http.StatusUnprocessableEntity, "CARD_REJECTED", "The gateway rejected this card")
		case errors.Is(err, payment.ErrGatewayUnavailable):
			response.Error(c, http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "Payment gateway unavailable")
		default:
			response.Error(c, http.StatusInternalServerError, "PAYOUT_ERROR", "Failed to attach card")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"card_pan": user.CardPan})
}
