package subscription

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"meetuply/internal/domain"
	"meetuply/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	subGroup := rg.Group("/subscription")
	{
		subGroup.GET("", h.Get)
		subGroup.POST("", h.Subscribe)
		subGroup.DELETE("", h.Cancel)
	}
}

type subscribeRequest struct {
	BillingPeriod string `json:"billing_period" binding:"required,oneof=monthly yearly"`
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"max=256"`
}

// Get godoc
// @Summary      Current subscription
// @Tags         Subscription
// @Security     BearerAuth
// @Produce      json
// @Router       /subscription [get]
func (h *Handler) Get(c *gin.Context) {
	sub, err := h.service.Active(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) {
			response.Success(c, http.StatusOK, gin.H{"subscription": nil})
			return
		}
		response.Error(c, http.StatusInternalServerError, "SUBSCRIPTION_ERROR", "Failed to load subscription")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subscription": sub})
}

// Subscribe godoc
// @Summary      Start subscription
// @Description  Activates the premium plan, making the wallet unlimited until expiry
// @Tags         Subscription
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Router       /subscription [post]
func (h *Handler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	sub, err := h.service.Subscribe(c.Request.Context(), c.GetInt64("user_id"), domain.BillingPeriod(req.BillingPeriod))
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadySubscribed):
			response.Error(c, http.StatusConflict, "ALREADY_SUBSCRIBED", "An active subscription already exists")
		case errors.Is(err, ErrUnknownBillingPeriod):
			response.Error(c, http.StatusBadRequest, "INVALID_PERIOD", "Unknown billing period")
		default:
			response.Error(c, http.StatusInternalServerError, "SUBSCRIPTION_ERROR", "Failed to subscribe")
		}
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"subscription": sub})
}

// Cancel godoc
// @Summary      Cancel subscription
// @Tags         Subscription
// @Security     BearerAuth
// @Accept       json
// @Router       /subscription [delete]
func (h *Handler) Cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.service.Cancel(c.Request.Context(), c.GetInt64("user_id"), req.Reason); err != nil {
		if errors.Is(err, ErrNoActiveSubscription) {
			response.Error(c, http.StatusNotFound, "NO_SUBSCRIPTION", "No active subscription")
			return
		}
		response.Error(c, http.StatusInternalServerError, "SUBSCRIPTION_ERROR", "Failed to cancel subscription")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}
