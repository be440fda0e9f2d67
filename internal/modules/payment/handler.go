package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"meetuply/internal/pkg/response"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// RegisterRoutes mounts the authenticated payment routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	paymentGroup := rg.Group("/payments")
	{
		paymentGroup.GET("/:uuid", h.GetStatus)
	}
}

// RegisterWebhook mounts the gateway callback outside the auth
// middleware; the request is authenticated by its Token signature.
func (h *Handler) RegisterWebhook(r *gin.RouterGroup) {
	r.POST("/payments/webhook", h.Webhook)
}

// Webhook godoc
// @Summary      Gateway notification callback
// @Description  Finalizes a pending transaction from a Tinkoff notification
// @Tags         Payments
// @Accept       json
// @Produce      plain
// @Router       /payments/webhook [post]
func (h *Handler) Webhook(c *gin.Context) {
	var payload WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}

	err := h.service.HandleWebhook(c.Request.Context(), payload)
	switch {
	case err == nil:
		c.String(http.StatusOK, "OK")
	case errors.Is(err, ErrUnknownOrStaleTransaction):
		// Replays and out-of-order callbacks are expected; answering
		// anything but OK would make the gateway retry forever.
		c.String(http.StatusOK, "OK")
	case errors.Is(err, ErrAmountMismatch):
		// The FAILED mark is already persisted; a retry cannot carry a
		// different amount, so stop the redelivery loop here too.
		h.log.Warn("webhook amount mismatch", zap.String("order_id", payload.OrderID))
		c.String(http.StatusOK, "OK")
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnknownTerminal):
		c.String(http.StatusForbidden, "forbidden")
	default:
		h.log.Error("webhook processing failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "error")
	}
}

// GetStatus godoc
// @Summary      Get payment status
// @Description  Returns the state of a transaction by its order uuid
// @Tags         Payments
// @Security     BearerAuth
// @Produce      json
// @Param        uuid  path  string  true  "Transaction UUID"
// @Router       /payments/{uuid} [get]
func (h *Handler) GetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_UUID", "Invalid transaction uuid")
		return
	}

	txn, err := h.service.GetByUUID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, http.StatusNotFound, "TRANSACTION_NOT_FOUND", "Transaction not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "PAYMENT_ERROR", "Failed to load transaction")
		return
	}

	if txn.UserID != c.GetInt64("user_id") {
		response.Error(c, http.StatusNotFound, "TRANSACTION_NOT_FOUND", "Transaction not found")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"uuid":        txn.UUID,
		"status":      txn.Status,
		"price":       txn.Price,
		"payment_url": txn.PaymentURL,
	})
}
