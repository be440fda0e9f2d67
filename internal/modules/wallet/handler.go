package wallet

import (
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
	walletGroup := rg.Group("/wallet")
	{
		walletGroup.GET("", h.GetWallet)
		walletGroup.GET("/history", h.GetHistory)
	}
}

// GetWallet godoc
// @Summary      Get wallet
// @Description  Returns the current user's coin balance and unlimited status
// @Tags         Wallet
// @Security     BearerAuth
// @Produce      json
// @Router       /wallet [get]
func (h *Handler) GetWallet(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.service.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "WALLET_ERROR", "Failed to load wallet")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"balance":         wallet.Balance,
		"unlimited_until": wallet.UnlimitedUntil,
	})
}

// GetHistory godoc
// @Summary      Get wallet history
// @Description  Returns the append-only ledger of coin operations, newest first
// @Tags         Wallet
// @Security     BearerAuth
// @Produce      json
// @Router       /wallet/history [get]
func (h *Handler) GetHistory(c *gin.Context) {
	userID := c.GetInt64("user_id")

	rows, err := h.service.History(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "WALLET_ERROR", "Failed to load wallet history")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"history": rows})
}
