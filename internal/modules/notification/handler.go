package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"meetuply/internal/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser origin is not meaningful here, the route sits behind
		// the bearer-token middleware.
		return true
	},
}

type Handler struct {
	service *Service
	hub     *Hub
	log     *zap.Logger
}

func NewHandler(service *Service, hub *Hub, log *zap.Logger) *Handler {
	return &Handler{service: service, hub: hub, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	notifGroup := rg.Group("/notifications")
	{
		notifGroup.GET("", h.List)
		notifGroup.GET("/unread-count", h.UnreadCount)
		notifGroup.POST("/:id/read", h.MarkRead)
		notifGroup.POST("/read-all", h.MarkAllRead)
		notifGroup.GET("/ws", h.Websocket)
	}
}

// List godoc
// @Summary      List notifications
// @Tags         Notifications
// @Security     BearerAuth
// @Produce      json
// @Param        unread  query  bool  false  "Only unread"
// @Router       /notifications [get]
func (h *Handler) List(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	list, err := h.service.List(c.Request.Context(), c.GetInt64("user_id"), unreadOnly)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "NOTIFICATION_ERROR", "Failed to list notifications")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"notifications": list})
}

// UnreadCount godoc
// @Summary      Unread count
// @Tags         Notifications
// @Security     BearerAuth
// @Produce      json
// @Router       /notifications/unread-count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.service.UnreadCount(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "NOTIFICATION_ERROR", "Failed to count notifications")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread": n})
}

// MarkRead godoc
// @Summary      Mark notification read
// @Tags         Notifications
// @Security     BearerAuth
// @Param        id  path  int  true  "Notification ID"
// @Router       /notifications/{id}/read [post]
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid notification id")
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), c.GetInt64("user_id"), id); err != nil {
		response.Error(c, http.StatusInternalServerError, "NOTIFICATION_ERROR", "Failed to mark as read")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// MarkAllRead godoc
// @Summary      Mark all notifications read
// @Tags         Notifications
// @Security     BearerAuth
// @Router       /notifications/read-all [post]
func (h *Handler) MarkAllRead(c *gin.Context) {
	if err := h.service.MarkAllRead(c.Request.Context(), c.GetInt64("user_id")); err != nil {
		response.Error(c, http.StatusInternalServerError, "NOTIFICATION_ERROR", "Failed to mark all as read")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// Websocket upgrades the connection and keeps it registered in the hub
// until the client disconnects. Reads are drained only to detect the
// close; the socket is push-only.
func (h *Handler) Websocket(c *gin.Context) {
	userID := c.GetInt64("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
