package event

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"meetuply/internal/modules/wallet"
	"meetuply/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	eventGroup := rg.Group("/events")
	{
		eventGroup.POST("", h.Create)
		eventGroup.GET("", h.List)
		eventGroup.GET("/mine", h.ListMine)
		eventGroup.GET("/:id", h.Get)
		eventGroup.PUT("/:id", h.Update)
		eventGroup.DELETE("/:id", h.Delete)
		eventGroup.POST("/:id/publish", h.Publish)
		eventGroup.POST("/:id/unpublish", h.Unpublish)
		eventGroup.POST("/:id/cancel", h.Cancel)
	}
}

// Create godoc
// @Summary      Create event
// @Description  Creates an event; with is_draft=false it is published immediately
// @Tags         Events
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Router       /events [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.service.Create(c.Request.Context(), c.GetInt64("user_id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	payload := gin.H{"event": result.Event}
	if result.PaymentURL != "" {
		payload["payment_url"] = result.PaymentURL
	}
	response.Success(c, http.StatusCreated, payload)
}

// List godoc
// @Summary      List events
// @Description  Returns published upcoming events
// @Tags         Events
// @Security     BearerAuth
// @Produce      json
// @Router       /events [get]
func (h *Handler) List(c *gin.Context) {
	list, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "EVENT_ERROR", "Failed to list events")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"events": list})
}

// ListMine godoc
// @Summary      List own events
// @Description  Returns the current user's events, drafts included
// @Tags         Events
// @Security     BearerAuth
// @Produce      json
// @Router       /events/mine [get]
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.service.ListByOrganizer(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "EVENT_ERROR", "Failed to list events")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"events": list})
}

// Get godoc
// @Summary      Get event
// @Tags         Events
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  int  true  "Event ID"
// @Router       /events/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}
	e, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"event": e})
}

// Update godoc
// @Summary      Update event
// @Description  Edits an event; published events freeze 3 hours before start
// @Tags         Events
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id  path  int  true  "Event ID"
// @Router       /events/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}
	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	e, err := h.service.Update(c.Request.Context(), id, c.GetInt64("user_id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"event": e})
}

// Delete godoc
// @Summary      Delete event
// @Description  Drafts are removed; published events are deactivated with refunds
// @Tags         Events
// @Security     BearerAuth
// @Param        id  path  int  true  "Event ID"
// @Router       /events/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, c.GetInt64("user_id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Publish godoc
// @Summary      Publish event
// @Description  Takes a draft live, charging the organization fee when the theme requires one
// @Tags         Events
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id  path  int  true  "Event ID"
// @Router       /events/{id}/publish [post]
func (h *Handler) Publish(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}
	// The body is optional; without one the fee comes from the wallet.
	var req PublishRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.service.Publish(c.Request.Context(), id, c.GetInt64("user_id"), req.PayWithGateway)
	if err != nil {
		h.writeError(c, err)
		return
	}

	payload := gin.H{"event": result.Event}
	if result.PaymentURL != "" {
		payload["payment_url"] = result.PaymentURL
	}
	response.Success(c, http.StatusOK, payload)
}

// Unpublish godoc
// @Summary      Unpublish event
// @Description  Returns the event to draft, refunding every participant payment
// @Tags         Events
// @Security     BearerAuth
// @Param        id  path  int  true  "Event ID"
// @Router       /events/{id}/unpublish [post]
func (h *Handler) Unpublish(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}
	if err := h.service.Unpublish(c.Request.Context(), id, c.GetInt64("user_id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unpublished": true})
}

// Cancel godoc
// @Summary      Cancel event
// @Description  Cancels a published event; allowed until 3 hours before start
// @Tags         Events
// @Security     BearerAuth
// @Param        id  path  int  true  "Event ID"
// @Router       /events/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}
	err := h.service.CancelByOrganizer(c.Request.Context(), id, c.GetInt64("user_id"), time.Now())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}

func (h *Handler) eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_EVENT_ID", "Invalid event id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEventNotFound):
		response.Error(c, http.StatusNotFound, "EVENT_NOT_FOUND", "Event not found")
	case errors.Is(err, ErrNotOrganizer):
		response.Error(c, http.StatusForbidden, "NOT_ORGANIZER", "Only the organizer can do this")
	case errors.Is(err, ErrInvalidAgeRange), errors.Is(err, ErrInvalidTimeRange),
		errors.Is(err, ErrCapacityConflict), errors.Is(err, ErrCapacityBelowOccupancy):
		response.Error(c, http.StatusBadRequest, "INVALID_EVENT", err.Error())
	case errors.Is(err, ErrAlreadyPublished):
		response.Error(c, http.StatusConflict, "ALREADY_PUBLISHED", "Event is already published")
	case errors.Is(err, ErrEventNotPublished):
		response.Error(c, http.StatusConflict, "NOT_PUBLISHED", "Event is not published")
	case errors.Is(err, ErrEventInactive):
		response.Error(c, http.StatusConflict, "EVENT_CANCELLED", "Event is cancelled")
	case errors.Is(err, ErrEventStarted):
		response.Error(c, http.StatusConflict, "EVENT_STARTED", "Event has already started")
	case errors.Is(err, ErrEditWindowClosed):
		response.Error(c, http.StatusConflict, "EDIT_WINDOW_CLOSED", "Too close to the event start")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		response.Error(c, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "Not enough coins")
	default:
		response.Error(c, http.StatusInternalServerError, "EVENT_ERROR", "Failed to process event")
	}
}
