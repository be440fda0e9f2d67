package participant

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"meetuply/internal/modules/event"
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
	eventGroup := rg.Group("/events/:id")
	{
		eventGroup.POST("/sign", h.SignUp)
		eventGroup.POST("/cancel-participation", h.Cancel)
		eventGroup.POST("/kick/:userID", h.Kick)
		eventGroup.POST("/confirm/:userID", h.Confirm)
		eventGroup.GET("/participants", h.List)
	}
}

// SignUp godoc
// @Summary      Sign up for event
// @Description  Joins the event, paying from the wallet; without enough coins the fee is routed through the gateway and a redirect url is returned
// @Tags         Participants
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  int  true  "Event ID"
// @Router       /events/{id}/sign [post]
func (h *Handler) SignUp(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	userID := c.GetInt64("user_id")

	result, err := h.service.SignUp(c.Request.Context(), eventID, userID)
	if errors.Is(err, wallet.ErrInsufficientFunds) {
		result, err = h.service.SignUpWithGateway(c.Request.Context(), eventID, userID)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	if result.PaymentURL != "" {
		response.Success(c, http.StatusOK, gin.H{"payment_url": result.PaymentURL})
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"participant": result.Participant})
}

// Cancel godoc
// @Summary      Leave event
// @Description  Removes the caller from the event and refunds their payment; the organizer leaving unpublishes the event
// @Tags         Participants
// @Security     BearerAuth
// @Param        id  path  int  true  "Event ID"
// @Router       /events/{id}/cancel-participation [post]
func (h *Handler) Cancel(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), eventID, c.GetInt64("user_id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}

// Kick godoc
// @Summary      Kick participant
// @Tags         Participants
// @Security     BearerAuth
// @Param        id      path  int  true  "Event ID"
// @Param        userID  path  int  true  "User ID"
// @Router       /events/{id}/kick/{userID} [post]
func (h *Handler) Kick(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	targetID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_USER_ID", "Invalid user id")
		return
	}
	if err := h.service.Kick(c.Request.Context(), eventID, c.GetInt64("user_id"), targetID); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"kicked": true})
}

// Confirm godoc
// @Summary      Confirm attendance
// @Tags         Participants
// @Security     BearerAuth
// @Param        id      path  int  true  "Event ID"
// @Param        userID  path  int  true  "User ID"
// @Router       /events/{id}/confirm/{userID} [post]
func (h *Handler) Confirm(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	targetID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_USER_ID", "Invalid user id")
		return
	}
	if err := h.service.Confirm(c.Request.Context(), eventID, c.GetInt64("user_id"), targetID); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"confirmed": true})
}

// List godoc
// @Summary      List participants
// @Tags         Participants
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  int  true  "Event ID"
// @Router       /events/{id}/participants [get]
func (h *Handler) List(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	list, err := h.service.List(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "PARTICIPANT_ERROR", "Failed to list participants")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"participants": list})
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
	case errors.Is(err, event.ErrEventNotFound):
		response.Error(c, http.StatusNotFound, "EVENT_NOT_FOUND", "Event not found")
	case errors.Is(err, ErrEventNotPublished):
		response.Error(c, http.StatusConflict, "NOT_PUBLISHED", "Event is not open for sign-up")
	case errors.Is(err, ErrEventStarted):
		response.Error(c, http.StatusConflict, "EVENT_STARTED", "Event has already started")
	case errors.Is(err, ErrAlreadyMember):
		response.Error(c, http.StatusConflict, "ALREADY_MEMBER", "Already signed up")
	case errors.Is(err, ErrNotMember):
		response.Error(c, http.StatusNotFound, "NOT_MEMBER", "Not signed up for this event")
	case errors.Is(err, ErrAgeNotEligible):
		response.Error(c, http.StatusForbidden, "AGE_NOT_ELIGIBLE", "Age outside the event range")
	case errors.Is(err, ErrNoFreePlaces):
		response.Error(c, http.StatusConflict, "NO_FREE_PLACES", "No free places left")
	case errors.Is(err, ErrNotOrganizer):
		response.Error(c, http.StatusForbidden, "NOT_ORGANIZER", "Only the organizer can do this")
	case errors.Is(err, event.ErrEditWindowClosed):
		response.Error(c, http.StatusConflict, "EDIT_WINDOW_CLOSED", "Too close to the event start")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		response.Error(c, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "Not enough coins")
	default:
		response.Error(c, http.StatusInternalServerError, "PARTICIPANT_ERROR", "Failed to process request")
	}
}
