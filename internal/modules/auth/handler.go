package auth

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

// RegisterPublicRoutes mounts register and login outside the auth
// middleware.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}
}

// RegisterRoutes mounts the authenticated profile route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
}

// Register godoc
// @Summary      Register
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			response.Error(c, http.StatusConflict, "EMAIL_TAKEN", "Email already registered")
			return
		}
		response.Error(c, http.StatusInternalServerError, "AUTH_ERROR", "Failed to register")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": result.User, "token": result.Token})
}

// Login godoc
// @Summary      Login
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
			return
		}
		response.Error(c, http.StatusInternalServerError, "AUTH_ERROR", "Failed to log in")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": result.User, "token": result.Token})
}

// Me godoc
// @Summary      Current user
// @Tags         Auth
// @Security     BearerAuth
// @Produce      json
// @Router       /me [get]
func (h *Handler) Me(c *gin.Context) {
	user, err := h.service.GetByID(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		response.Error(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}
