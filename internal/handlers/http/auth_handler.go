package http

import (
	"net/http"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/internal/infrastructure/middleware"
	"vlsnet/pkg/errors"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService ports.AuthService
	tokens      ports.TokenService
}

func NewAuthHandler(authService ports.AuthService, tokens ports.TokenService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokens:      tokens,
	}
}

func (h *AuthHandler) SetupRoutes(router gin.IRouter) {
	api := router.Group("/auth")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.POST("/refresh", h.RefreshToken)
		api.POST("/logout", h.Logout)
		api.GET("/me", middleware.AuthMiddleware(h.tokens), h.Me)
	}
}

type RegisterRequest struct {
	Email    string      `json:"email" binding:"required,max=254"`
	Password string      `json:"password" binding:"required,max=128"`
	Role     domain.Role `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"username"`
	Password string `json:"password" form:"password"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=2048"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.authService.Register(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Login accepts a JSON body {email, password} or an OAuth2 password form
// (username, password).
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil || req.Email == "" || req.Password == "" {
		_ = c.Error(errors.NewInvalidInputError("email and password are required"))
		return
	}

	pair, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshTokenRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		_ = c.Error(errors.NewUnauthorizedError("authentication required"))
		return
	}

	identity, err := h.authService.Me(c.Request.Context(), claims)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, identity)
}
