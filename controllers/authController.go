package controllers

import (
	"log/slog"
	"net/http"

	"civicsync/config"
	"civicsync/middlewares"
	"civicsync/services"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	auth   *services.AuthService
	cfg    *config.Config
	logger *slog.Logger
}

func NewAuthController(auth *services.AuthService, cfg *config.Config, logger *slog.Logger) *AuthController {
	return &AuthController{auth: auth, cfg: cfg, logger: logger}
}

// RegisterUser handles user registration
func (ac *AuthController) RegisterUser(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required,max=50"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if !bindJSON(c, &input) {
		return
	}

	res, err := ac.auth.Register(c.Request.Context(), input.Name, input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	ac.setAuthCookie(c, res.Token)
	c.JSON(http.StatusCreated, res)
}

// LoginUser handles user login
func (ac *AuthController) LoginUser(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}

	res, err := ac.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	ac.setAuthCookie(c, res.Token)
	c.JSON(http.StatusOK, res)
}

// GetProfile returns the authenticated user's information
func (ac *AuthController) GetProfile(c *gin.Context) {
	user, err := ac.auth.Profile(c.Request.Context(), middlewares.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// LogoutUser revokes the presented token and clears the auth cookie
func (ac *AuthController) LogoutUser(c *gin.Context) {
	if claims, ok := middlewares.CurrentClaims(c); ok {
		if err := ac.auth.Logout(c.Request.Context(), claims); err != nil {
			respondError(c, err)
			return
		}
	}
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(middlewares.AuthCookie, "", -1, "/", ac.cookieDomain(), ac.cfg.Production(), true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (ac *AuthController) setAuthCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.AuthCookie,
		Value:    token,
		MaxAge:   int(ac.cfg.TokenTTL.Seconds()),
		Path:     "/",
		Domain:   ac.cookieDomain(),
		Secure:   ac.cfg.Production(),
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

// In production the domain is left unset so cross-origin cookies work.
func (ac *AuthController) cookieDomain() string {
	if ac.cfg.Production() {
		return ""
	}
	return ac.cfg.Domain
}
