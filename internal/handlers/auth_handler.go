package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventflow/internal/helpers"
	"github.com/joshua-takyi/eventflow/internal/middleware"
	"github.com/joshua-takyi/eventflow/internal/services"
)

func Login(u *services.UserService, secureCookies bool, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, helpers.ErrorWithMessage("invalid request payload", err.Error()))
			return
		}

		tokenRes, err := u.AuthenticateUser(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			logger.Info("Login failed", "email", req.Email, "error", err)
			c.JSON(http.StatusUnauthorized, helpers.ErrorWithMessage("invalid email or password", "authentication failed"))
			return
		}
		if tokenRes.AccessToken == "" {
			c.JSON(http.StatusUnauthorized, helpers.ErrorResponse("invalid authentication response"))
			return
		}

		middleware.SetAuthCookies(c, tokenRes, secureCookies)
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{
			"user_id":    tokenRes.User.ID,
			"email":      tokenRes.User.Email,
			"expires_in": tokenRes.ExpiresIn,
		}, "Login successful"))
	}
}

func Logout(secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.ClearAuthCookies(c, secureCookies)
		c.JSON(http.StatusOK, helpers.SuccessResponse(nil, "Logged out successfully"))
	}
}

// Profile returns the caller's profile with the roles used for approvals.
func Profile(u *services.UserService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		token := c.GetString(middleware.AccessTokenKey)
		user, err := u.GetUser(c.Request.Context(), actor.ID, token)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(user, "Profile retrieved"))
	}
}

func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
