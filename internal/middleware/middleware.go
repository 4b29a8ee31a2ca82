package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/helpers"
	"github.com/joshua-takyi/eventflow/internal/metrics"
	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/supabase-community/gotrue-go/types"
)

const (
	ActorKey       = "actor"
	AccessTokenKey = "access_token"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}
		requestID, _ := c.Get("request_id")

		logger.Info("HTTP Request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", latency,
			"client_ip", c.ClientIP(),
		)
	}
}

// Metrics records request latency by matched route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// ErrorHandler provides centralized error handling
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			requestID, _ := c.Get("request_id")

			logger.Error("Request error",
				"request_id", requestID,
				"error", err.Error(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)

			if c.Writer.Written() {
				return
			}
			// Don't return error details in production
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": requestID,
			})
		}
	}
}

// Authenticator is the slice of the user service the auth middleware needs.
type Authenticator interface {
	RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error)
	ResolveActor(ctx context.Context, id uuid.UUID, accessToken string) (models.Actor, error)
}

func unauthorized(c *gin.Context, reason string) {
	c.JSON(http.StatusUnauthorized, helpers.ErrorWithMessage("Unauthorized access", reason))
	c.Abort()
}

func bearer(c *gin.Context) string {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// AuthMiddleware verifies the access token, refreshing it from the refresh
// cookie when expired, and loads the caller's roles from their profile on
// every request so role changes apply immediately.
func AuthMiddleware(validator helpers.TokenValidator, auth Authenticator, secureCookies bool, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			unauthorized(c, "access token not found")
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			refreshToken, refreshErr := c.Cookie("refresh_token")
			if refreshErr != nil || refreshToken == "" {
				unauthorized(c, err.Error())
				return
			}

			tokenRes, refreshErr := auth.RefreshToken(c.Request.Context(), refreshToken)
			if refreshErr != nil || tokenRes == nil || tokenRes.AccessToken == "" {
				logger.Error("Token refresh failed", "error", refreshErr)
				unauthorized(c, "token expired and refresh failed")
				return
			}

			logger.Info("Token refreshed successfully",
				"user_id", tokenRes.User.ID,
				"expires_in", tokenRes.ExpiresIn,
			)
			SetAuthCookies(c, tokenRes, secureCookies)

			token = tokenRes.AccessToken
			if claims, err = validator.ValidateToken(token); err != nil {
				unauthorized(c, "refreshed token validation failed")
				return
			}
		}

		userID, err := claims.UserID()
		if err != nil {
			logger.Error("Invalid user ID in token", "user_id", claims.Subject, "error", err)
			unauthorized(c, "invalid token subject")
			return
		}

		actor, err := auth.ResolveActor(c.Request.Context(), userID, token)
		if err != nil {
			logger.Info("Profile not found", "user_id", userID, "error", err)
			c.JSON(http.StatusForbidden, helpers.ErrorWithMessage("Forbidden", "no profile for this account"))
			c.Abort()
			return
		}
		if actor.Email == "" {
			actor.Email = claims.Email
		}

		c.Set(ActorKey, actor)
		c.Set(AccessTokenKey, token)
		c.Next()
	}
}

// RequireRole rejects callers lacking role. Must run after AuthMiddleware.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok || !actor.HasRole(role) {
			c.JSON(http.StatusForbidden, helpers.ErrorWithMessage("Forbidden", string(role)+" role required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

func SetAuthCookies(c *gin.Context, res *types.TokenResponse, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", res.AccessToken, res.ExpiresIn, "/", "", secure, true)
	c.SetCookie("refresh_token", res.RefreshToken, 3600*24*30, "/", "", secure, true)
}

func ClearAuthCookies(c *gin.Context, secure bool) {
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}
