package httpgin

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/auth"
)

const (
	ctxRequestID = "request_id"
	ctxIdentity  = "identity"
)

// TokenParser verifies a session token. auth.Manager satisfies it.
type TokenParser interface {
	Parse(token string) (auth.Identity, error)
}

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}

		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Set(ctxRequestID, reqID)

		c.Next()
	}
}

// CORS allows the listed origins. An empty list or "*" allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"Idempotency-Key",
			"If-None-Match",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"ETag",
			"Cache-Control",
			"Retry-After",
			"Idempotency-Key",
		},
		MaxAge: 12 * time.Hour,
	}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}

	return cors.New(cfg)
}

func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		status := c.Writer.Status()
		reqID, _ := c.Get(ctxRequestID)

		attrs := []any{
			slog.Int("status", status),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("ip", c.ClientIP()),
			slog.String("ua", c.Request.UserAgent()),
			slog.Any("request_id", reqID),
			slog.Duration("latency", latency),
			slog.Int("bytes_out", c.Writer.Size()),
		}
		if id, ok := identity(c); ok {
			attrs = append(attrs, slog.String("user_id", id.UserID.String()))
		}

		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
			logger.Error("http", slog.Group("http", attrs...))
		} else {
			logger.Info("http", slog.Group("http", attrs...))
		}
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}

	// EventSource cannot set headers, so the stream endpoint also takes
	// the token from the query string.
	return c.Query("access_token")
}

// OptionalAuth attaches the caller's identity when a valid token is sent
// and lets anonymous requests through.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := bearerToken(c); tok != "" {
			if id, err := tokens.Parse(tok); err == nil {
				c.Set(ctxIdentity, id)
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid session token.
func RequireAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			return
		}

		id, err := tokens.Parse(tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired session"})
			return
		}

		c.Set(ctxIdentity, id)
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			return
		}

		if id.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
			return
		}

		c.Next()
	}
}

func identity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// callerID returns the authenticated user id. Only use behind RequireAuth.
func callerID(c *gin.Context) uuid.UUID {
	id, _ := identity(c)
	return id.UserID
}
