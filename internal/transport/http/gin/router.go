package httpgin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/auth"
	"github.com/kirinyoku/ticketticket/internal/captcha"
	redisrepo "github.com/kirinyoku/ticketticket/internal/repository/redis"
	"github.com/kirinyoku/ticketticket/internal/service"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Deps struct {
	Services *service.Services
	Tokens   TokenParser
	// Idem is optional. Without it Idempotency-Key headers are ignored.
	Idem    *redisrepo.IdempotencyStore
	Captcha *captcha.Verifier
	Logger  *slog.Logger
}

type Options struct {
	AllowedOrigins []string
	// AvatarDir is served under AvatarRoute when both are set.
	AvatarDir      string
	AvatarRoute    string
	MaxAvatarBytes int64
}

func NewRouter(d Deps, opts Options, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(d.Logger), CORS(opts.AllowedOrigins))
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if opts.AvatarDir != "" && opts.AvatarRoute != "" {
		r.Static(opts.AvatarRoute, opts.AvatarDir)
	}

	svcs := d.Services
	authed := RequireAuth(d.Tokens)

	v1 := r.Group("/v1")

	// Public API
	v1.GET("/listings", handleListListings(svcs))
	v1.GET("/listings/:id", handleGetListing(svcs))
	v1.GET("/listings/:id/review-eligibility", OptionalAuth(d.Tokens), handleReviewEligibility(svcs))
	v1.GET("/events", handleListEvents(svcs))
	v1.GET("/events/:id", handleGetEvent(svcs))
	v1.GET("/users/:id", handleGetUser(svcs))
	v1.GET("/users/:id/listings", handleListUserListings(svcs))
	v1.GET("/users/:id/reviews", handleListUserReviews(svcs))
	v1.POST("/captcha/verify", handleVerifyCaptcha(d.Captcha))

	// Authenticated API
	me := v1.Group("", authed)
	{
		me.POST("/listings", handleCreateListing(svcs, d.Idem))
		me.PATCH("/listings/:id/status", handleUpdateListingStatus(svcs))
		me.PATCH("/listings/:id/price", handleUpdateListingPrice(svcs))
		me.DELETE("/listings/:id", handleDeleteListing(svcs))

		me.POST("/listings/:id/applications", handleApply(svcs))
		me.GET("/listings/:id/applications", handleListListingApplications(svcs))
		me.GET("/me/applications", handleListMyApplications(svcs))
		me.POST("/applications/:id/accept", handleAcceptApplication(svcs))
		me.POST("/applications/:id/reject", handleRejectApplication(svcs))
		me.POST("/applications/:id/cancel", handleCancelApplication(svcs))

		me.GET("/conversations", handleListConversations(svcs))
		me.GET("/conversations/:id", handleOpenConversation(svcs))
		me.POST("/conversations/:id/messages", handleSendMessage(svcs))
		me.GET("/conversations/:id/stream", handleStreamConversation(svcs))

		me.POST("/reviews", handleSubmitReview(svcs))

		me.GET("/me", handleGetMe(svcs))
		me.PATCH("/me", handleUpdateMe(svcs))
		me.POST("/me/avatar", handleUploadAvatar(svcs, opts.MaxAvatarBytes))
	}

	// Admin API
	adm := v1.Group("/admin", authed, RequireRole(auth.RoleAdmin))
	{
		adm.POST("/events", handleCreateEvent(svcs))
		adm.PUT("/events/:id", handleUpdateEvent(svcs))
		adm.DELETE("/events/:id", handleDeleteEvent(svcs))
	}

	return r
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
