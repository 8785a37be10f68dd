package httpgin

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/ticketticket/internal/service"
	"github.com/kirinyoku/ticketticket/internal/service/profile"
)

const avatarField = "avatar"

// @Summary  Current user, created on first call
// @Security BearerAuth
// @Success  200  {object}  domain.User
// @Router   /v1/me [get]
func handleGetMe(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identity(c)

		u, err := svcs.Profiles.Me(c.Request.Context(), id.UserID, id.Name, id.Picture)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Header("Cache-Control", "private, no-store")
		c.JSON(http.StatusOK, u)
	}
}

// @Summary  Update my profile
// @Security BearerAuth
// @Param    req  body  UpdateMeRequest  true  "payload; omitted fields are unchanged"
// @Success  200  {object}  domain.User
// @Failure  400  {object}  ErrorResponse
// @Router   /v1/me [patch]
func handleUpdateMe(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateMeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		u, err := svcs.Profiles.UpdateMe(c.Request.Context(), callerID(c), profile.UpdateInput{
			DisplayName: req.DisplayName,
			Bio:         req.Bio,
			XHandle:     req.XHandle,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, u)
	}
}

// @Summary  Upload my avatar image
// @Security BearerAuth
// @Accept   multipart/form-data
// @Param    avatar  formData  file  true  "PNG, JPEG, GIF or WebP image"
// @Success  200  {object}  domain.User
// @Failure  400  {object}  ErrorResponse
// @Failure  413  {object}  ErrorResponse
// @Router   /v1/me/avatar [post]
func handleUploadAvatar(svcs *service.Services, maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = profile.DefaultMaxAvatarBytes
	}

	return func(c *gin.Context) {
		// multipart framing needs some room on top of the file itself
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+64<<10)

		fh, err := c.FormFile(avatarField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondErr(c, profile.ErrAvatarTooLarge)
				return
			}
			badRequest(c, "avatar file is required")
			return
		}
		if fh.Size > maxBytes {
			respondErr(c, profile.ErrAvatarTooLarge)
			return
		}

		f, err := fh.Open()
		if err != nil {
			respondErr(c, err)
			return
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		if err != nil {
			respondErr(c, err)
			return
		}

		u, err := svcs.Profiles.UploadAvatar(c.Request.Context(), callerID(c), data)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, u)
	}
}

// @Summary  Public profile with review stats
// @Param    id  path  string  true  "User ID"
// @Success  200  {object}  profile.Profile
// @Failure  404  {object}  ErrorResponse
// @Router   /v1/users/{id} [get]
func handleGetUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		p, err := svcs.Profiles.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, p, "public, max-age=30", true)
	}
}

// @Summary  Listings hosted by a user
// @Param    id      path   string  true   "User ID"
// @Param    limit   query  int     false  "page size"
// @Param    offset  query  int     false  "page offset"
// @Success  200  {array}  domain.Listing
// @Router   /v1/users/{id}/listings [get]
func handleListUserListings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		limit := parseIntDefault(c.Query("limit"), 0)
		offset := parseIntDefault(c.Query("offset"), 0)

		out, err := svcs.Listings.ListByHost(c.Request.Context(), id, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=15", true)
	}
}
