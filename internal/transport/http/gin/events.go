package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/ticketticket/internal/service"
)

// @Summary  List events
// @Success  200  {array}  domain.Event
// @Router   /v1/events [get]
func handleListEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svcs.Admin.ListEvents(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=60", true)
	}
}

// @Summary  Get event with its price tiers
// @Param    id  path  string  true  "Event ID"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /v1/events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		ev, err := svcs.Admin.GetEvent(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, ev, "public, max-age=60", true)
	}
}

// @Summary  Create event (admin)
// @Security BearerAuth
// @Param    req  body  EventRequest  true  "payload"
// @Success  201  {object}  domain.Event
// @Failure  400  {object}  ErrorResponse
// @Failure  403  {object}  ErrorResponse
// @Router   /v1/admin/events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ev, err := svcs.Admin.CreateEvent(c.Request.Context(), req.input())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, ev)
	}
}

// @Summary  Replace event and its price tiers (admin)
// @Security BearerAuth
// @Param    id   path  string        true  "Event ID"
// @Param    req  body  EventRequest  true  "payload"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /v1/admin/events/{id} [put]
func handleUpdateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ev, err := svcs.Admin.UpdateEvent(c.Request.Context(), id, req.input())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ev)
	}
}

// @Summary  Delete event (admin)
// @Security BearerAuth
// @Param    id  path  string  true  "Event ID"
// @Success  204
// @Failure  404  {object}  ErrorResponse
// @Router   /v1/admin/events/{id} [delete]
func handleDeleteEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		if err := svcs.Admin.DeleteEvent(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
