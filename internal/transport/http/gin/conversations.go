package httpgin

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/ticketticket/internal/domain"
	redisrepo "github.com/kirinyoku/ticketticket/internal/repository/redis"
	"github.com/kirinyoku/ticketticket/internal/service"
)

const streamKeepAlive = 25 * time.Second

// @Summary  List my conversations
// @Security BearerAuth
// @Success  200  {array}  domain.ConversationSummary
// @Router   /v1/conversations [get]
func handleListConversations(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svcs.Chat.ListConversations(c.Request.Context(), callerID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Open a conversation and mark it read
// @Security BearerAuth
// @Param    id  path  string  true  "Conversation ID"
// @Success  200  {object}  chat.Thread
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /v1/conversations/{id} [get]
func handleOpenConversation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		th, err := svcs.Chat.Open(c.Request.Context(), callerID(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, th)
	}
}

// @Summary  Send a message
// @Security BearerAuth
// @Param    id   path  string              true  "Conversation ID"
// @Param    req  body  SendMessageRequest  true  "payload"
// @Success  201  {object}  domain.Message
// @Failure  400  {object}  ErrorResponse
// @Failure  429  {object}  ErrorResponse "rate limited"
// @Router   /v1/conversations/{id}/messages [post]
func handleSendMessage(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		m, err := svcs.Chat.Send(c.Request.Context(), callerID(c), id, req.Content)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, m)
	}
}

// @Summary  Stream new messages (Server-Sent Events)
// @Description Emits a "ready" event once subscribed, then one "message"
// @Description event per new message with data {"new": Message}.
// @Security BearerAuth
// @Param    id            path   string  true   "Conversation ID"
// @Param    access_token  query  string  false  "session token for EventSource clients"
// @Produce  text/event-stream
// @Success  200
// @Router   /v1/conversations/{id}/stream [get]
func handleStreamConversation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		viewer := callerID(c)

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		msgs := make(chan domain.Message, 64)
		ready := make(chan struct{})
		errc := make(chan error, 1)
		var once sync.Once

		go func() {
			markReady := func() { once.Do(func() { close(ready) }) }
			errc <- svcs.Chat.Subscribe(ctx, viewer, id, markReady, func(ctx context.Context, m domain.Message) {
				select {
				case msgs <- m:
				case <-ctx.Done():
				}
			})
		}()

		select {
		case <-ready:
		case err := <-errc:
			if err != nil {
				respondErr(c, err)
			}
			return
		case <-ctx.Done():
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.SSEvent("ready", gin.H{"conversationId": id})
		c.Writer.Flush()

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case m := <-msgs:
				c.SSEvent("message", redisrepo.MessageEnvelope{New: m})
				return true
			case <-keepAlive.C:
				_, err := io.WriteString(w, ": ping\n\n")
				return err == nil
			case err := <-errc:
				if err != nil {
					_ = c.Error(err)
				}
				return false
			case <-ctx.Done():
				return false
			}
		})
	}
}
