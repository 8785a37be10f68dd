package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/ticketticket/internal/captcha"
)

// @Summary  Verify a reCAPTCHA token
// @Param    req  body  CaptchaRequest  true  "payload"
// @Success  200  {object}  CaptchaResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  500  {object}  ErrorResponse
// @Router   /v1/captcha/verify [post]
func handleVerifyCaptcha(v *captcha.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			respondErr(c, captcha.ErrNotConfigured)
			return
		}

		var req CaptchaRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		res, err := v.Verify(c.Request.Context(), req.Token, c.ClientIP())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, CaptchaResponse{Success: res.Success, Score: res.Score})
	}
}
