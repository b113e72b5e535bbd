package endpoints

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/mail"
)

type QuoteResponse struct {
	Sent bool `json:"sent"`
}

// QuoteModule mounts POST /email/quote-request. A nil sender answers 503.
func QuoteModule(sender mail.Sender) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/email/quote-request", func(ctx *gin.Context) (any, *api.APIError) {
			if sender == nil {
				return nil, api.FromError(apperr.New(apperr.KindUnavailable, "email delivery is not configured"))
			}
			var req mail.QuoteRequest
			if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
				return nil, apiErr
			}
			if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Message) == "" {
				return nil, api.BadRequest("name and message are required")
			}

			if err := sender.SendQuoteRequest(ctx.Request.Context(), req); err != nil {
				return nil, api.Fail("email", "quote request", apperr.Wrap(apperr.KindUnavailable, err, "failed to send email"))
			}
			log.Info().Str("email", req.Email).Msg("[email] quote request sent")
			return QuoteResponse{Sent: true}, nil
		})
	})
}
