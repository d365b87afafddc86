package sink

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/consorcioops/boleto-batch/internal/config"
)

// Notification is the payload delivered to the webhook for one document
type Notification struct {
	Phone      string `json:"phone"`
	Name       string `json:"nome"`
	Group      string `json:"grupo"`
	Quota      string `json:"cota"`
	Message    string `json:"message"`
	FileName   string `json:"file_name"`
	FileURL    string `json:"file_url"`
	ArtifactID string `json:"artifact_id,omitempty"`
}

// Notifier delivers per-document notifications. Best-effort: failures are
// reported to the caller for logging but never abort processing.
type Notifier interface {
	Notify(ctx context.Context, n Notification) bool
}

// WebhookNotifier posts notifications to a configured webhook, paced by a
// rate limiter so a large batch does not flood the receiving automation.
type WebhookNotifier struct {
	client   *resty.Client
	url      string
	method   string
	template string
	limiter  *rate.Limiter
	logger   *logrus.Logger
}

// NewWebhookNotifier creates a new webhook notifier from configuration
func NewWebhookNotifier(cfg config.NotifyConfig, logger *logrus.Logger) *WebhookNotifier {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Content-Type", "application/json")

	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	return &WebhookNotifier{
		client:   client,
		url:      cfg.WebhookURL,
		method:   strings.ToUpper(cfg.Method),
		template: cfg.MessageTemplate,
		limiter:  rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
		logger:   logger,
	}
}

// Notify renders the message template and delivers the notification
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) bool {
	if n.FileURL == "" {
		w.logger.WithField("file", n.FileName).Error("Notification skipped: no file URL available")
		return false
	}

	n.Message = w.renderMessage(n)

	if err := w.limiter.Wait(ctx); err != nil {
		w.logger.WithError(err).Warn("Notification rate limiter interrupted")
		return false
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(n).
		Execute(w.method, w.url)
	if err != nil {
		w.logger.WithError(err).Error("Notification webhook error")
		return false
	}
	if resp.IsError() {
		w.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode(),
			"body":   resp.String(),
		}).Error("Notification webhook failed")
		return false
	}

	w.logger.WithFields(logrus.Fields{
		"phone":  n.Phone,
		"status": resp.StatusCode(),
	}).Info("Notification sent")
	return true
}

func (w *WebhookNotifier) renderMessage(n Notification) string {
	replacer := strings.NewReplacer(
		"{nome}", n.Name,
		"{grupo}", n.Group,
		"{cota}", n.Quota,
	)
	return replacer.Replace(w.template)
}
