package livekit

import (
	"net/http"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/webhook"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/config"
)

// EventEgressEnded is delivered once a recording job has finished uploading.
const EventEgressEnded = "egress_ended"

// WebhookReceiver verifies and decodes callbacks signed by the media service.
type WebhookReceiver struct {
	keys auth.KeyProvider
}

// NewWebhookReceiver trusts callbacks signed with the configured API key pair.
func NewWebhookReceiver(cfg config.LiveKitConfig) *WebhookReceiver {
	return &WebhookReceiver{keys: auth.NewSimpleKeyProvider(cfg.APIKey, cfg.APISecret)}
}

// FinishedJob returns the job carried by an egress_ended callback.
// ok is false for any other event.
func (w *WebhookReceiver) FinishedJob(r *http.Request) (job Job, ok bool, err error) {
	event, err := webhook.ReceiveWebhookEvent(r, w.keys)
	if err != nil {
		return Job{}, false, apperr.Wrap(apperr.CodeAuthenticationFailed, "invalid webhook", err)
	}
	if event.GetEvent() != EventEgressEnded || event.GetEgressInfo() == nil {
		return Job{}, false, nil
	}
	return JobFromInfo(event.GetEgressInfo()), true, nil
}
