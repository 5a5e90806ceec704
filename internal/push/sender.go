package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/shared/config"
	"github.com/familyos/go-pipeline-service/internal/shared/errors"
)

// Sender delivers web-push payloads to subscription endpoints
type Sender struct {
	cfg config.VAPIDConfig
	ttl int
}

// NewSender creates a web-push sender. Key material is checked at first
// send, not here; pipeline endpoints that never push stay usable without
// VAPID configuration.
func NewSender(cfg config.VAPIDConfig) *Sender {
	return &Sender{cfg: cfg, ttl: 60}
}

func (s *Sender) ensureConfigured() error {
	if s.cfg.PublicKey == "" || s.cfg.PrivateKey == "" || s.cfg.Subject == "" {
		return errors.NewConfigError("missing VAPID configuration", nil)
	}
	return nil
}

// Send pushes the payload to one subscription. The caller bounds latency
// through ctx; a per-send timeout is required so one stuck endpoint
// cannot stall a whole dispatcher pass.
func (s *Sender) Send(ctx context.Context, sub domain.WebPushSubscription, payload map[string]interface{}) error {
	if err := s.ensureConfigured(); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	wsub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, wsub, &webpush.Options{
		Subscriber:      s.cfg.Subject,
		VAPIDPublicKey:  s.cfg.PublicKey,
		VAPIDPrivateKey: s.cfg.PrivateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 404/410 mean the subscription is gone; everything >= 400 is a
	// delivery failure either way and routes to the retry path.
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
