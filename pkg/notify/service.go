package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nvalencia/agentbook/pkg/logger"
	"github.com/nvalencia/agentbook/pkg/metrics"
)

const deliveryTimeout = 10 * time.Second

// DefaultTemplate is used when the agency has not configured a message
// template. Placeholders are substituted by key.
const DefaultTemplate = "🎉 {agent_name} posted a deal: {carrier_name} {product_name} for {client_name} - ${monthly_premium}/mo (policy {policy_number}), effective {effective_date}"

// Notifier posts deal notifications to an agency's Discord webhook.
// Every delivery is best effort: issued after the primary transaction
// commits, and failure is captured into logs and a metric, never returned
// to the caller.
type Notifier struct {
	httpClient *http.Client
	log        logger.Logger
	metrics    *metrics.Metrics
}

// NewNotifier creates a new notifier
func NewNotifier(log logger.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: deliveryTimeout,
		},
		log:     log,
		metrics: m,
	}
}

// DealPosted fires the deal-posted notification in the background and
// returns immediately. A missing webhook URL disables the notification.
// The caller's context only gates whether the delivery starts; once it
// does, it runs on its own deadline so the handler returning does not
// abort it.
func (n *Notifier) DealPosted(ctx context.Context, webhookURL, template string, placeholders map[string]string) {
	if webhookURL == "" {
		return
	}
	// The request died before the deal committed; nothing to announce.
	if ctx.Err() != nil {
		return
	}

	go func() {
		deliveryCtx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		if err := n.Deliver(deliveryCtx, webhookURL, template, placeholders); err != nil {
			if n.metrics != nil {
				n.metrics.NotifyFailures.Inc()
			}
			n.log.Warn("deal notification delivery failed", "error", err)
		}
	}()
}

// Deliver substitutes placeholders into the template and posts the
// resulting message to the webhook URL. Exposed for testing; production
// callers go through DealPosted.
func (n *Notifier) Deliver(ctx context.Context, webhookURL, template string, placeholders map[string]string) error {
	if template == "" {
		template = DefaultTemplate
	}

	message := Substitute(template, placeholders)

	body, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Substitute replaces {key} tokens in the template with placeholder values
func Substitute(template string, placeholders map[string]string) string {
	pairs := make([]string, 0, len(placeholders)*2)
	for key, value := range placeholders {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
