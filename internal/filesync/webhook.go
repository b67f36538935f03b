package filesync

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// WebhookRunner triggers the sync on a remote service with an empty POST.
// Any non-2xx response is a failure.
type WebhookRunner struct {
	client *resty.Client
	url    string
}

func NewWebhookRunner(url string) *WebhookRunner {
	client := resty.New().
		SetHeader("User-Agent", "filesyncgo").
		SetRetryCount(0)
	return &WebhookRunner{client: client, url: url}
}

func (r *WebhookRunner) Run(ctx context.Context) error {
	resp, err := r.client.R().SetContext(ctx).Post(r.url)
	if err != nil {
		return fmt.Errorf("file sync webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("file sync webhook: unexpected status %d", resp.StatusCode())
	}
	return nil
}
