package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// WebhookPublisher is an implementation of Publisher that POSTs one JSON
// event per changed repository to a fixed URL.
type WebhookPublisher struct {
	client *http.Client
	url    string
}

// NewWebhookPublisher creates and returns a WebhookPublisher that posts
// events to the provided URL with the provided client.
func NewWebhookPublisher(c *http.Client, url string) *WebhookPublisher {
	return &WebhookPublisher{client: c, url: url}
}

// Publish is an implementation of the Publisher interface. The event body
// is {"changed_repo_id": id}.
func (p *WebhookPublisher) Publish(ctx context.Context, repoID string) error {
	body, err := json.Marshal(map[string]string{"changed_repo_id": repoID})
	if err != nil {
		return fmt.Errorf("failed to marshal the change event for %s: %w", repoID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create the change event request for %s: %w", repoID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish the change event for %s: %w", repoID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("failed to publish the change event for %s: status %d", repoID, resp.StatusCode)
	}
	return nil
}

// PublishAll publishes one event per changed repository, in order,
// stopping at the first failure.
func PublishAll(ctx context.Context, p Publisher, repoIDs []string) error {
	for _, id := range repoIDs {
		if err := p.Publish(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
