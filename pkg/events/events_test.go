package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var (
	_ Publisher = (*WebhookPublisher)(nil)
	_ Publisher = (*MockPublisher)(nil)
)

func TestWebhookPublisher(t *testing.T) {
	var received []map[string]string
	as := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("got method %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("got content type %#v, want application/json", ct)
		}
		body := map[string]string{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		received = append(received, body)
	}))
	t.Cleanup(as.Close)
	p := NewWebhookPublisher(as.Client(), as.URL)

	if err := p.Publish(context.Background(), "101"); err != nil {
		t.Fatal(err)
	}

	want := []map[string]string{{"changed_repo_id": "101"}}
	if diff := cmp.Diff(want, received); diff != "" {
		t.Fatalf("published events are different:\n%s", diff)
	}
}

func TestWebhookPublisherWithErrorResponse(t *testing.T) {
	as := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(as.Close)
	p := NewWebhookPublisher(as.Client(), as.URL)

	err := p.Publish(context.Background(), "101")
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("Publish() got error %v, want a status 502 failure", err)
	}
}

func TestPublishAll(t *testing.T) {
	m := NewMockPublisher(t)

	if err := PublishAll(context.Background(), m, []string{"101", "202"}); err != nil {
		t.Fatal(err)
	}

	m.AssertPublished("101")
	m.AssertPublished("202")
	if diff := cmp.Diff([]string{"101", "202"}, m.Published()); diff != "" {
		t.Fatalf("published order is different:\n%s", diff)
	}
}

func TestPublishAllStopsOnError(t *testing.T) {
	m := NewMockPublisher(t)
	failingErr := errors.New("failing")
	m.FailWithError(failingErr)

	err := PublishAll(context.Background(), m, []string{"101"})

	if !errors.Is(err, failingErr) {
		t.Fatalf("got %#v, want %#v", err, failingErr)
	}
	m.RefutePublished("101")
}
