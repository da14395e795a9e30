package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	testToken   = "test-token"
	testProject = "testing/repo"
	testPath    = "/api/v4/projects/testing/repo/repository/commits"
)

var _ CommitLister = (*Client)(nil)

func TestNew(t *testing.T) {
	newTests := []struct {
		baseURL      string
		wantEndpoint string
	}{
		{"", "https://gitlab.com"},
		{"https://gl.example.com", "https://gl.example.com"},
		{"https://gl.example.com/", "https://gl.example.com"},
	}

	for _, tt := range newTests {
		c, err := New(ClientConfig{BaseURL: tt.baseURL, Token: testToken})
		if err != nil {
			t.Fatal(err)
		}
		if c.endpoint != tt.wantEndpoint {
			t.Errorf("%#v got %#v, want %#v", tt.baseURL, c.endpoint, tt.wantEndpoint)
		}
	}
}

func TestNewWithBadBaseURL(t *testing.T) {
	urlTests := []string{
		"gl.example.com",
		"ht tp://gl.example.com",
	}

	for _, u := range urlTests {
		if _, err := New(ClientConfig{BaseURL: u}); err == nil {
			t.Errorf("New() with base URL %#v did not fail", u)
		}
	}
}

func TestCommits(t *testing.T) {
	as := makeAPIServer(t, testPath, "main", "", testToken, http.StatusOK, mustReadFile(t, "testdata/commits.json"))
	t.Cleanup(as.Close)
	c := newTestClient(t, as, testToken)

	got := c.Commits(context.Background(), testProject, "main", "")

	if got.Outcome != OutcomeSuccess || !got.Success {
		t.Errorf("Commits() got outcome %q success %v, want a success", got.Outcome, got.Success)
	}
	if got.Status != http.StatusOK {
		t.Errorf("Commits() got status %d, want %d", got.Status, http.StatusOK)
	}
	if got.Message != "" {
		t.Errorf("Commits() got message %#v, want none", got.Message)
	}
	if l := len(got.Commits); l != 2 {
		t.Fatalf("Commits() got %d commits, want 2", l)
	}
	if id := got.Commits[0]["id"]; id != "ed899a2f4b50b4370feeea94676502b42383c746" {
		t.Errorf("Commits() first commit id got %v, want %s", id, "ed899a2f4b50b4370feeea94676502b42383c746")
	}
}

func TestCommitsWithSince(t *testing.T) {
	since := "2024-01-01T00:00:00Z"
	as := makeAPIServer(t, testPath, "main", since, testToken, http.StatusOK, []byte("[]"))
	t.Cleanup(as.Close)
	c := newTestClient(t, as, testToken)

	got := c.Commits(context.Background(), testProject, "main", since)

	if !got.Success {
		t.Errorf("Commits() with since failed: %s", got.Message)
	}
	if l := len(got.Commits); l != 0 {
		t.Errorf("Commits() got %d commits, want 0", l)
	}
}

// An empty ref queries the master branch.
func TestCommitsWithDefaultRef(t *testing.T) {
	as := makeAPIServer(t, testPath, "master", "", testToken, http.StatusOK, []byte("[]"))
	t.Cleanup(as.Close)
	c := newTestClient(t, as, testToken)

	got := c.Commits(context.Background(), testProject, "", "")

	if !got.Success {
		t.Errorf("Commits() with default ref failed: %s", got.Message)
	}
}

// With no token configured, no private_token parameter should be sent.
func TestCommitsWithNoAuthentication(t *testing.T) {
	as := makeAPIServer(t, testPath, "master", "", "", http.StatusOK, []byte("[]"))
	t.Cleanup(as.Close)
	c := newTestClient(t, as, "")

	got := c.Commits(context.Background(), testProject, "master", "")

	if !got.Success {
		t.Errorf("Commits() without authentication failed: %s", got.Message)
	}
}

// Non-200 responses are flattened to StatusError with a fixed message, so
// the provider's status is not preserved.
func TestCommitsWithServerError(t *testing.T) {
	as := makeAPIServer(t, testPath, "master", "", testToken, http.StatusInternalServerError, nil)
	t.Cleanup(as.Close)
	c := newTestClient(t, as, testToken)

	got := c.Commits(context.Background(), testProject, "master", "")

	want := CommitResult{
		Outcome: OutcomeAPIError,
		Success: false,
		Status:  StatusError,
		Message: "Gitlab response is not succeed",
		Commits: []Commit{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Commits() server error result:\n%s", diff)
	}
}

// It's impossible to distinguish between unknown repo, and bad auth token,
// both respond with a 404.
func TestCommitsWithBadAuthentication(t *testing.T) {
	as := makeAPIServer(t, testPath, "master", "", testToken, http.StatusOK, []byte("[]"))
	t.Cleanup(as.Close)
	c := newTestClient(t, as, "another-token")

	got := c.Commits(context.Background(), testProject, "master", "")

	if got.Outcome != OutcomeAPIError || got.Status != StatusError {
		t.Errorf("Commits() got outcome %q status %d, want %q status %d", got.Outcome, got.Status, OutcomeAPIError, StatusError)
	}
}

// A 200 with a body that isn't a list of commits keeps the 200 status and
// quotes the body in the message.
func TestCommitsWithInvalidBody(t *testing.T) {
	bodyTests := []string{
		`{"message": "404 Project Not Found"}`,
		`"testing"`,
		`{invalid json`,
	}

	for _, body := range bodyTests {
		as := makeAPIServer(t, testPath, "master", "", testToken, http.StatusOK, []byte(body))
		t.Cleanup(as.Close)
		c := newTestClient(t, as, testToken)

		got := c.Commits(context.Background(), testProject, "master", "")

		want := CommitResult{
			Outcome: OutcomeAPIError,
			Success: false,
			Status:  http.StatusOK,
			Message: fmt.Sprintf("result is not valid. result: %s", body),
			Commits: []Commit{},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Commits() with body %#v:\n%s", body, diff)
		}
	}
}

func TestCommitsWithTransportError(t *testing.T) {
	as := makeAPIServer(t, testPath, "master", "", testToken, http.StatusOK, []byte("[]"))
	c := newTestClient(t, as, testToken)
	as.Close()

	got := c.Commits(context.Background(), testProject, "master", "")

	if got.Outcome != OutcomeTransportError {
		t.Errorf("Commits() got outcome %q, want %q", got.Outcome, OutcomeTransportError)
	}
	if got.Status != StatusError {
		t.Errorf("Commits() got status %d, want %d", got.Status, StatusError)
	}
	if got.Message == "" {
		t.Error("Commits() transport error carried no message")
	}
	if l := len(got.Commits); l != 0 {
		t.Errorf("Commits() got %d commits, want 0", l)
	}
}

func TestCommitsWithCancelledContext(t *testing.T) {
	as := makeAPIServer(t, testPath, "master", "", testToken, http.StatusOK, []byte("[]"))
	t.Cleanup(as.Close)
	c := newTestClient(t, as, testToken)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := c.Commits(ctx, testProject, "master", "")

	if got.Outcome != OutcomeTransportError {
		t.Errorf("Commits() got outcome %q, want %q", got.Outcome, OutcomeTransportError)
	}
	if !strings.Contains(got.Message, "context canceled") {
		t.Errorf("Commits() got message %#v, want the cancellation error", got.Message)
	}
}

// The blocking form produces the same result as the context form.
func TestCommitsSync(t *testing.T) {
	as := makeAPIServer(t, testPath, "main", "", testToken, http.StatusOK, mustReadFile(t, "testdata/commits.json"))
	t.Cleanup(as.Close)
	c := newTestClient(t, as, testToken)

	got := c.CommitsSync(testProject, "main", "")

	want := c.Commits(context.Background(), testProject, "main", "")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("CommitsSync() differs from Commits():\n%s", diff)
	}
}

func TestMakeCommitsURL(t *testing.T) {
	urlTests := []struct {
		endpoint  string
		token     string
		projectID string
		ref       string
		since     string
		want      string
	}{
		{"https://gitlab.com", "", "2949", "main", "",
			"https://gitlab.com/api/v4/projects/2949/repository/commits?ref_name=main"},
		{"https://gitlab.com", "", "2949", "", "",
			"https://gitlab.com/api/v4/projects/2949/repository/commits?ref_name=master"},
		{"https://gl.example.com", "", "testing/repo", "main", "",
			"https://gl.example.com/api/v4/projects/testing%2Frepo/repository/commits?ref_name=main"},
		{"https://gitlab.com", "abc123", "2949", "main", "2024-01-01T00:00:00Z",
			"https://gitlab.com/api/v4/projects/2949/repository/commits?private_token=abc123&ref_name=main&since=2024-01-01T00%3A00%3A00Z"},
	}

	for _, tt := range urlTests {
		if got := makeCommitsURL(tt.endpoint, tt.token, tt.projectID, tt.ref, tt.since); got != tt.want {
			t.Errorf("makeCommitsURL(%#v, %#v) got %#v, want %#v", tt.projectID, tt.ref, got, tt.want)
		}
	}
}

func newTestClient(t *testing.T, as *httptest.Server, token string) *Client {
	t.Helper()
	c, err := NewWithHTTPClient(ClientConfig{BaseURL: as.URL, Token: token}, as.Client())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// makeAPIServer is used during testing to create an HTTP server that
// checks the request against the wanted path, ref, since and token before
// responding with the configured status and body.
func makeAPIServer(t *testing.T, wantPath, wantRef, wantSince, wantToken string, status int, response []byte) *httptest.Server {
	return httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Logf("got URL %#v, want %#v", r.URL.Path, wantPath)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if queryRef := r.URL.Query().Get("ref_name"); queryRef != wantRef {
			t.Errorf("got query ref_name %#v, want %#v", queryRef, wantRef)
		}
		if wantSince == "" && r.URL.Query().Has("since") {
			t.Errorf("got query since %#v, want none", r.URL.Query().Get("since"))
		}
		if wantSince != "" {
			if querySince := r.URL.Query().Get("since"); querySince != wantSince {
				t.Errorf("got query since %#v, want %#v", querySince, wantSince)
			}
		}
		if wantToken != "" {
			if token := r.URL.Query().Get("private_token"); token != wantToken {
				t.Logf("got token %#v, want %#v", token, wantToken)
				w.WriteHeader(http.StatusNotFound)
				return
			}
		}
		if token := r.URL.Query().Get("private_token"); token != "" && wantToken == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if response != nil {
			w.Write(response)
		}
	}))
}

func mustReadFile(t *testing.T, filename string) []byte {
	t.Helper()
	b, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
