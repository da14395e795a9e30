package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds each commit query unless the configuration
	// overrides it.
	DefaultTimeout = 10 * time.Second

	defaultEndpoint = "https://gitlab.com"
	defaultRef      = "master"

	apiErrorMessage = "Gitlab response is not succeed"
)

// ClientConfig carries everything needed to construct a Client. The zero
// value queries public gitlab.com anonymously with the default timeout.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client queries the commits API of a single GitLab host.
//
// Queries never return an error: every outcome, including transport
// failures, is normalised into a CommitResult. Only constructing a Client
// from a bad configuration fails.
type Client struct {
	client   *http.Client
	endpoint string
	token    string
}

// New creates a new GitLab client.
func New(cfg ClientConfig) (*Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return NewWithHTTPClient(cfg, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient creates a GitLab client that issues requests through
// hc, which the caller configures and owns.
func NewWithHTTPClient(cfg ClientConfig, hc *http.Client) (*Client, error) {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must include a scheme and host", endpoint)
	}
	return &Client{
		client:   hc,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		token:    cfg.Token,
	}, nil
}

// Commits fetches the commits on one branch of the identified project,
// optionally limited to those since an ISO 8601 timestamp. The timestamp
// is passed through verbatim, never reparsed. An empty ref queries
// master. Cancelling the context abandons the request, which surfaces as
// a transport error result.
func (c *Client) Commits(ctx context.Context, projectID, ref, since string) CommitResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, makeCommitsURL(c.endpoint, c.token, projectID, ref, since), nil)
	if err != nil {
		return transportErrorResult(err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return transportErrorResult(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErrorResult(err)
	}
	result, err := ResultFromMap(processCommitResponse(resp.StatusCode, body))
	if err != nil {
		return transportErrorResult(err)
	}
	return result
}

// CommitsSync is the blocking form of Commits, for callers outside a
// context-aware scheduler. The two forms produce identical results for
// the same inputs.
func (c *Client) CommitsSync(projectID, ref, since string) CommitResult {
	return c.Commits(context.Background(), projectID, ref, since)
}

// processCommitResponse normalises an HTTP response into result fields.
// Only a 200 carrying a JSON list is a success. A 200 with any other body
// keeps its status alongside a message quoting the body. Any non-200
// status is flattened to StatusError with a fixed message, losing the
// provider's status code.
func processCommitResponse(status int, body []byte) map[string]interface{} {
	if status != http.StatusOK {
		return map[string]interface{}{
			"outcome": string(OutcomeAPIError),
			"success": false,
			"status":  StatusError,
			"message": apiErrorMessage,
			"commits": []interface{}{},
		}
	}
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if list, ok := decoded.([]interface{}); ok {
			return map[string]interface{}{
				"outcome": string(OutcomeSuccess),
				"success": true,
				"status":  status,
				"message": "",
				"commits": list,
			}
		}
	}
	return map[string]interface{}{
		"outcome": string(OutcomeAPIError),
		"success": false,
		"status":  status,
		"message": fmt.Sprintf("result is not valid. result: %s", body),
		"commits": []interface{}{},
	}
}

func transportErrorResult(err error) CommitResult {
	return CommitResult{
		Outcome: OutcomeTransportError,
		Success: false,
		Status:  StatusError,
		Message: err.Error(),
		Commits: []Commit{},
	}
}

func makeCommitsURL(endpoint, token, projectID, ref, since string) string {
	if ref == "" {
		ref = defaultRef
	}
	values := url.Values{
		"ref_name": []string{ref},
	}
	if since != "" {
		values.Set("since", since)
	}
	if token != "" {
		values.Set("private_token", token)
	}
	return fmt.Sprintf("%s/api/v4/projects/%s/repository/commits?%s",
		endpoint, strings.Replace(projectID, "/", "%2F", -1), values.Encode())
}
