package connections

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bigkevmcd/gitlab-polling/pkg/gitlab"
)

// DefaultConnectionID is the connection resolved when a caller does not
// name one.
const DefaultConnectionID = "gitlab_default"

// Connection is a resolved host/credential pair for one GitLab server.
type Connection struct {
	Host  string
	Token string
}

// NewClient builds a GitLab client for a resolved connection. A zero
// timeout uses the client's default.
func NewClient(conn Connection, timeout time.Duration) (*gitlab.Client, error) {
	return gitlab.New(gitlab.ClientConfig{
		BaseURL: conn.Host,
		Token:   conn.Token,
		Timeout: timeout,
	})
}

// EnvResolver is an implementation of Resolver that reads connections
// from the environment: the id gitlab_default resolves through
// GITLAB_DEFAULT_URL and GITLAB_DEFAULT_TOKEN.
type EnvResolver struct{}

// NewEnvResolver creates and returns an EnvResolver.
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{}
}

// Resolve is an implementation of the Resolver interface.
func (e *EnvResolver) Resolve(ctx context.Context, id string) (Connection, error) {
	conn := Connection{
		Host:  os.Getenv(envVar(id, "URL")),
		Token: os.Getenv(envVar(id, "TOKEN")),
	}
	if err := validate(id, conn); err != nil {
		return Connection{}, err
	}
	return conn, nil
}

// StaticResolver is an implementation of Resolver with a fixed set of
// connections, used for file-based configuration and in tests.
type StaticResolver struct {
	connections map[string]Connection
}

// NewStaticResolver creates and returns a StaticResolver that resolves
// the provided connections.
func NewStaticResolver(connections map[string]Connection) *StaticResolver {
	return &StaticResolver{connections: connections}
}

// Resolve is an implementation of the Resolver interface.
func (s *StaticResolver) Resolve(ctx context.Context, id string) (Connection, error) {
	conn, ok := s.connections[id]
	if !ok {
		return Connection{}, fmt.Errorf("unknown connection %q", id)
	}
	if err := validate(id, conn); err != nil {
		return Connection{}, err
	}
	return conn, nil
}

// validate surfaces missing credentials before any query is attempted.
func validate(id string, conn Connection) error {
	if conn.Token == "" {
		return fmt.Errorf("connection %q: an access token is required to authenticate to GitLab", id)
	}
	if conn.Host == "" {
		return fmt.Errorf("connection %q: a host is required to connect to GitLab", id)
	}
	return nil
}

// envVar maps a connection id to an environment variable name, e.g.
// gitlab_default and URL to GITLAB_DEFAULT_URL.
func envVar(id, suffix string) string {
	mapped := strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, strings.ToUpper(id))
	return mapped + "_" + suffix
}
