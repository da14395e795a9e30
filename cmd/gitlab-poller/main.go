package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/bigkevmcd/gitlab-polling/pkg/config"
	"github.com/bigkevmcd/gitlab-polling/pkg/connections"
	"github.com/bigkevmcd/gitlab-polling/pkg/events"
	"github.com/bigkevmcd/gitlab-polling/pkg/polling"
)

func main() {
	var (
		configPath string
		stateFile  string
		debug      bool
	)
	pflag.StringVar(&configPath, "config", "config.yaml", "path to the configuration file")
	pflag.StringVar(&stateFile, "state-file", "", "overrides the configured session state file")
	pflag.BoolVar(&debug, "debug", false, "enable debug logging")
	pflag.Parse()

	log, err := makeLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create the logger: %s\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error(err, "failed to load the configuration")
		os.Exit(1)
	}
	if stateFile != "" {
		cfg.StateFile = stateFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("polling interrupted")
			return
		}
		log.Error(err, "polling failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logr.Logger) error {
	conn, err := connections.NewEnvResolver().Resolve(ctx, cfg.Connection)
	if err != nil {
		return err
	}
	client, err := connections.NewClient(conn, cfg.Timeout.Duration)
	if err != nil {
		return err
	}

	var store *polling.FileStore
	if cfg.StateFile != "" {
		store = polling.NewFileStore(cfg.StateFile)
	}
	session, err := loadOrCreateSession(store, cfg, log)
	if err != nil {
		return err
	}

	changed, err := drive(ctx, polling.New(client, log), store, session)
	if err != nil {
		return err
	}

	if len(changed) == 0 {
		log.Info("no changes detected", "runs", session.Runs)
		return nil
	}
	log.Info("changes detected", "repos", changed)
	return publish(ctx, cfg, changed)
}

// drive runs the session to its terminal decision, persisting the state
// after each non-terminal cycle so an interrupted session resumes where
// it left off.
func drive(ctx context.Context, p *polling.Poller, store *polling.FileStore, s *polling.SessionState) ([]string, error) {
	for {
		result, err := p.Cycle(ctx, s)
		if err != nil {
			return nil, err
		}
		if result.Done {
			if store != nil {
				if err := store.Clear(); err != nil {
					return nil, err
				}
			}
			return result.Changed, nil
		}
		if store != nil {
			if err := store.Save(s); err != nil {
				return nil, err
			}
		}
		timer := time.NewTimer(result.RequeueAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func loadOrCreateSession(store *polling.FileStore, cfg *config.Config, log logr.Logger) (*polling.SessionState, error) {
	if store != nil {
		s, err := store.Load()
		if err != nil {
			return nil, err
		}
		if s != nil {
			log.Info("resuming session", "session", s.ID, "run", s.Runs)
			return s, nil
		}
	}
	return polling.NewSession(cfg.Spec())
}

func publish(ctx context.Context, cfg *config.Config, changed []string) error {
	if cfg.WebhookURL == "" {
		return nil
	}
	publisher := events.NewWebhookPublisher(&http.Client{Timeout: cfg.Timeout.Duration}, cfg.WebhookURL)
	return events.PublishAll(ctx, publisher, changed)
}

func makeLogger(debug bool) (logr.Logger, error) {
	zc := zap.NewProductionConfig()
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zl, err := zc.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}
