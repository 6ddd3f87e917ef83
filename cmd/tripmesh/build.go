package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/api/option"

	"github.com/hupe1980/tripmesh"
	"github.com/hupe1980/tripmesh/calendar"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/engine"
	"github.com/hupe1980/tripmesh/internal/config"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/mailer"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/model/anthropic"
	"github.com/hupe1980/tripmesh/model/gemini"
	"github.com/hupe1980/tripmesh/model/openai"
	"github.com/hupe1980/tripmesh/naver"
	"github.com/hupe1980/tripmesh/session"
)

// closer collects resources released on shutdown.
type closer []func() error

func (c closer) Close() error {
	var first error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// buildOracle creates the primary provider and wraps it with the configured
// fallbacks. Fallback entries are "provider" or "provider:model".
func buildOracle(ctx context.Context, cfg config.ModelConfig) (model.Model, error) {
	primary, err := buildProvider(ctx, cfg, cfg.Provider, cfg.Name)
	if err != nil {
		return nil, err
	}

	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}

	fallbacks := make([]model.Model, 0, len(cfg.Fallbacks))
	for _, entry := range cfg.Fallbacks {
		provider, name, _ := strings.Cut(strings.TrimSpace(entry), ":")
		m, err := buildProvider(ctx, cfg, provider, name)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", entry, err)
		}
		fallbacks = append(fallbacks, m)
	}

	return model.NewFallback(primary, fallbacks...), nil
}

func buildProvider(ctx context.Context, cfg config.ModelConfig, provider, name string) (model.Model, error) {
	switch provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if name != "" {
				o.Model = name
			}
			o.APIKey = cfg.OpenAIKey
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if name != "" {
				o.Model = anthropicsdk.Model(name)
			}
			o.APIKey = cfg.AnthropicKey
		}), nil
	case "gemini":
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			if name != "" {
				o.Model = name
			}
			o.APIKey = cfg.GeminiKey
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case "mock":
		return model.NewMockModel(firstNonEmpty(name, "mock"), "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}
}

func buildStore(cfg config.StoreConfig) (core.ContextStore, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return session.NewInMemoryStore(), func() error { return nil }, nil
	case "sqlite":
		s, err := session.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func buildLogger(cfg config.LogConfig, out io.Writer) (logging.Logger, error) {
	return logging.New(cfg.Backend, cfg.Format, logging.ParseLevel(cfg.Level), out)
}

// buildMesh wires a TripMesh from cfg. The returned closer releases the
// store; the caller still has to Close the mesh itself.
func buildMesh(ctx context.Context, cfg *config.Config, logger logging.Logger) (*tripmesh.TripMesh, closer, error) {
	var cleanup closer

	oracle, err := buildOracle(ctx, cfg.Model)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := buildStore(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	cleanup = append(cleanup, closeStore)

	var inserter calendar.Inserter
	if cfg.Google.Enabled() {
		var opts []option.ClientOption
		if cfg.Google.CredentialsJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Google.CredentialsJSON)))
		} else {
			opts = append(opts, option.WithCredentialsFile(cfg.Google.CredentialsFile))
		}

		gi, err := calendar.NewGoogleInserter(ctx, opts...)
		if err != nil {
			_ = cleanup.Close()
			return nil, nil, fmt.Errorf("create calendar client: %w", err)
		}
		inserter = gi
	}

	engineCfg := engine.DefaultConfig
	engineCfg.SerializeSessions = cfg.Engine.SerializeSessions

	m := tripmesh.New(oracle, func(o *tripmesh.Options) {
		o.EngineConfig = engineCfg
		o.Store = store
		o.MaxAttempts = cfg.Model.MaxRetries
		o.SearchConcurrency = cfg.Engine.SearchConcurrency
		o.DeliveryWorkers = cfg.Delivery.Workers
		o.DeliveryQueueSize = cfg.Delivery.QueueSize
		o.DeliveryJobTimeout = cfg.Delivery.JobTimeout
		o.CalendarID = cfg.Google.CalendarID
		o.MailFrom = cfg.SMTP.Sender
		o.Logger = logger

		if inserter != nil {
			o.Calendar = inserter
		}

		if cfg.Naver.Enabled() {
			o.Searcher = naver.New(func(no *naver.Options) {
				no.ClientID = cfg.Naver.ClientID
				no.ClientSecret = cfg.Naver.ClientSecret
			})
		} else {
			logger.Warn("naver credentials missing, place search disabled")
		}

		if cfg.SMTP.Enabled() && cfg.SMTP.Username != "" {
			o.Sender = mailer.NewSMTPSender(func(mo *mailer.Options) {
				mo.Host = cfg.SMTP.Server
				mo.Port = cfg.SMTP.Port
				mo.Username = cfg.SMTP.Username
				mo.Password = cfg.SMTP.Password
				mo.From = cfg.SMTP.Sender
			})
		}
	})

	return m, cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
