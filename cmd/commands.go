package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/davidbz/starray/internal/config"
	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/http"
	"github.com/davidbz/starray/internal/observability"
	"github.com/davidbz/starray/internal/terminal"
)

const shutdownTimeout = 10 * time.Second

type statusCmd struct{}

func (c *statusCmd) Run(a *app) error {
	return a.container.Invoke(func(cfg *config.Config) {
		a.presenter.StatusReport(terminal.StatusInfo{
			ConfigPath:   a.configPath,
			Provider:     cfg.Provider.Name,
			Fallbacks:    cfg.Provider.Fallbacks,
			DefaultModel: cfg.Provider.DefaultModel,
			DataDir:      cfg.Storage.DataDir,
			Backend:      cfg.Storage.Backend,
		})
	})
}

type providerCmd struct{}

func (c *providerCmd) Run(a *app) error {
	return a.container.Invoke(func(analyst *domain.AnalystService) {
		a.presenter.RoutingReport(a.configPath, analyst.RouteSummary())
	})
}

type chatCmd struct {
	Message *string `short:"m" help:"Send one message and exit."`
}

func (c *chatCmd) Run(ctx context.Context, a *app) error {
	return a.container.Invoke(func(
		cfg *config.Config,
		analyst *domain.AnalystService,
		store domain.SessionStore,
	) error {
		defer closeStore(store)

		sess, err := openSession(ctx, a, store)
		if err != nil {
			return a.fail(err)
		}

		activity, err := observability.OpenSessionLog(cfg.LogsDir(), sess.ID)
		if err != nil {
			return a.fail(err)
		}
		defer activity.Close()

		conv, err := domain.NewConversation(analyst, store, sess, activity)
		if err != nil {
			return err
		}

		a.presenter.Intro(cfg.Provider.Name, cfg.Provider.DefaultModel, sess.ID)

		loop := terminal.NewLoop(conv, a.presenter, os.Stdin, terminal.LoopOptions{
			Provider: cfg.Provider.Name,
			Model:    cfg.Provider.DefaultModel,
			Prompt:   terminal.IsInteractive(os.Stdin),
		})

		if c.Message != nil {
			if err := loop.Send(ctx, *c.Message); err != nil && ctx.Err() == nil {
				return a.fail(err)
			}
			if err := conv.Flush(context.WithoutCancel(ctx)); err != nil {
				return a.fail(err)
			}
			a.presenter.Saved(sess.ID)
			return nil
		}

		if err := loop.Run(ctx); err != nil {
			return a.fail(err)
		}
		return nil
	})
}

func openSession(ctx context.Context, a *app, store domain.SessionStore) (*domain.Session, error) {
	if a.cli.SessionID == "" {
		return domain.NewSession(), nil
	}

	sess, err := store.Load(ctx, a.cli.SessionID)
	if err != nil {
		return nil, err
	}

	a.presenter.Resumed(sess.ID)
	return sess, nil
}

type initCmd struct {
	Force bool `help:"Overwrite an existing config file."`
}

func (c *initCmd) Run(a *app) error {
	if err := config.WriteDefault(a.configPath, c.Force); err != nil {
		if errors.Is(err, config.ErrExists) {
			a.presenter.Exists(a.configPath)
			return errReported
		}
		return a.fail(err)
	}

	a.presenter.Created(a.configPath)
	return nil
}

type serveCmd struct{}

func (c *serveCmd) Run(ctx context.Context, a *app) error {
	return a.container.Invoke(func(server *http.Server, store domain.SessionStore) error {
		defer closeStore(store)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})
}

type sessionsCmd struct{}

func (c *sessionsCmd) Run(ctx context.Context, a *app) error {
	return a.container.Invoke(func(store domain.SessionStore) error {
		defer closeStore(store)

		summaries, err := store.List(ctx)
		if err != nil {
			return err
		}

		a.presenter.Sessions(summaries)
		return nil
	})
}

func closeStore(store domain.SessionStore) {
	if closer, ok := store.(io.Closer); ok {
		_ = closer.Close()
	}
}
