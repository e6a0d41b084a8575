package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/dig"

	"github.com/davidbz/starray/internal/config"
	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/http"
	"github.com/davidbz/starray/internal/http/middleware"
	"github.com/davidbz/starray/internal/observability"
	"github.com/davidbz/starray/internal/provider/gateway"
	"github.com/davidbz/starray/internal/provider/registry"
	"github.com/davidbz/starray/internal/routing"
	"github.com/davidbz/starray/internal/session"
	sessionredis "github.com/davidbz/starray/internal/session/redis"
	"github.com/davidbz/starray/internal/terminal"
)

const version = "0.1.0"

// errReported marks failures already shown to the user.
var errReported = errors.New("reported")

// CLI is the command-line surface. Without a subcommand it starts the chat loop.
type CLI struct {
	Config    string           `short:"c" help:"Path to the config file."`
	SessionID string           `name:"session-id" help:"Resume a stored session."`
	Version   kong.VersionFlag `help:"Print the version and exit."`

	Chat     chatCmd     `cmd:"" default:"1" help:"Run the Analyst chat loop."`
	Status   statusCmd   `cmd:"" help:"Show baseline app status."`
	Provider providerCmd `cmd:"" help:"Show provider/model routing."`
	Init     initCmd     `cmd:"" help:"Create a user config file."`
	Serve    serveCmd    `cmd:"" help:"Serve the Analyst over HTTP."`
	Sessions sessionsCmd `cmd:"" help:"List stored sessions."`
}

// app carries what every command needs.
type app struct {
	cli        *CLI
	configPath string
	presenter  *terminal.Presenter
	container  *dig.Container
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name(config.AppName),
		kong.Description("StarRay CLI"),
		kong.Vars{"version": fmt.Sprintf("%s %s", config.AppName, version)},
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build CLI: %v\n", err)
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 2
	}

	if _, err := observability.InitLogger(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := config.ResolvePath(cli.Config)
	if kctx.Command() == "init" {
		configPath = config.ResolveInitPath(cli.Config)
	}

	a := &app{
		cli:        &cli,
		configPath: configPath,
		presenter:  terminal.NewPresenter(os.Stdout),
		container:  buildContainer(configPath),
	}

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(a); err != nil {
		if !errors.Is(dig.RootCause(err), errReported) {
			a.fail(err)
		}
		return 1
	}

	return 0
}

// fail prints err and the init hint when the user config is missing.
func (a *app) fail(err error) error {
	err = dig.RootCause(err)
	a.presenter.Error(err)
	if errors.Is(err, domain.ErrConfig) && a.configPath == config.UserConfigPath() {
		a.presenter.InitHint()
	}
	return errReported
}

func buildContainer(configPath string) *dig.Container {
	container := dig.New()

	mustProvide := func(constructor any, what string, opts ...dig.ProvideOption) {
		if err := container.Provide(constructor, opts...); err != nil {
			log.Fatalf("Failed to provide %s: %v", what, err)
		}
	}

	// Configuration
	mustProvide(func() (*config.Config, error) {
		return config.Load(configPath)
	}, "config")
	mustProvide(config.ParseDependenciesConfig, "config dependencies")

	// Provider Registry
	mustProvide(func(gw *gateway.Config) (domain.ProviderRegistry, error) {
		reg := registry.NewRegistry()
		if err := gateway.RegisterVendors(reg, *gw); err != nil {
			return nil, fmt.Errorf("failed to register gateway vendors: %w", err)
		}
		return reg, nil
	}, "registry")

	// Domain Services
	mustProvide(routing.NewRouter, "router", dig.As(new(domain.Router)))
	mustProvide(domain.NewAnalystService, "analyst service")

	// Session Store
	mustProvide(newSessionStore, "session store")

	// HTTP Layer
	mustProvide(http.NewHandler, "HTTP handler")
	mustProvide(middleware.BuildMiddlewareChain, "HTTP middleware")
	mustProvide(http.NewServer, "HTTP server")

	return container
}

func newSessionStore(storage *config.StorageConfig) (domain.SessionStore, error) {
	if storage.Backend != config.BackendRedis {
		return session.NewFileStore(storage.SessionsDir()), nil
	}

	client, err := sessionredis.NewClient(storage.RedisURL)
	if err != nil {
		return nil, &config.Error{Msg: "Invalid redis_url", Err: err}
	}
	return sessionredis.NewStore(client, sessionredis.DefaultKeyPrefix), nil
}
