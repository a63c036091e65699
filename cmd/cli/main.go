package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/polifeed/cmd/cli/internal/commands"
	"github.com/wolfeidau/polifeed/internal/logger"
	"github.com/wolfeidau/polifeed/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Log in with username and password"`
		Register commands.RegisterCmd `cmd:"" help:"Create an account and log in"`
		Logout   commands.LogoutCmd   `cmd:"" help:"End the current session"`
		Refresh  commands.RefreshCmd  `cmd:"" help:"Exchange the refresh token for a new token pair"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the signed-in user"`
		Password commands.PasswordCmd `cmd:"" help:"Reset a forgotten password"`
		Session  commands.SessionCmd  `cmd:"" help:"Inspect the locally stored session"`
		Get      commands.GetCmd      `cmd:"" help:"GET any API route with the current session"`
		Post     commands.PostCmd     `cmd:"" help:"POST to any API route with the current session"`
		Put      commands.PutCmd      `cmd:"" help:"PUT to any API route with the current session"`
		Patch    commands.PatchCmd    `cmd:"" help:"PATCH any API route with the current session"`
		Delete   commands.DeleteCmd   `cmd:"" help:"DELETE any API route with the current session"`
		Health   commands.HealthCmd   `cmd:"" help:"Check the backend is up"`

		Debug      bool   `help:"Enable debug mode." env:"POLIFEED_DEBUG"`
		Config     string `help:"Path to a YAML config file." type:"path" env:"POLIFEED_CONFIG"`
		EnvFile    string `help:"Path to a .env file." default:".env" type:"path"`
		Server     string `help:"API base URL, overrides config."`
		Storage    string `help:"Session storage backend." env:"POLIFEED_STORAGE"`
		StorageDir string `help:"Directory for file session storage." type:"path"`
		Tracing    bool   `help:"Export traces and metrics over OTLP." env:"POLIFEED_TRACING"`
		Version    kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	cmd.FatalIfErrorf(run(ctx, cmd))
}

// run keeps the deferred telemetry flush ahead of FatalIfErrorf's exit.
func run(ctx context.Context, cmd *kong.Context) error {
	log := logger.SetupGlobal(cli.Debug)

	if cli.Tracing {
		shutdown, err := telemetry.Init(ctx, "polifeed-cli", version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shutdown telemetry")
				}
			}()
		}
	}

	return cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		Config:     cli.Config,
		EnvFile:    cli.EnvFile,
		Server:     cli.Server,
		Storage:    cli.Storage,
		StorageDir: cli.StorageDir,
	})
}
