package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/valderanvvk/frontend-base-template/cmd/frontend/internal/commands"
	"github.com/valderanvvk/frontend-base-template/internal/assembler"
)

var (
	version = "dev"
	cli     struct {
		Build   commands.BuildCmd   `cmd:"" help:"Build the project into the output directory"`
		Serve   commands.ServeCmd   `cmd:"" help:"Start the development server"`
		Inspect commands.InspectCmd `cmd:"" help:"Print the assembled build configuration"`
		Publish commands.PublishCmd `cmd:"" help:"Upload the build output to an S3 compatible bucket"`

		Debug      bool   `help:"Enable debug mode."`
		Mode       string `help:"Build mode; only \"development\" selects development settings." env:"${mode_env}"`
		Descriptor string `help:"Project descriptor file (YAML). The built-in layout is used when empty." short:"c" env:"FRONTEND_DESCRIPTOR"`
		Tracing    bool   `help:"Export traces and metrics over OTLP." env:"FRONTEND_TRACING"`
		Version    kong.VersionFlag
	}
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	devServer := assembler.DefaultDevServer()
	cmd := kong.Parse(&cli,
		kong.Name("frontend"),
		kong.Description("Build, serve and publish the front-end project."),
		kong.Vars{
			"version":  version,
			"mode_env": assembler.EnvMode,
			"dev_host": devServer.Host,
			"dev_port": strconv.Itoa(devServer.Port),
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		Mode:       assembler.ModeFromEnv(cli.Mode),
		Descriptor: cli.Descriptor,
		Tracing:    cli.Tracing,
	})
	cmd.FatalIfErrorf(err)
}
