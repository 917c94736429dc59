package commands

import (
	"context"

	"github.com/valderanvvk/frontend-base-template/internal/assembler"
	"github.com/valderanvvk/frontend-base-template/internal/publish"
)

// PublishCmd uploads a finished build.
type PublishCmd struct {
	Dir    string `help:"Directory to upload. Defaults to the configured output directory."`
	Prefix string `help:"Key prefix of the uploaded objects." env:"FRONTEND_S3_PREFIX"`

	Endpoint  string `help:"S3 endpoint (host:port)." required:"" env:"FRONTEND_S3_ENDPOINT"`
	Region    string `help:"S3 region." env:"FRONTEND_S3_REGION"`
	Bucket    string `help:"Target bucket, created when missing." required:"" env:"FRONTEND_S3_BUCKET"`
	AccessKey string `help:"S3 access key." env:"FRONTEND_S3_ACCESS_KEY"`
	SecretKey string `help:"S3 secret key." env:"FRONTEND_S3_SECRET_KEY"`
	UseSSL    bool   `help:"Use TLS." default:"true" negatable:"" env:"FRONTEND_S3_USE_SSL"`
}

func (c *PublishCmd) Run(ctx context.Context, globals *Globals) error {
	log, shutdown := globals.setup(ctx)
	defer shutdown()

	dir := c.Dir
	if dir == "" {
		cfg, err := globals.assemble(assembler.Options{SkipPathCheck: true})
		if err != nil {
			return err
		}
		dir = cfg.Output.Path
	}

	p, err := publish.New(publish.Config{
		Endpoint:  c.Endpoint,
		Region:    c.Region,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Bucket:    c.Bucket,
		UseSSL:    c.UseSSL,
	}, nil)
	if err != nil {
		return err
	}

	log.Info().Str("dir", dir).Str("bucket", c.Bucket).Str("prefix", c.Prefix).Msg("Publishing build")

	_, err = p.Publish(ctx, dir, c.Prefix)
	return err
}
