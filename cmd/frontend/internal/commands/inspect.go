package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valderanvvk/frontend-base-template/internal/assembler"
	"gopkg.in/yaml.v3"
)

// InspectCmd prints the assembled configuration, or a single value of it.
type InspectCmd struct {
	Format        string `help:"Output format." enum:"json,yaml" default:"json"`
	SplitChunks   bool   `help:"Assemble with chunk splitting enabled."`
	SkipPathCheck bool   `help:"Do not require source directories to exist."`
	Alias         string `help:"Print only the directory an alias token resolves to." placeholder:"TOKEN"`
	Filename      string `help:"Print only the output filename template of an artifact kind (js or css)." placeholder:"KIND"`
}

func (c *InspectCmd) Run(ctx context.Context, globals *Globals) error {
	logger, shutdown := globals.setup(ctx)
	defer shutdown()

	if c.Filename != "" {
		return c.printFilename(globals)
	}

	cfg, err := globals.assemble(assembler.Options{
		SplitChunks:   c.SplitChunks,
		DevServer:     assembler.DefaultDevServer(),
		SkipPathCheck: c.SkipPathCheck,
	})
	if err != nil {
		return err
	}

	if c.Alias != "" {
		dir, ok := cfg.AliasFor(c.Alias)
		if !ok {
			return fmt.Errorf("unknown alias token %q", c.Alias)
		}
		_, err = fmt.Fprintln(stdout, dir)
		return err
	}

	var out []byte
	switch c.Format {
	case "yaml":
		out, err = yaml.Marshal(cfg)
	default:
		out, err = json.MarshalIndent(cfg, "", "  ")
		out = append(out, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	logger.Debug().Str("format", c.Format).Msg("Printing configuration")
	_, err = stdout.Write(out)
	return err
}

func (c *InspectCmd) printFilename(globals *Globals) error {
	kind, err := assembler.ParseArtifactKind(c.Filename)
	if err != nil {
		return err
	}
	d, err := globals.descriptor()
	if err != nil {
		return err
	}
	name, err := assembler.FilenameFor(d, kind, globals.Mode)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, name)
	return err
}
