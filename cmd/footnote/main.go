// Command footnote renumbers and repositions the footnotes of an EPUB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/FootnoteTool/core/footnote"
	"github.com/FocuswithJustin/FootnoteTool/internal/config"
	"github.com/FocuswithJustin/FootnoteTool/internal/driver"
	"github.com/FocuswithJustin/FootnoteTool/internal/logging"
)

const version = "0.1.0"

// CLI defines the command-line interface for footnote.
type CLI struct {
	Run     RunCmd     `cmd:"" default:"withargs" help:"Normalize the footnotes of an EPUB"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// RunCmd processes one EPUB. Flags left unset keep the value from the
// configuration file, or the default.
type RunCmd struct {
	Input       string `arg:"" name:"book" help:"EPUB file to process" type:"path"`
	Config      string `name:"config" short:"c" help:"YAML configuration file" type:"path"`
	Policy      string `name:"policy" short:"p" help:"Footnote layout: ${policies}"`
	Jobs        int    `name:"jobs" short:"j" help:"Documents processed concurrently"`
	Output      string `name:"output" short:"o" help:"Directory for the repacked EPUB and journal (default: next to the input)" type:"path"`
	Report      string `name:"report" help:"Write a JSON run report to this file" type:"path"`
	Suffix      string `name:"suffix" help:"Suffix added to output names (default: ${suffix})"`
	CompressLog bool   `name:"compress-log" help:"Save the journal xz-compressed"`
	LogLevel    string `name:"log-level" help:"Log level: debug, info, warn, error"`
	LogFormat   string `name:"log-format" help:"Log format: text, json"`
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(kctx *kong.Context) error {
	fmt.Fprintf(kctx.Stdout, "footnote version %s\n", version)
	return nil
}

// Run processes the input EPUB.
func (c *RunCmd) Run(kctx *kong.Context) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	logging.InitLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := driver.Run(ctx, driver.Options{Input: c.Input, OutputDir: c.Output, Config: cfg})
	if err != nil {
		return err
	}

	fmt.Fprintf(kctx.Stdout, "%s: %d documents, %d rewritten, %d failed, max note %d\n",
		report.Output, len(report.Files), report.Dirty(), report.Failed(), report.MaxSeq)
	fmt.Fprintf(kctx.Stdout, "journal: %s\n", report.Journal)
	if cfg.Report != "" {
		fmt.Fprintf(kctx.Stdout, "report: %s\n", cfg.Report)
	}
	return nil
}

// config loads the configuration file and applies the flags on top.
func (c *RunCmd) config() (*config.Config, error) {
	cfg := config.Default()
	if c.Config != "" {
		loaded, err := config.Load(c.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.Policy != "" {
		p, err := footnote.ParsePolicy(c.Policy)
		if err != nil {
			return nil, err
		}
		cfg.Policy = p
	}
	if c.LogLevel != "" {
		l, err := logging.ParseLevel(c.LogLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = l
	}
	if c.LogFormat != "" {
		f, err := logging.ParseFormat(c.LogFormat)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Format = f
	}
	if c.Jobs != 0 {
		cfg.Jobs = c.Jobs
	}
	if c.Suffix != "" {
		cfg.Suffix = c.Suffix
	}
	if c.Report != "" {
		cfg.Report = c.Report
	}
	if c.CompressLog {
		cfg.CompressLog = true
	}

	return cfg, cfg.Validate()
}

func options() []kong.Option {
	return []kong.Option{
		kong.Name("footnote"),
		kong.Description("Renumber and reposition EPUB footnotes"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"policies": strings.Join(footnote.Policies(), ", "),
			"suffix":   config.DefaultSuffix,
		},
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli, options()...)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
