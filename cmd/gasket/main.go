// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command gasket is the CLI for the parts knowledge assistant.
//
// Usage:
//
//	gasket serve --config config.yaml
//	gasket search "brake pads for Thar"
//	gasket ask "Which clutch plates are under 2000?"
//	gasket index --config config.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/gasket/pkg/config"
	"github.com/kadirpekel/gasket/pkg/engine"
	"github.com/kadirpekel/gasket/pkg/observability"
	"github.com/kadirpekel/gasket/pkg/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP server."`
	Search   SearchCmd   `cmd:"" help:"Search the parts catalog."`
	Ask      AskCmd      `cmd:"" help:"Ask a question and get a grounded answer."`
	Index    IndexCmd    `cmd:"" help:"Build or refresh the persisted embeddings."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	Corpus    string `help:"Path to the parts corpus (JSONL). Overrides the config file."`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// loadConfig resolves configuration from the --config file or builds a
// default one around --corpus.
func (cli *CLI) loadConfig() (*config.Config, error) {
	if cli.Config != "" {
		cfg, err := config.Load(cli.Config)
		if err != nil {
			return nil, err
		}
		if cli.Corpus != "" {
			cfg.Corpus.Path = cli.Corpus
		}
		slog.Info("Loaded configuration", "path", cli.Config)
		return cfg, nil
	}
	if cli.Corpus == "" {
		return nil, fmt.Errorf("either --config or --corpus is required")
	}
	return config.Default(cli.Corpus), nil
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("gasket version %s\n", version)
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides config)." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	obs, err := observability.NewManager(cfg.Observability)
	if err != nil {
		return err
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	eng, err := engine.Bootstrap(ctx, cfg, obs)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	return server.New(cfg, eng).Start(ctx)
}

// SearchCmd runs a one-shot search and prints results as JSON.
type SearchCmd struct {
	Query string `arg:"" help:"Search query."`
	TopK  int    `short:"k" help:"Number of results." default:"0"`
}

func (c *SearchCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := engine.Bootstrap(ctx, cfg, observability.NewNoopManager())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	k := c.TopK
	if k <= 0 {
		k = cfg.Engine.DefaultTopK
	}
	resp, err := eng.Search(ctx, c.Query, k)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

// AskCmd runs a one-shot grounded answer.
type AskCmd struct {
	Query string `arg:"" help:"Question to answer."`
	TopK  int    `short:"k" help:"Number of records retrieved as context." default:"0"`
}

func (c *AskCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := engine.Bootstrap(ctx, cfg, observability.NewNoopManager())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	resp, err := eng.Answer(ctx, c.Query, c.TopK)
	if err != nil {
		return err
	}

	fmt.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, pn := range resp.Sources {
			fmt.Printf("  - %s\n", pn)
		}
	}
	return nil
}

// IndexCmd builds the persisted embedding artifact and exits.
type IndexCmd struct{}

func (c *IndexCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := engine.Bootstrap(ctx, cfg, observability.NewNoopManager())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	stats := eng.Stats()
	if stats.VectorSize == 0 {
		return fmt.Errorf("embedding index build produced no entries; is the embedding backend running?")
	}
	fmt.Printf("Indexed %d records (%s provider)\n", stats.VectorSize, stats.VectorName)
	return nil
}

// ValidateCmd validates the configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required")
	}
	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Printf("%s is valid\n", cli.Config)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("gasket"),
		kong.Description("gasket - automotive parts knowledge assistant"),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
