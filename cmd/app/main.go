package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/matcluster/internal"
	pkgconfig "github.com/starford/matcluster/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func importSheet(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: matcluster import <sheet.yaml>")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := internal.Import(ctx, f, internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	fmt.Printf("imported %d materials\n", n)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "matcluster",
		Usage:  "Material classification tree editor and backend",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP backend",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Run the tree editor as an MCP server on stdio",
				Action: mcp,
			},
			{
				Name:      "import",
				Usage:     "Add materials from a YAML sheet to the catalog",
				ArgsUsage: "<sheet.yaml>",
				Action:    importSheet,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
