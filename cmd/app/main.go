package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/dagaz/internal"
	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/views"
	pkgconfig "github.com/starford/dagaz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
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

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}

	return nil
}

func export(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	state := filter.State{
		Query:     cmd.String("q"),
		StartDate: cmd.String("start"),
		EndDate:   cmd.String("end"),
		Preset:    filter.ParsePreset(cmd.String("preset")),
	}
	for _, kv := range cmd.StringSlice("filter") {
		field, value, ok := strings.Cut(kv, "=")
		if !ok || field == "" {
			return fmt.Errorf("invalid --filter %q, want field=value", kv)
		}
		state = state.WithCategory(field, value)
	}

	path, err := internal.RunExport(ctx, internal.ExportRequest{
		View:   views.Name(cmd.String("view")),
		Filter: state,
		Format: cmd.String("format"),
		OutDir: cmd.String("out"),
	}, internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("export error: %w", err)
	}

	fmt.Println(path)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "dagaz",
		Usage:  "Admin dashboard backend: filtered platform views, exports and review-document returns",
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
				Usage:  "Run the HTTP service",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve view tools over MCP stdio",
				Action: serveMCP,
			},
			{
				Name:   "export",
				Usage:  "Export one filtered view to a CSV or XLSX file",
				Action: export,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "view", Usage: "View name", Required: true},
					&cli.StringFlag{Name: "q", Usage: "Free-text search"},
					&cli.StringSliceFlag{Name: "filter", Usage: "Category filter field=value (repeatable)"},
					&cli.StringFlag{Name: "start", Usage: "Start date YYYY-MM-DD"},
					&cli.StringFlag{Name: "end", Usage: "End date YYYY-MM-DD"},
					&cli.StringFlag{Name: "preset", Usage: "Relative date preset: today, week, month, year"},
					&cli.StringFlag{Name: "format", Usage: "csv or xlsx", Value: "csv"},
					&cli.StringFlag{Name: "out", Usage: "Output directory (default views.export_dir)"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
