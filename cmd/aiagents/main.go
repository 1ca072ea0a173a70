package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/PiloTracer/aiagents"
	"github.com/PiloTracer/aiagents/core"
	"github.com/PiloTracer/aiagents/server"
)

func main() {
	app := &cli.App{
		Name:  "aiagents",
		Usage: "Document ingestion service for retrieval-augmented agents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the ingestion HTTP server",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides config)",
					},
					&cli.StringFlag{
						Name:  "auth-token",
						Usage: "Static bearer token required on every request",
					},
					&cli.StringFlag{
						Name:  "db-path",
						Usage: "Ledger database directory (overrides config)",
					},
					&cli.StringFlag{
						Name:  "qdrant-url",
						Usage: "Qdrant endpoint (overrides config)",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest a local path into an area and print the job report",
				ArgsUsage: "<path>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "area",
						Usage:    "Knowledge area slug",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "agent",
						Usage:    "Agent slug attributed to the ingested documents",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "recursive",
						Usage: "Walk subdirectories",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Reprocess files whose content hash already exists",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*aiagents.Config, error) {
	cfg, err := aiagents.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if token := c.String("auth-token"); token != "" {
		cfg.Server.AuthToken = token
	}
	if path := c.String("db-path"); path != "" {
		cfg.Ledger.Path = path
	}
	if url := c.String("qdrant-url"); url != "" {
		cfg.Qdrant.URL = url
	}
	return cfg, nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	service, err := aiagents.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer service.Close()

	var auth server.Authorizer
	if cfg.Server.AuthToken != "" {
		auth = server.StaticTokenAuthorizer{Token: cfg.Server.AuthToken}
	}

	srv := server.New(service, cfg.Server.Addr, auth)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	return srv.Start()
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one path argument")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	service, err := aiagents.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer service.Close()

	results, err := service.Ingest(context.Background(), aiagents.IngestRequest{
		ForceReprocess: c.Bool("force"),
		Locations: []core.Location{{
			URI:       c.Args().First(),
			AreaSlug:  c.String("area"),
			AgentSlug: c.String("agent"),
			Recursive: c.Bool("recursive"),
		}},
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	for _, result := range results {
		job := result.Job
		fmt.Printf("Job %s: %s\n", job.Id, job.Status)
		fmt.Printf("  Artifacts: %d total, %d processed\n",
			job.TotalArtifacts, job.ProcessedArtifacts)
		if job.ErrorMessage != "" {
			fmt.Printf("  Error: %s\n", job.ErrorMessage)
		}
		if s := job.TokenSummary; s != nil {
			fmt.Printf("  Tokens: %d total (%d valid, %d invalid), %d chunk(s) dropped\n",
				s.TotalTokens, s.ValidTokens, s.InvalidTokens, s.DroppedChunks)
		}
		for _, artifact := range result.Artifacts {
			fmt.Printf("  %-18s %s", artifact.Status, artifact.SourcePath)
			if artifact.Extractor != "" {
				fmt.Printf(" (%s, %d chunks)", artifact.Extractor, artifact.ChunkCount)
			}
			if artifact.Error != "" {
				fmt.Printf(" error: %s", artifact.Error)
			}
			fmt.Println()
		}
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
