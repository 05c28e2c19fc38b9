package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "scoped content moderation daemon",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3995",
			EnvVars: []string{"WARDEN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3994",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for persistence; omit to run fully in-memory",
			EnvVars: []string{"WARDEN_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "classifier-host",
			Usage:   "method, hostname, and port of the content classifier service; omit for a scripted mock",
			EnvVars: []string{"WARDEN_CLASSIFIER_HOST"},
		},
		&cli.StringFlag{
			Name:    "classifier-token",
			Usage:   "bearer token for the classifier service",
			EnvVars: []string{"WARDEN_CLASSIFIER_TOKEN"},
		},
		&cli.DurationFlag{
			Name:    "classifier-timeout",
			Usage:   "bound on a single classification call",
			Value:   10 * time.Second,
			EnvVars: []string{"WARDEN_CLASSIFIER_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "content-repo-host",
			Usage:   "method, hostname, and port of the feed store; omit for in-memory",
			EnvVars: []string{"WARDEN_CONTENT_REPO_HOST"},
		},
		&cli.BoolFlag{
			Name:    "disable-autopilot",
			Usage:   "global kill switch for autonomous execution",
			EnvVars: []string{"WARDEN_DISABLE_AUTOPILOT"},
		},
		&cli.Int64Flag{
			Name:    "velocity-cap",
			Usage:   "max autonomous executions per rolling minute, per instance",
			Value:   5,
			EnvVars: []string{"WARDEN_VELOCITY_CAP"},
		},
		&cli.IntFlag{
			Name:    "hesitation-cap",
			Usage:   "max autonomous executions per scope per hour before backing off",
			Value:   3,
			EnvVars: []string{"WARDEN_HESITATION_CAP"},
		},
		&cli.StringSliceFlag{
			Name:    "eligibility-override",
			Usage:   "scope IDs which bypass the eligibility volume/agreement checks",
			EnvVars: []string{"WARDEN_ELIGIBILITY_OVERRIDES"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		srv, err := NewServer(Config{
			Logger:               logger,
			RedisURL:             cctx.String("redis-url"),
			ClassifierHost:       cctx.String("classifier-host"),
			ClassifierToken:      cctx.String("classifier-token"),
			ClassifierTimeout:    cctx.Duration("classifier-timeout"),
			ContentRepoHost:      cctx.String("content-repo-host"),
			DisableAutopilot:     cctx.Bool("disable-autopilot"),
			VelocityCap:          cctx.Int64("velocity-cap"),
			HesitationCap:        cctx.Int("hesitation-cap"),
			EligibilityOverrides: cctx.StringSlice("eligibility-override"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.RunAPI(ctx, cctx.String("bind")); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}
