// Package cli implements the studio command line client.
//
//	studio generate --image <file|url> --style <id>
//	studio status <jobId> [--wait]
//	studio credits
//	studio styles
//	studio token --user <id>
//
// The API address and session token come from --api/--token or the
// STUDIO_API_URL/STUDIO_TOKEN environment variables.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"productstudio/internal/auth"
	"productstudio/internal/client"
)

type globals struct {
	apiURL   string
	token    string
	interval time.Duration
	attempts int
	deadline time.Duration
	verbose  bool
}

func (g *globals) api() *client.API {
	return client.NewAPI(client.Options{BaseURL: g.apiURL, Token: g.token})
}

func (g *globals) logger(cmd *cobra.Command) zerolog.Logger {
	level := zerolog.WarnLevel
	if g.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).Level(level).With().Timestamp().Logger()
}

func (g *globals) poller(cmd *cobra.Command) *client.Poller {
	out := cmd.OutOrStdout()
	return client.NewPoller(g.api(), client.PollerOptions{
		Interval:    g.interval,
		MaxAttempts: g.attempts,
		Deadline:    g.deadline,
		Logger:      g.logger(cmd),
		OnChange: func(s client.Snapshot) {
			if !s.Terminal() {
				fmt.Fprintf(out, "%s %s\n", s.State, s.JobID)
			}
		},
	})
}

func BuildCLI() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "studio",
		Short:         "Product photo background generation client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.apiURL, "api", envOr("STUDIO_API_URL", "http://localhost:8080"), "API base URL")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("STUDIO_TOKEN"), "session token")
	root.PersistentFlags().DurationVar(&g.interval, "interval", client.DefaultInterval, "status poll interval")
	root.PersistentFlags().IntVar(&g.attempts, "max-attempts", client.DefaultMaxAttempts, "maximum status polls")
	root.PersistentFlags().DurationVar(&g.deadline, "deadline", client.DefaultDeadline, "overall polling deadline")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log poll errors")

	root.AddCommand(
		buildGenerateCommand(g),
		buildStatusCommand(g),
		buildCreditsCommand(g),
		buildStylesCommand(g),
		buildTokenCommand(),
	)
	return root
}

// Execute runs the CLI until completion or SIGINT/SIGTERM.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := BuildCLI().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func buildGenerateCommand(g *globals) *cobra.Command {
	var image, style string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Upload an image, request a background and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := client.Input{StyleID: style}
			if isURL(image) {
				in.ImageURL = image
			} else {
				f, err := os.Open(image)
				if err != nil {
					return fmt.Errorf("open image: %w", err)
				}
				defer f.Close()
				in.Name = filepath.Base(image)
				in.Body = f
			}
			snap, err := g.poller(cmd).Generate(cmd.Context(), in)
			if err != nil {
				return err
			}
			return report(cmd, snap)
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "image file or http(s) URL")
	cmd.Flags().StringVar(&style, "style", "", "style id, see the styles command")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("style")
	return cmd
}

func buildStatusCommand(g *globals) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "status <jobId>",
		Short: "Show a job, optionally waiting for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wait {
				snap, err := g.poller(cmd).Watch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return report(cmd, snap)
			}
			job, err := g.api().Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s", job.ID, job.Status)
			if job.ResultURL != nil {
				fmt.Fprintf(cmd.OutOrStdout(), " %s", *job.ResultURL)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the job is done or failed")
	return cmd
}

func buildCreditsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "credits",
		Short: "Show the remaining credit balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.api().Profile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", p.Credits)
			return nil
		},
	}
}

func buildStylesCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List available styles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := g.api().Styles(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func buildTokenCommand() *cobra.Command {
	var user, locale, secret string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(user) == "" {
				return errors.New("--user is required")
			}
			if secret == "" {
				return errors.New("JWT_SECRET or --secret is required")
			}
			tok, err := auth.SignToken(secret, auth.TokenClaims{
				Sub:    user,
				Locale: locale,
				Exp:    time.Now().Add(ttl).Unix(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&locale, "locale", "", "preferred locale claim")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func report(cmd *cobra.Command, snap client.Snapshot) error {
	if snap.State == client.StateFailed {
		return errors.New(snap.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), snap.ResultURL)
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
