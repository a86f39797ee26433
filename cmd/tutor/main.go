// Command tutor is a terminal client for the Data Science tutor.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/ashureev/ds-tutor/internal/config"
	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/ashureev/ds-tutor/internal/llm"
	"github.com/ashureev/ds-tutor/internal/tutor"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose bool
	level   string
	style   string
	plain   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "tutor",
		Short:        "Ask Data Science questions at your learning level",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			_ = godotenv.Load()
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.level, "level", "l", "", "learning level: Beginner, Intermediate or Advanced (default TUTOR_DEFAULT_LEVEL)")
	root.PersistentFlags().StringVar(&opts.style, "style", "dark", "glamour style for rendering answers")
	root.PersistentFlags().BoolVar(&opts.plain, "plain", false, "print answers without markdown rendering")

	root.AddCommand(newChatCommand(opts), newAskCommand(opts))
	return root
}

// newService wires the configured model into a tutor service and opens a
// conversation at the requested level.
func newService(ctx context.Context, opts *rootOptions) (*tutor.Service, *tutor.Conversation, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Tutor.DefaultLevel
	if opts.level != "" {
		if level, err = domain.ParseLevel(opts.level); err != nil {
			return nil, nil, err
		}
	}

	model, err := llm.New(ctx, cfg.Model, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("initialize model: %w", err)
	}

	svc, err := tutor.NewService(model, tutor.WithStructuredPrompt(cfg.Tutor.StructuredPrompt))
	if err != nil {
		return nil, nil, err
	}

	conv, err := tutor.NewConversation("local", "cli", level)
	if err != nil {
		return nil, nil, err
	}
	return svc, conv, nil
}
