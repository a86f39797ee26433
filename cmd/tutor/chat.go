package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/ashureev/ds-tutor/internal/tutor"
	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /level LEVEL    switch to Beginner, Intermediate or Advanced
  /reset          clear the conversation
  /export [FILE]  write the transcript (default chat_history.txt)
  /quit           leave`

func newChatCommand(opts *rootOptions) *cobra.Command {
	var (
		copyOnExit bool
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive tutoring session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, conv, err := newService(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer svc.Close()

			s := &chatSession{
				svc:    svc,
				conv:   conv,
				in:     cmd.InOrStdin(),
				out:    cmd.OutOrStdout(),
				render: &renderer{out: cmd.OutOrStdout(), style: opts.style, plain: opts.plain},
			}
			if err := s.run(cmd.Context()); err != nil {
				return err
			}
			return s.exportOnExit(outPath, copyOnExit)
		},
	}

	cmd.Flags().BoolVar(&copyOnExit, "copy", false, "copy the transcript to the clipboard on exit")
	cmd.Flags().StringVar(&outPath, "out", "", "write the transcript to this file on exit")
	return cmd
}

// chatSession is the interactive loop behind `tutor chat`.
type chatSession struct {
	svc    *tutor.Service
	conv   *tutor.Conversation
	in     io.Reader
	out    io.Writer
	render *renderer
}

func (s *chatSession) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func (s *chatSession) run(ctx context.Context) error {
	s.printf("Data Science tutor (%s). Type /help for commands.\n", s.conv.Level())

	scanner := bufio.NewScanner(s.in)
	for {
		s.printf("> ")
		if !scanner.Scan() {
			s.printf("\n")
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := s.command(line); quit {
				return nil
			}
			continue
		}

		answer, err := s.svc.Ask(ctx, s.conv, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.printf("error: %v\n", err)
			continue
		}
		// The current turn shows the whole reply; history keeps the level slice.
		s.render.print("**AI:** " + answer.Full)
	}
}

// command runs a slash command and reports whether the session should end.
func (s *chatSession) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		s.printf("%s\n", chatHelp)
	case "/reset":
		s.svc.Reset(s.conv)
		s.printf("Conversation cleared.\n")
	case "/level":
		if arg == "" {
			s.printf("Current level: %s\n", s.conv.Level())
			return false
		}
		level, err := domain.ParseLevel(arg)
		if err == nil {
			err = s.conv.SetLevel(level)
		}
		if err != nil {
			s.printf("error: %v\n", err)
			return false
		}
		s.printf("Level set to %s.\n", level)
	case "/export":
		path := arg
		if path == "" {
			path = tutor.TranscriptFilename
		}
		if err := s.writeTranscript(path); err != nil {
			s.printf("error: %v\n", err)
			return false
		}
		s.printf("Transcript written to %s.\n", path)
	default:
		s.printf("Unknown command %s. Type /help.\n", name)
	}
	return false
}

func (s *chatSession) transcript() string {
	return tutor.FormatTranscript(s.conv.Exchanges())
}

func (s *chatSession) writeTranscript(path string) error {
	if len(s.conv.Exchanges()) == 0 {
		return fmt.Errorf("nothing to export")
	}
	if err := os.WriteFile(path, []byte(s.transcript()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

func (s *chatSession) exportOnExit(outPath string, copyToClipboard bool) error {
	if len(s.conv.Exchanges()) == 0 {
		return nil
	}
	if outPath != "" {
		if err := s.writeTranscript(outPath); err != nil {
			return err
		}
		s.printf("Transcript written to %s.\n", outPath)
	}
	if copyToClipboard {
		if err := clipboard.WriteAll(s.transcript()); err != nil {
			return fmt.Errorf("copy transcript: %w", err)
		}
		s.printf("Transcript copied to clipboard.\n")
	}
	return nil
}
