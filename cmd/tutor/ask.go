package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newAskCommand(opts *rootOptions) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, conv, err := newService(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer svc.Close()

			answer, err := svc.Ask(cmd.Context(), conv, strings.Join(args, " "))
			if err != nil {
				return err
			}

			r := &renderer{out: cmd.OutOrStdout(), style: opts.style, plain: opts.plain}
			if full {
				r.print(answer.Full)
			} else {
				r.print(answer.Answer)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "print the full reply instead of the section for your level")
	return cmd
}
