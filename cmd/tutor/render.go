package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/glamour"
)

// renderer prints answers, through glamour unless plain is set.
type renderer struct {
	out   io.Writer
	style string
	plain bool
}

func (r *renderer) print(markdown string) {
	if !r.plain {
		styled, err := glamour.Render(markdown, r.style)
		if err == nil {
			_, _ = fmt.Fprint(r.out, styled)
			return
		}
		slog.Debug("glamour render failed, printing raw", "error", err)
	}
	_, _ = fmt.Fprintln(r.out, markdown)
}
