package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/ashureev/ds-tutor/internal/llm"
	"github.com/ashureev/ds-tutor/internal/tutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reply = "🔰 Beginner: Use pandas. 📚 Intermediate: Use groupby. 🚀 Advanced: Use vectorized ops."

func newTestSession(t *testing.T, input string, model llm.Model) (*chatSession, *bytes.Buffer) {
	t.Helper()
	svc, err := tutor.NewService(model)
	require.NoError(t, err)

	conv, err := tutor.NewConversation("local", "cli", domain.LevelBeginner)
	require.NoError(t, err)

	var out bytes.Buffer
	return &chatSession{
		svc:    svc,
		conv:   conv,
		in:     strings.NewReader(input),
		out:    &out,
		render: &renderer{out: &out, plain: true},
	}, &out
}

func staticModel(text string) llm.Model {
	return llm.ModelFunc(func(context.Context, []domain.Turn) (string, error) {
		return text, nil
	})
}

func TestChatSessionAsksAndSwitchesLevel(t *testing.T) {
	s, out := newTestSession(t, "what is pandas?\n/level advanced\nspeed?\n/quit\nignored\n", staticModel(reply))

	require.NoError(t, s.run(context.Background()))

	assert.Contains(t, out.String(), "**AI:** "+reply)
	assert.Contains(t, out.String(), "Level set to Advanced.")
	assert.Equal(t, []domain.Exchange{
		{Query: "what is pandas?", Answer: "🔰 Beginner: Use pandas."},
		{Query: "speed?", Answer: "🚀 Advanced: Use vectorized ops."},
	}, s.conv.Exchanges())
}

func TestChatSessionCommands(t *testing.T) {
	s, out := newTestSession(t, "q\n/reset\n/level Expert\n/level\n/bogus\n/export\n", staticModel(reply))

	require.NoError(t, s.run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Conversation cleared.")
	assert.Contains(t, text, "invalid level")
	assert.Contains(t, text, "Current level: Beginner")
	assert.Contains(t, text, "Unknown command /bogus")
	assert.Contains(t, text, "nothing to export")
	assert.Empty(t, s.conv.Turns())
}

func TestChatSessionModelError(t *testing.T) {
	failing := llm.ModelFunc(func(context.Context, []domain.Turn) (string, error) {
		return "", errors.New("quota exceeded")
	})
	s, out := newTestSession(t, "q\n", failing)

	require.NoError(t, s.run(context.Background()))
	assert.Contains(t, out.String(), "quota exceeded")
	assert.Empty(t, s.conv.Turns())
}

func TestChatSessionExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.txt")
	s, _ := newTestSession(t, "what is pandas?\n/export "+path+"\n", staticModel(reply))

	require.NoError(t, s.run(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "**You:** what is pandas?\n**AI:** 🔰 Beginner: Use pandas.\n", string(data))
}

func TestExportOnExitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	s, _ := newTestSession(t, "q\n", staticModel("plain answer"))
	require.NoError(t, s.run(context.Background()))

	require.NoError(t, s.exportOnExit(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "**You:** q\n**AI:** plain answer\n", string(data))
}

func TestExportOnExitEmptyIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	s, _ := newTestSession(t, "", staticModel(reply))

	require.NoError(t, s.exportOnExit(path, true))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRootCommandRejectsBadLevel(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "test")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"ask", "--level", "Expert", "hi"})
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetOut(&stderr)

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidLevel)
}
