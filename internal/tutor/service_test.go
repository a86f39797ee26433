package tutor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, m *scriptedModel, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(m, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresModel(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}

func TestAskExtractsLevelSection(t *testing.T) {
	m := &scriptedModel{reply: tutorReply}
	svc := newTestService(t, m)
	conv := newTestConversation(t, domain.LevelIntermediate)

	answer, err := svc.Ask(context.Background(), conv, "How do I aggregate?")
	require.NoError(t, err)

	assert.Equal(t, "📚 Intermediate: Use groupby.", answer.Answer)
	assert.Equal(t, tutorReply, answer.Full)
	assert.Equal(t, domain.LevelIntermediate, answer.Level)
	assert.True(t, answer.Sectioned)

	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Content: "How do I aggregate?"},
		{Role: domain.RoleAssistant, Content: "📚 Intermediate: Use groupby."},
	}, conv.Turns())
	assert.Equal(t, []domain.Exchange{
		{Query: "How do I aggregate?", Answer: "📚 Intermediate: Use groupby."},
	}, conv.Exchanges())
}

func TestAskUnstructuredReplyStoredWhole(t *testing.T) {
	m := &scriptedModel{reply: "Sorry, I only answer Data Science questions."}
	svc := newTestService(t, m)
	conv := newTestConversation(t, domain.LevelAdvanced)

	answer, err := svc.Ask(context.Background(), conv, "Who won the match?")
	require.NoError(t, err)
	assert.Equal(t, m.reply, answer.Answer)
	assert.False(t, answer.Sectioned)
}

func TestAskSendsHistoryAndInstruction(t *testing.T) {
	m := &scriptedModel{reply: tutorReply}
	svc := newTestService(t, m)
	conv := newTestConversation(t, domain.LevelBeginner)
	ctx := context.Background()

	_, err := svc.Ask(ctx, conv, "first")
	require.NoError(t, err)
	require.NoError(t, conv.SetLevel(domain.LevelAdvanced))
	_, err = svc.Ask(ctx, conv, "second")
	require.NoError(t, err)

	prompt := m.lastPrompt()
	require.Len(t, prompt, 4)
	assert.Equal(t, SystemInstruction(domain.LevelAdvanced), prompt[0].Content)
	assert.Equal(t, "first", prompt[1].Content)
	assert.Equal(t, "🔰 Beginner: Use pandas.", prompt[2].Content, "earlier turns keep the slice stored for them")
	assert.Equal(t, "second", prompt[3].Content)

	turns := conv.Turns()
	assert.Equal(t, "🚀 Advanced: Use vectorized ops.", turns[3].Content)
}

func TestAskModelFailureLeavesSessionUntouched(t *testing.T) {
	boom := errors.New("upstream timeout")
	m := &scriptedModel{reply: tutorReply}
	svc := newTestService(t, m)
	conv := newTestConversation(t, domain.LevelBeginner)

	_, err := svc.Ask(context.Background(), conv, "ok")
	require.NoError(t, err)

	m.err = boom
	_, err = svc.Ask(context.Background(), conv, "fails")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelFailure)
	assert.ErrorIs(t, err, boom)

	assert.Len(t, conv.Turns(), 2)
	assert.Len(t, conv.Exchanges(), 1)
}

func TestAskStructuredPrompt(t *testing.T) {
	m := &scriptedModel{reply: tutorReply}
	svc := newTestService(t, m, WithStructuredPrompt(true))
	conv := newTestConversation(t, domain.LevelBeginner)

	_, err := svc.Ask(context.Background(), conv, "q")
	require.NoError(t, err)
	assert.Contains(t, m.lastPrompt()[0].Content, domain.LevelAdvanced.Marker())
}

func TestReset(t *testing.T) {
	m := &scriptedModel{reply: tutorReply}
	svc := newTestService(t, m)
	conv := newTestConversation(t, domain.LevelBeginner)

	_, err := svc.Ask(context.Background(), conv, "q")
	require.NoError(t, err)

	svc.Reset(conv)
	assert.Empty(t, conv.Turns())
	assert.Empty(t, conv.Exchanges())
	assert.Equal(t, domain.LevelBeginner, conv.Level(), "reset keeps the level")

	svc.Reset(conv)
	assert.Empty(t, conv.Turns())
}

func TestConcurrentAsksStayPaired(t *testing.T) {
	m := &scriptedModel{reply: tutorReply}
	svc := newTestService(t, m)
	conv := newTestConversation(t, domain.LevelBeginner)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Ask(context.Background(), conv, "q")
		}()
	}
	wg.Wait()

	turns := conv.Turns()
	require.Len(t, turns, 40)
	for i, turn := range turns {
		want := domain.RoleUser
		if i%2 == 1 {
			want = domain.RoleAssistant
		}
		assert.Equal(t, want, turn.Role, "turn %d", i)
	}
}

func TestNewConversationRejectsInvalidLevel(t *testing.T) {
	for _, level := range []domain.Level{"", "bogus", "Expert", "beginner"} {
		conv, err := NewConversation("u1", "s1", level)
		assert.ErrorIs(t, err, domain.ErrInvalidLevel, "level %q", level)
		assert.Nil(t, conv, "level %q", level)
	}
}

func TestConversationSetLevel(t *testing.T) {
	conv := newTestConversation(t, domain.LevelBeginner)

	err := conv.SetLevel(domain.Level("Expert"))
	assert.ErrorIs(t, err, domain.ErrInvalidLevel)
	assert.Equal(t, domain.LevelBeginner, conv.Level())

	require.NoError(t, conv.SetLevel(domain.LevelAdvanced))
	assert.Equal(t, domain.LevelAdvanced, conv.Level())
}
