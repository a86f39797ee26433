package domain

// Role identifies the speaker of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Sessions only hold user and
// assistant turns; system turns appear in prompts sent to a model.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewTurn creates a Turn with the given role and content.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content}
}

// Exchange pairs a learner query with the answer shown for it.
type Exchange struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}
