package conversation

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. It is never modified after it is
// appended to a Session's history.
type Message struct {
	RequestID string    `json:"request_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Failed    bool      `json:"failed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// Request identifies one question awaiting its answer.
type Request struct {
	ID       string
	Question string
}
