package agent

// TextMessage is a plain text message exchanged between users and agents.
type TextMessage struct {
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}
