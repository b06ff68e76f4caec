package agent

import (
	"context"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/model"
)

const (
	defaultChatInstruction = "You are a helpful AI assistant."
	defaultUserSource      = "User"
)

// ChatCompletionAgentOptions configures a ChatCompletionAgent.
//
// Use functional options with NewChatCompletionAgent to override defaults.
type ChatCompletionAgentOptions struct {
	// Description is reported by Description(). Defaults to "A chat completion agent".
	Description string

	// Instruction becomes the system message of every model call.
	Instruction Instruction

	// Source labels replies. Defaults to the agent's own identity.
	Source string

	// MaxHistoryMessages bounds the number of earlier messages replayed to the
	// model. History is trimmed by whole user/assistant turns, so an odd bound
	// keeps one message fewer. Zero disables history.
	MaxHistoryMessages int
}

// ChatCompletionAgent answers TextMessages with a model completion.
//
// Each request is forwarded to the model client through MessageContext.Call,
// so the model round-trip runs off the scheduler and other agents keep
// receiving messages while the handler is suspended.
type ChatCompletionAgent struct {
	*TypeRoutedAgent
	client             model.ChatCompletionClient
	instruction        Instruction
	source             string
	maxHistoryMessages int
	history            []model.Message
}

// NewChatCompletionAgent creates a chat agent backed by client.
func NewChatCompletionAgent(client model.ChatCompletionClient, optFns ...func(o *ChatCompletionAgentOptions)) (*ChatCompletionAgent, error) {
	opts := ChatCompletionAgentOptions{
		Description: "A chat completion agent",
		Instruction: NewInstructionFromText(defaultChatInstruction),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ChatCompletionAgent{
		client:             client,
		instruction:        opts.Instruction,
		source:             opts.Source,
		maxHistoryMessages: opts.MaxHistoryMessages,
	}

	routed, err := NewTypeRoutedAgent(opts.Description, Handle(a.handleText))
	if err != nil {
		return nil, err
	}

	a.TypeRoutedAgent = routed

	return a, nil
}

// Factory adapts NewChatCompletionAgent to a core.AgentFactory.
func Factory(client model.ChatCompletionClient, optFns ...func(o *ChatCompletionAgentOptions)) core.AgentFactory {
	return func() (core.Agent, error) {
		return NewChatCompletionAgent(client, optFns...)
	}
}

func (a *ChatCompletionAgent) handleText(mc core.MessageContext, msg TextMessage) (TextMessage, error) {
	if mc.Token().IsCancelled() {
		return TextMessage{}, core.ErrCancelled
	}

	instruction, err := a.instruction.Resolve(mc)
	if err != nil {
		return TextMessage{}, err
	}

	source := msg.Source
	if source == "" {
		source = defaultUserSource
	}

	user := model.UserMessage(msg.Content, source)

	messages := make([]model.Message, 0, len(a.history)+2)
	if instruction != "" {
		messages = append(messages, model.SystemMessage(instruction))
	}
	messages = append(messages, a.history...)
	messages = append(messages, user)

	mc.Logger().Debug("Requesting completion", "messages", len(messages), "model", a.client.Info().Name)

	pr := mc.Call(func(ctx context.Context) (any, error) {
		return a.client.Create(ctx, messages)
	})

	result, err := AwaitAs[*model.Result](mc, pr)
	if err != nil {
		return TextMessage{}, err
	}

	if mc.Token().IsCancelled() {
		return TextMessage{}, core.ErrCancelled
	}

	replySource := a.source
	if replySource == "" {
		replySource = mc.Recipient().String()
	}

	a.remember(user, model.AssistantMessage(result.Content, replySource))

	return TextMessage{Content: result.Content, Source: replySource}, nil
}

func (a *ChatCompletionAgent) remember(turn ...model.Message) {
	if a.maxHistoryMessages <= 0 {
		return
	}

	a.history = append(a.history, turn...)
	if over := len(a.history) - a.maxHistoryMessages; over > 0 {
		// never start the replay with an assistant reply
		over += over % len(turn)
		a.history = append([]model.Message(nil), a.history[over:]...)
	}
}

// History returns a copy of the turns replayed to the model.
func (a *ChatCompletionAgent) History() []model.Message {
	return append([]model.Message(nil), a.history...)
}
