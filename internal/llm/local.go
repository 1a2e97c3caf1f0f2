package llm

import "context"

// LocalProvider is the no-network stand-in used in development.
type LocalProvider struct{}

func (LocalProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	return "local provider response", nil
}

func (LocalProvider) GenerateWithTools(ctx context.Context, messages []Message, tools []ToolSpec) (*Completion, error) {
	return &Completion{Content: "local provider response", Model: "local"}, nil
}
