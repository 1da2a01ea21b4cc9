package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/AniketAslaliya/crewmate-go/internal/budget"
	"github.com/AniketAslaliya/crewmate-go/internal/logging"
)

// Completer wraps a ChatModel behind the single call shape the answer
// routing needs: one system prompt, one user message, one text response.
type Completer struct {
	model model.ToolCallingChatModel
}

// NewCompleter wraps cm.
func NewCompleter(cm model.ToolCallingChatModel) *Completer {
	return &Completer{model: cm}
}

// Complete sends the prompt pair to the model and returns the response text.
func (c *Completer) Complete(ctx context.Context, system, user string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
	logging.FromContext(ctx).Debug("model call",
		"estimated_tokens", budget.EstimateMessages(msgs))

	resp, err := c.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("provider: generate failed: %w", err)
	}
	if resp == nil || resp.Content == "" {
		return "", fmt.Errorf("provider: model returned an empty response")
	}
	return resp.Content, nil
}
