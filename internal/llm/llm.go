package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/board/internal/models"
)

// Suggestion is the model's priority pick for a new issue.
type Suggestion struct {
	Priority models.IssuePriority
	Reason   string
}

// Client wraps the Anthropic API for issue triage.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
// Extra options are passed to the SDK (base URL, retries).
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	all := []option.RequestOption{}
	if apiKey != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	all = append(all, opts...)
	client := anthropic.NewClient(all...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPriorityPrompt constructs the system and user prompts for priority triage.
func buildPriorityPrompt(title, description string, open []string) (system string, user string) {
	system = `You triage issues on a small team's kanban board. Given a new issue's title and description, return a JSON object with exactly two fields:

- "priority": one of "Low", "Medium", "High"
- "reason": one short sentence explaining the choice

Rules:
- High is for outages, data loss, security problems and anything blocking users
- Medium is for bugs with a workaround and features users asked for
- Low is for polish, chores and ideas
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Title: ")
	sb.WriteString(title)
	sb.WriteString("\nDescription: ")
	sb.WriteString(description)
	sb.WriteString("\n")
	if len(open) > 0 {
		sb.WriteString("\nOther open issues on the board:\n")
		for _, t := range open {
			sb.WriteString("- ")
			sb.WriteString(t)
			sb.WriteString("\n")
		}
	}
	user = sb.String()
	return
}

// stripFence removes a surrounding markdown code fence, if present.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// parseSuggestion decodes the model's JSON reply.
func parseSuggestion(text string) (*Suggestion, error) {
	text = stripFence(text)

	var raw struct {
		Priority string `json:"priority"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	p, err := models.ParseIssuePriority(raw.Priority)
	if err != nil {
		return nil, fmt.Errorf("LLM suggested %w", err)
	}
	return &Suggestion{Priority: p, Reason: raw.Reason}, nil
}

// SuggestPriority asks the model how urgent a new issue is. open lists the
// titles of issues already on the board, for context.
func (c *Client) SuggestPriority(ctx context.Context, title, description string, open []string) (*Suggestion, error) {
	systemPrompt, userPrompt := buildPriorityPrompt(title, description, open)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseSuggestion(text)
}
