package generate

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/compliance-sentinel/sentinel/pipeline"
	"github.com/compliance-sentinel/sentinel/pkg/formatting"
)

type classifyResponse struct {
	DocumentType string  `json:"document_type"`
	Confidence   float64 `json:"confidence"`
}

type rewriteResponse struct {
	Replacement   string   `json:"replacement"`
	Explanation   []string `json:"explanation"`
	Citations     []string `json:"citations"`
	RedactionFlag bool     `json:"redaction_flag"`
}

// Agent is a Generator backed by a chat inference agent. Each call creates
// a fresh agent from the shared config, so Agent itself is stateless and
// safe for concurrent documents.
type Agent struct {
	config gaconfig.AgentConfig
}

// NewAgent creates an agent-backed generator from the given config.
func NewAgent(cfg gaconfig.AgentConfig) *Agent {
	return &Agent{config: cfg}
}

func (g *Agent) Classify(ctx context.Context, text string) (pipeline.Classification, error) {
	a, err := agent.New(&g.config)
	if err != nil {
		return pipeline.Classification{}, fmt.Errorf("create agent: %w", err)
	}

	resp, err := a.Chat(ctx, fmt.Sprintf(classifyPrompt, text))
	if err != nil {
		return pipeline.Classification{}, fmt.Errorf("chat call: %w", err)
	}

	parsed, err := formatting.Parse[classifyResponse](resp.Content())
	if err != nil {
		return pipeline.Classification{}, fmt.Errorf("parse response: %w", err)
	}

	return pipeline.Classification{
		Label:      parsed.DocumentType,
		Confidence: parsed.Confidence,
	}, nil
}

func (g *Agent) GenerateRewrite(ctx context.Context, req pipeline.RewriteRequest) (pipeline.RewriteResult, error) {
	a, err := agent.New(&g.config)
	if err != nil {
		return pipeline.RewriteResult{}, fmt.Errorf("create agent: %w", err)
	}

	prompt := fmt.Sprintf(rewritePrompt, req.StyleHint, req.PolicySnippet, req.TemplateSnippet, req.RedactedSpan)

	resp, err := a.Chat(ctx, prompt)
	if err != nil {
		return pipeline.RewriteResult{}, fmt.Errorf("chat call: %w", err)
	}

	parsed, err := formatting.Parse[rewriteResponse](resp.Content())
	if err != nil {
		return pipeline.RewriteResult{}, fmt.Errorf("parse response: %w", err)
	}

	return pipeline.RewriteResult{
		Replacement: parsed.Replacement,
		Explanation: parsed.Explanation,
		Citations:   parsed.Citations,
		Redaction:   parsed.RedactionFlag,
	}, nil
}
