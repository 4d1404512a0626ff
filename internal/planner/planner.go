package planner

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/opencanvas/canvasd/internal/canvas"
)

const systemPrompt = `You are a software project planner. Given a project
description, respond with a JSON object shaped as
{"files": [{"file_name": string, "description": string}],
 "edges": [{"from": string, "to": string, "type": string}]}.
File names are workspace-relative paths. Edge endpoints reference file
names. Respond with JSON only, no prose.`

const defaultModel = "gpt-4o-mini"

// Planner asks a chat model for a workspace plan. The raw response is
// tolerated, not trusted: the caller sanitizes whatever comes back.
type Planner struct {
	client *openai.Client
	model  string
	log    *zap.Logger
}

func New(apiKey, model string, log *zap.Logger) (*Planner, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("planner: api key is empty")
	}
	if model == "" {
		model = defaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{client: openai.NewClient(apiKey), model: model, log: log}, nil
}

// Plan produces a raw plan for the project spec. An unparseable response is
// an error; the caller falls back to the deterministic scaffold.
func (p *Planner) Plan(ctx context.Context, spec canvas.ProjectSpec) (canvas.RawPlan, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(spec)},
		},
	}
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return canvas.RawPlan{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return canvas.RawPlan{}, fmt.Errorf("chat completion returned no choices")
	}
	payload := ExtractPayload(resp.Choices[0].Message.Content)
	plan, err := canvas.ParseRawPlan([]byte(payload))
	if err != nil {
		p.log.Warn("plan response not parseable", zap.Error(err))
		return canvas.RawPlan{}, err
	}
	p.log.Info("plan produced",
		zap.Int("files", len(plan.Files)), zap.Int("edges", len(plan.Edges)))
	return plan, nil
}

// BuildPrompt renders the user message for a project spec.
func BuildPrompt(spec canvas.ProjectSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", spec.Title)
	if spec.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", spec.Description)
	}
	if len(spec.TechStack) > 0 {
		fmt.Fprintf(&b, "Tech stack: %s\n", strings.Join(spec.TechStack, ", "))
	}
	if len(spec.Features) > 0 {
		b.WriteString("Features:\n")
		for _, f := range spec.Features {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	b.WriteString("Plan the project files and their relationships.")
	return b.String()
}

// ExtractPayload strips markdown code fences and surrounding prose from a
// model response, returning the JSON body.
func ExtractPayload(response string) string {
	response = strings.TrimSpace(response)
	if idx := strings.Index(response, "```"); idx >= 0 {
		rest := response[idx+3:]
		// A language tag like "json" may follow the opening fence.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			firstLine := strings.TrimSpace(rest[:nl])
			if firstLine == "json" || firstLine == "" {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	// No fences: trim to the outermost JSON braces or brackets.
	start := strings.IndexAny(response, "{[")
	if start < 0 {
		return response
	}
	end := strings.LastIndexAny(response, "}]")
	if end < start {
		return response
	}
	return response[start : end+1]
}
