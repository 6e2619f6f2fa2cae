package aisvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/course"
)

const criteriaCount = 4

var (
	ErrUnavailable = errors.New("rubric generation is not configured")
	ErrBadRubric   = errors.New("rubric generator returned an invalid rubric")
)

// GeneratorFunc adapts a plain function to course.RubricGenerator.
type GeneratorFunc func(ctx context.Context, title, description string, maxPoints int) ([]course.RubricItem, error)

func (f GeneratorFunc) GenerateRubric(ctx context.Context, title, description string, maxPoints int) ([]course.RubricItem, error) {
	return f(ctx, title, description, maxPoints)
}

// Unavailable always fails, so callers fall back to the default rubric.
var Unavailable course.RubricGenerator = GeneratorFunc(func(context.Context, string, string, int) ([]course.RubricItem, error) {
	return nil, ErrUnavailable
})

type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger core.Logger
}

var _ course.RubricGenerator = (*OpenAIGenerator)(nil)

// NewGenerator returns the OpenAI generator, or Unavailable when no API key is configured.
func NewGenerator(conf *core.Config, logger core.Logger) course.RubricGenerator {
	if conf.AI.OpenAIKey == "" {
		logger.Info("OpenAI key not set, rubric generation disabled")
		return Unavailable
	}
	return NewOpenAIGenerator(openai.DefaultConfig(conf.AI.OpenAIKey), conf.AI.OpenAIModel, logger)
}

func NewOpenAIGenerator(clientConf openai.ClientConfig, model string, logger core.Logger) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientConf),
		model:  model,
		logger: logger,
	}
}

func rubricPrompt(title, description string, maxPoints int) string {
	return fmt.Sprintf(`Create a grading rubric for the assignment below.
Title: %s
Description: %s

Return exactly %d criteria whose points add up to %d, as a JSON array of objects with the keys
"criteria", "description" and "points". Return the JSON array only.`,
		title, description, criteriaCount, maxPoints)
}

func (g *OpenAIGenerator) GenerateRubric(ctx context.Context, title, description string, maxPoints int) ([]course.RubricItem, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are an experienced teacher who writes clear, fair rubrics."},
			{Role: openai.ChatMessageRoleUser, Content: rubricPrompt(title, description, maxPoints)},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, errors.Wrap(err, "calling openai")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(ErrBadRubric, "no choices")
	}
	g.logger.Debug("rubric generated", map[string]interface{}{"model": g.model, "finish_reason": resp.Choices[0].FinishReason})
	return ParseRubric(resp.Choices[0].Message.Content, maxPoints)
}

// ParseRubric decodes the model output. Markdown code fences are tolerated; the items
// must be non-empty, have positive points and add up to maxPoints.
func ParseRubric(content string, maxPoints int) ([]course.RubricItem, error) {
	content = stripFences(content)

	var items []course.RubricItem
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil, errors.Wrap(ErrBadRubric, err.Error())
	}
	if len(items) == 0 {
		return nil, errors.Wrap(ErrBadRubric, "empty rubric")
	}
	for i, it := range items {
		items[i].Criteria = core.CleanString(it.Criteria)
		items[i].Description = core.CleanString(it.Description)
		if items[i].Criteria == "" || it.Points <= 0 {
			return nil, errors.Wrap(ErrBadRubric, fmt.Sprintf("item %d", i))
		}
	}
	if total := course.RubricTotal(items); total != maxPoints {
		return nil, errors.Wrap(ErrBadRubric, fmt.Sprintf("total %d, want %d", total, maxPoints))
	}
	return items, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
