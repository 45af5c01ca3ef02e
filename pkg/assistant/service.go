package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/pkg/hierarchy"
	"github.com/nvalencia/agentbook/pkg/logger"
	"github.com/nvalencia/agentbook/pkg/metrics"
	apimodels "github.com/nvalencia/agentbook/pkg/models"
)

// maxToolRounds caps how many tool-execution round trips one chat request
// may make before the model must answer with what it has.
const maxToolRounds = 4

// ErrNotConfigured is returned when no OpenAI API key was provided
var ErrNotConfigured = errors.New("assistant is not configured")

const systemPrompt = `You are an assistant for a life insurance agency back office.
You answer questions about the agency's deals, agents, commissions and book of business.
Use the provided tools to look up data; never invent policy numbers, premiums or names.
Amounts are US dollars. Keep answers short and concrete.`

// Service answers natural-language questions about one agency's data by
// letting the model call a small set of read-only query tools
type Service struct {
	client    *openai.Client
	model     string
	db        *gorm.DB
	hierarchy *hierarchy.Service
	log       logger.Logger
	metrics   *metrics.Metrics
}

// NewService creates an assistant service. A nil client (no API key) is
// allowed; Chat then fails with ErrNotConfigured.
func NewService(apiKey, model string, db *gorm.DB, hierarchySvc *hierarchy.Service, log logger.Logger, m *metrics.Metrics) *Service {
	var client *openai.Client
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Service{
		client:    client,
		model:     model,
		db:        db,
		hierarchy: hierarchySvc,
		log:       log,
		metrics:   m,
	}
}

// Chat runs the tool loop: send the conversation with tool definitions,
// execute whatever tools the model requests, feed the results back, and
// repeat until the model answers in text or the round cap is hit.
func (s *Service) Chat(ctx context.Context, agencyID uint, req apimodels.AssistantChatRequest) (*apimodels.AssistantChatResponse, error) {
	if s.client == nil {
		return nil, ErrNotConfigured
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	tools := toolDefinitions()
	tokensUsed := 0
	toolCalls := 0

	for round := 0; ; round++ {
		chatReq := openai.ChatCompletionRequest{
			Model:    s.model,
			Messages: messages,
		}
		// After the last round the model must answer from what it has.
		if round < maxToolRounds {
			chatReq.Tools = tools
		}

		resp, err := s.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return nil, fmt.Errorf("assistant chat failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("assistant returned no choices")
		}

		tokensUsed += resp.Usage.TotalTokens
		choice := resp.Choices[0].Message

		if len(choice.ToolCalls) == 0 {
			s.log.Info("assistant chat completed",
				"agency_id", agencyID, "rounds", round, "tool_calls", toolCalls, "tokens", tokensUsed)
			return &apimodels.AssistantChatResponse{
				Message:    choice.Content,
				TokensUsed: tokensUsed,
				ToolCalls:  toolCalls,
			}, nil
		}

		messages = append(messages, choice)
		for _, call := range choice.ToolCalls {
			toolCalls++
			result := s.executeTool(ctx, agencyID, call.Function.Name, call.Function.Arguments)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}
}
