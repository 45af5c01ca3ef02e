package models

// ChatMessage is one turn in an assistant conversation
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// AssistantChatRequest is a chat request over agency data
type AssistantChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,dive"`
}

// AssistantChatResponse is the assistant's reply
type AssistantChatResponse struct {
	Message    string `json:"message"`
	TokensUsed int    `json:"tokens_used"`
	ToolCalls  int    `json:"tool_calls"`
}
