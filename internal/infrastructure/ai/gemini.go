package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"go.uber.org/zap"
)

// systemInstruction steers the model toward emitting importable n8n
// workflow definitions and nothing else.
const systemInstruction = `You are an n8n workflow engineer. You produce complete, importable n8n workflow JSON documents.

Rules:
- Respond with a single JSON object and nothing else. No prose, no markdown fences.
- The object must contain "name", "nodes", "connections" and "settings" keys.
- Every node needs "id", "name", "type", "typeVersion", "position" and "parameters".
- Wire nodes through the "connections" map; never leave a non-trigger node unreachable.
- Prefer official n8n nodes. Use expressions ({{ }}) for data mapping between nodes.`

// Config holds Gemini client configuration
type Config struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int32  `mapstructure:"max_tokens"`
}

// GenerationOutput is the result of a single model invocation
type GenerationOutput struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
	TokensUsed int             `json:"tokens_used"`
}

// GeminiClient generates and enhances n8n workflow definitions using the
// Google Gemini API
type GeminiClient struct {
	client    *genai.Client
	modelName string
	maxTokens int32
	logger    *zap.Logger
}

// NewGeminiClient creates a Gemini-backed workflow generator
func NewGeminiClient(ctx context.Context, cfg Config, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// GenerateWorkflow produces a new workflow definition from a natural
// language prompt
func (c *GeminiClient) GenerateWorkflow(ctx context.Context, prompt string) (*GenerationOutput, error) {
	userPrompt := fmt.Sprintf("Build an n8n workflow for the following request:\n\n%s", prompt)
	return c.invoke(ctx, userPrompt)
}

// EnhanceWorkflow revises an existing workflow definition according to the
// prompt while preserving its working parts
func (c *GeminiClient) EnhanceWorkflow(ctx context.Context, prompt string, definition json.RawMessage) (*GenerationOutput, error) {
	userPrompt := fmt.Sprintf(
		"Modify the following n8n workflow according to this request. Keep existing nodes and connections that are unrelated to the request intact.\n\nRequest:\n%s\n\nCurrent workflow JSON:\n%s",
		prompt, string(definition))
	return c.invoke(ctx, userPrompt)
}

func (c *GeminiClient) invoke(ctx context.Context, userPrompt string) (*GenerationOutput, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	model.ResponseMIMEType = "application/json"
	if c.maxTokens > 0 {
		model.SetMaxOutputTokens(c.maxTokens)
	}

	res, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		c.logger.Error("Gemini generation failed", zap.Error(err))
		return nil, fmt.Errorf("gemini: generation failed: %w", err)
	}

	tokensUsed := 0
	if res.UsageMetadata != nil {
		tokensUsed = int(res.UsageMetadata.TotalTokenCount)
	}

	text, err := responseText(res)
	if err != nil {
		return nil, err
	}

	definition, err := ExtractWorkflowJSON(text)
	if err != nil {
		c.logger.Warn("Gemini returned non-JSON output",
			zap.String("model", c.modelName),
			zap.Int("tokens_used", tokensUsed))
		return nil, err
	}

	out := &GenerationOutput{
		Definition: definition,
		TokensUsed: tokensUsed,
	}

	// Lift the workflow name out of the definition when the model set one
	var named struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(definition, &named); err == nil {
		out.Name = named.Name
	}

	c.logger.Info("Generated workflow definition",
		zap.String("model", c.modelName),
		zap.Int("tokens_used", tokensUsed),
		zap.Int("definition_bytes", len(definition)))

	return out, nil
}

// Close releases the underlying API client
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func responseText(res *genai.GenerateContentResponse) (string, error) {
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: empty response")
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini: response contains no text parts")
	}
	return sb.String(), nil
}

// ExtractWorkflowJSON pulls a JSON object out of model output, tolerating
// markdown fences and surrounding prose that models occasionally emit
// despite instructions
func ExtractWorkflowJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("gemini: no JSON object in model output")
	}
	candidate := trimmed[start : end+1]

	if !json.Valid([]byte(candidate)) {
		return nil, fmt.Errorf("gemini: model output is not valid JSON")
	}

	return json.RawMessage(candidate), nil
}
