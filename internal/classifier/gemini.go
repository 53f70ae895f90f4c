package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"consultation_backend/platform/config"
	"consultation_backend/platform/logger"

	"google.golang.org/genai"
)

const defaultClassifyTimeout = 5 * time.Second

// GenerateFunc sends a prompt to a language model and returns its text reply.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// LLMClassifier asks a language model for the category and falls back to
// another classifier when the call fails or the reply is not a category.
type LLMClassifier struct {
	generate GenerateFunc
	fallback Classifier
	timeout  time.Duration
	log      *logger.Logger
}

// NewLLMClassifier wires a model call with a fallback classifier.
func NewLLMClassifier(generate GenerateFunc, fallback Classifier, log *logger.Logger) *LLMClassifier {
	if fallback == nil {
		fallback = NewKeywordClassifier()
	}
	return &LLMClassifier{
		generate: generate,
		fallback: fallback,
		timeout:  defaultClassifyTimeout,
		log:      log,
	}
}

// NewGemini builds an LLMClassifier backed by the Gemini API.
func NewGemini(ctx context.Context, cfg config.ClassifierConfig, log *logger.Logger) (*LLMClassifier, error) {
	if strings.TrimSpace(cfg.GetGeminiAPIKey()) == "" {
		return nil, errors.New("gemini api key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := cfg.GetClassifierModel()
	temperature := float32(0)
	genCfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 16,
	}

	generate := func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), genCfg)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return NewLLMClassifier(generate, NewKeywordClassifier(), log), nil
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, title, description string) string {
	if c == nil || c.generate == nil {
		return CategoryOther
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.generate(callCtx, buildPrompt(title, description))
	if err == nil {
		if category, ok := Parse(strings.Trim(strings.TrimSpace(reply), `."'`)); ok {
			return category
		}
		err = fmt.Errorf("model replied with unknown category %q", reply)
	}

	if c.log != nil {
		c.log.DependencyFailure("classifier", "classify", err)
	}
	return c.fallback.Classify(ctx, title, description)
}

func buildPrompt(title, description string) string {
	var b strings.Builder
	b.WriteString("Classify the consultation request into exactly one of these categories: ")
	b.WriteString(strings.Join(categories, ", "))
	b.WriteString(".\nReply with the category name only.\n\nTitle: ")
	b.WriteString(title)
	b.WriteString("\nDescription: ")
	b.WriteString(description)
	return b.String()
}
