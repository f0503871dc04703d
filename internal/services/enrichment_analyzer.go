package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	apperrors "paper_shelf_go_backend/internal/errors"
	"paper_shelf_go_backend/internal/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// TopicVocabulary is the closed set of labels the model may assign.
var TopicVocabulary = []string{
	"Distributed Machine Learning",
	"Model Performance Optimization",
	"Personalized Advertising",
	"Recommendation System",
	"Generative Recommendation",
	"Reinforcement Learning",
	"Agent",
	"Large Language Models",
	"Model Architecture",
}

const maxTopics = 3

var enrichmentPrompt = `You are reading an academic paper provided as a PDF.
Return a single JSON object and nothing else, with exactly these keys:
  "summary": a concise summary of the paper's problem, method and results in 3-5 sentences,
  "institution": the primary institution or company of the authors (empty string if unknown),
  "topics": an array of exactly 3 labels chosen only from this list:
    - ` + strings.Join(TopicVocabulary, "\n    - ") + `
Do not invent labels outside the list.`

// GeminiGenerator sends a prompt plus a PDF to Gemini. The underlying client
// is created on first use and reused for the life of the process.
type GeminiGenerator struct {
	apiKey    string
	modelName string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiGenerator(apiKey, modelName string) *GeminiGenerator {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiGenerator{apiKey: strings.TrimSpace(apiKey), modelName: modelName}
}

func (g *GeminiGenerator) init(ctx context.Context) error {
	g.once.Do(func() {
		if g.apiKey == "" {
			g.initErr = fmt.Errorf("GOOGLE_AI_STUDIO_API_KEY is not set: %w", apperrors.ErrConfiguration)
			return
		}
		// The client must outlive the request that happened to create it.
		client, err := genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(g.apiKey))
		if err != nil {
			g.initErr = fmt.Errorf("failed to create GenAI client: %w", err)
			return
		}
		g.client = client
	})
	return g.initErr
}

func (g *GeminiGenerator) GenerateFromPDF(ctx context.Context, prompt string, pdf []byte) (string, error) {
	if err := g.init(ctx); err != nil {
		return "", err
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.2)

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: "application/pdf", Data: pdf},
		genai.Text(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	var out strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
		break
	}
	return out.String(), nil
}

// Close releases the client if one was created.
func (g *GeminiGenerator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// EnrichmentAnalyzer turns PDF bytes into a summary, institution and topics.
// It has no persistence side effects.
type EnrichmentAnalyzer struct {
	generator ContentGenerator
	logger    zerolog.Logger
}

func NewEnrichmentAnalyzer(generator ContentGenerator, logger zerolog.Logger) *EnrichmentAnalyzer {
	return &EnrichmentAnalyzer{
		generator: generator,
		logger:    logger.With().Str("component", "enrichment_analyzer").Logger(),
	}
}

func (a *EnrichmentAnalyzer) Analyze(ctx context.Context, pdf []byte) (*models.Enrichment, error) {
	if a.generator == nil {
		return nil, fmt.Errorf("no generative model configured: %w", apperrors.ErrConfiguration)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("empty pdf: %w", apperrors.ErrInvalidInput)
	}

	raw, err := a.generator.GenerateFromPDF(ctx, enrichmentPrompt, pdf)
	if err != nil {
		return nil, err
	}

	enrichment, err := ParseEnrichment(raw)
	if err != nil {
		a.logger.Warn().Err(err).Int("raw_length", len(raw)).Msg("Model output was not JSON, keeping raw text as summary")
	}
	return enrichment, nil
}

// ParseEnrichment decodes the model's reply. When the reply is not a JSON
// object the raw text becomes the summary and ErrModelOutputMalformed is
// returned next to the usable result.
func ParseEnrichment(raw string) (*models.Enrichment, error) {
	text := stripCodeFences(raw)

	var parsed struct {
		Summary     string   `json:"summary"`
		Institution string   `json:"institution"`
		Topics      []string `json:"topics"`
	}
	err := json.Unmarshal([]byte(text), &parsed)
	if err == nil && !strings.HasPrefix(text, "{") {
		err = fmt.Errorf("expected a JSON object, got %.20q", text)
	}
	if err != nil {
		return &models.Enrichment{
			Summary:     raw,
			Institution: "",
			Topics:      []string{},
		}, fmt.Errorf("%w: %v", apperrors.ErrModelOutputMalformed, err)
	}

	return &models.Enrichment{
		Summary:     strings.TrimSpace(parsed.Summary),
		Institution: strings.TrimSpace(parsed.Institution),
		Topics:      canonicalTopics(parsed.Topics),
	}, nil
}

// stripCodeFences removes an opening ``` line and a closing ``` marker. Either
// may be missing.
func stripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimLeft(strings.TrimPrefix(text, "```"), "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// canonicalTopics maps labels onto the vocabulary's spelling, dropping
// unknown and repeated ones and keeping at most three.
func canonicalTopics(topics []string) []string {
	out := make([]string, 0, maxTopics)
	seen := make(map[string]bool)
	for _, topic := range topics {
		for _, known := range TopicVocabulary {
			if strings.EqualFold(strings.TrimSpace(topic), known) && !seen[known] {
				seen[known] = true
				out = append(out, known)
			}
		}
		if len(out) == maxTopics {
			break
		}
	}
	return out
}
