package topics

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Encoder bildet Texte auf dichte Vektoren ab. Die Engine behandelt die
// Implementierung als Blackbox (embed: text → vector).
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float64, error)
}

// GeminiEncoder berechnet Embeddings über die Google Generative-AI-API
// (Standardmodell text-embedding-004).
type GeminiEncoder struct {
	APIKey string
	Model  string
	Logger *zap.Logger
}

// NewGeminiEncoder erstellt einen neuen Gemini-basierten Encoder.
func NewGeminiEncoder(apiKey, model string, logger *zap.Logger) *GeminiEncoder {
	return &GeminiEncoder{APIKey: apiKey, Model: model, Logger: logger}
}

// Encode berechnet ein Embedding pro Text.
func (g *GeminiEncoder) Encode(ctx context.Context, texts []string) ([][]float64, error) {
	if g.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY ist nicht konfiguriert")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.APIKey))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	em := client.EmbeddingModel(g.Model)
	vectors := make([][]float64, 0, len(texts))
	for i, text := range texts {
		resp, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, fmt.Errorf("embedding für dokument %d fehlgeschlagen: %w", i, err)
		}
		if resp.Embedding == nil {
			return nil, fmt.Errorf("kein embedding für dokument %d erhalten", i)
		}
		vec := make([]float64, len(resp.Embedding.Values))
		for j, v := range resp.Embedding.Values {
			vec[j] = float64(v)
		}
		vectors = append(vectors, vec)
	}

	g.Logger.Debug("Embeddings berechnet", zap.Int("count", len(vectors)))
	return vectors, nil
}
