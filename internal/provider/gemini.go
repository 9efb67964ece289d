package provider

import (
	"go.uber.org/zap"

	"github.com/dotcontext/dcx/internal/config"
)

// Gemini is reached through Google's OpenAI compatibility layer, so the
// variant reuses the OpenAI transport with a different base URL.
const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

const defaultGeminiModel = "gemini-2.0-flash"

func newGeminiProvider(model *config.ModelConfig, logger *zap.Logger) *openAIProvider {
	return newOpenAICompatProvider("gemini", model, geminiBaseURL, defaultGeminiModel, logger)
}
