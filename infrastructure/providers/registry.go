// Package providers assembles the configured provider adapters and the
// cross-cutting wrappers (circuit breaker, instrumentation) around them.
package providers

import (
	"github.com/sirupsen/logrus"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/chat"
	"github.com/tolik-unicornrider/llm-bias-detector/infrastructure/gemini"
	"github.com/tolik-unicornrider/llm-bias-detector/infrastructure/openai"
)

// Settings carries everything needed to build the adapter registry. API keys
// are read once at startup and injected here; adapters never touch the
// environment themselves.
type Settings struct {
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	GeminiKey     string
	GeminiBaseURL string
	GeminiModel   string

	EnableBreaker   bool
	EnableTelemetry bool
}

// BuildRegistry constructs both adapters and wraps them per Settings. An
// adapter with no API key is still registered: it fails each call immediately
// with a missing-credential error, which the UI shows inline. The wrapping
// order is instrumentation outside the breaker, so fast-failed calls are
// still traced.
func BuildRegistry(s Settings) map[chat.ProviderID]chat.ProviderPort {
	registry := make(map[chat.ProviderID]chat.ProviderPort, 2)

	var gptOpts []openai.Option
	if s.OpenAIBaseURL != "" {
		gptOpts = append(gptOpts, openai.WithBaseURL(s.OpenAIBaseURL))
	}
	if s.OpenAIModel != "" {
		gptOpts = append(gptOpts, openai.WithModel(s.OpenAIModel))
	}
	registry[chat.ProviderGPT] = wrap(openai.NewProvider(s.OpenAIKey, gptOpts...), s)

	var gemOpts []gemini.Option
	if s.GeminiBaseURL != "" {
		gemOpts = append(gemOpts, gemini.WithBaseURL(s.GeminiBaseURL))
	}
	if s.GeminiModel != "" {
		gemOpts = append(gemOpts, gemini.WithModel(s.GeminiModel))
	}
	registry[chat.ProviderGemini] = wrap(gemini.NewProvider(s.GeminiKey, gemOpts...), s)

	if s.OpenAIKey == "" {
		logrus.Warn("OPENAI_API_KEY not set; GPT submissions will fail with a credential error")
	}
	if s.GeminiKey == "" {
		logrus.Warn("GEMINI_API_KEY not set; Gemini submissions will fail with a credential error")
	}

	return registry
}

func wrap(adapter chat.ProviderPort, s Settings) chat.ProviderPort {
	wrapped := adapter
	if s.EnableBreaker {
		wrapped = NewBreakerProvider(wrapped)
	}
	if s.EnableTelemetry {
		wrapped = NewInstrumentedProvider(wrapped)
	}
	return wrapped
}

// JSONCompleterFor picks the adapter backing the analysis extractor: the GPT
// adapter when it has a key, otherwise Gemini, otherwise nil.
func JSONCompleterFor(registry map[chat.ProviderID]chat.ProviderPort, s Settings) chat.JSONCompleter {
	order := []chat.ProviderID{chat.ProviderGPT, chat.ProviderGemini}
	keys := map[chat.ProviderID]string{
		chat.ProviderGPT:    s.OpenAIKey,
		chat.ProviderGemini: s.GeminiKey,
	}
	for _, id := range order {
		if keys[id] == "" {
			continue
		}
		if jc, ok := registry[id].(chat.JSONCompleter); ok {
			return jc
		}
	}
	return nil
}
