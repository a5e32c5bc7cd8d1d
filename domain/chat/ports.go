package chat

import "context"

// ProviderPort abstracts a hosted model API. Exactly two implementations
// exist (GPT-family and Gemini-family); dispatch happens on the ProviderID
// stored with each submission.
type ProviderPort interface {
	// ID returns the provider this adapter serves.
	ID() ProviderID

	// Complete sends the full transcript and returns the assistant reply.
	// A single attempt is made; errors come back as *ProviderError.
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// JSONCompleter is implemented by adapters that can force a strict-JSON
// reply. The analysis extractor depends on it.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, req *CompletionRequest) (*Completion, error)
}
