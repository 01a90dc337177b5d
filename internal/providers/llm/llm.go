package llm

import "context"

type Summarizer interface {
	// Summarize condenses a meeting transcript into a short summary in the
	// transcript's language.
	Summarize(ctx context.Context, transcript, language string) (string, error)
	Close() error
}
