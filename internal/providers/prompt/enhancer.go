// Package prompt improves user prompts before submission. Enhancement is
// always best-effort: a failing enhancer never blocks a generation.
package prompt

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vidforge/internal/infra"
	"vidforge/internal/providers/video"
)

// Enhancer rewrites a prompt into a richer one.
type Enhancer interface {
	Enhance(ctx context.Context, text string) (string, error)
}

// Static is the local fallback enhancer. It is deterministic: it tidies
// whitespace, capitalizes the opening words and appends cinematic
// descriptors the generation model responds well to.
type Static struct{}

func NewStatic() *Static {
	return &Static{}
}

var staticDescriptors = []string{"cinematic lighting", "high detail", "smooth motion"}

func (s *Static) Enhance(ctx context.Context, text string) (string, error) {
	cleaned := strings.Join(strings.Fields(text), " ")
	if cleaned == "" {
		return text, nil
	}

	c := cases.Title(language.Und)
	words := strings.SplitN(cleaned, " ", 2)
	words[0] = c.String(words[0])
	cleaned = strings.Join(words, " ")

	lower := strings.ToLower(cleaned)
	var missing []string
	for _, d := range staticDescriptors {
		if !strings.Contains(lower, d) {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return cleaned, nil
	}
	return cleaned + ", " + strings.Join(missing, ", "), nil
}

// Remote delegates to the generation service and falls back to another
// enhancer when the service declines or returns the text unchanged.
type Remote struct {
	client   video.Generator
	fallback Enhancer
	logger   infra.Logger
}

func NewRemote(client video.Generator, fallback Enhancer, logger infra.Logger) *Remote {
	return &Remote{client: client, fallback: fallback, logger: logger}
}

func (r *Remote) Enhance(ctx context.Context, text string) (string, error) {
	improved := r.client.EnhancePrompt(ctx, text)
	if improved != text {
		return improved, nil
	}
	if r.fallback == nil {
		return text, nil
	}
	r.logger.Debug().Msg("prompt: remote enhancer declined, using static fallback")
	return r.fallback.Enhance(ctx, text)
}

var (
	_ Enhancer = (*Static)(nil)
	_ Enhancer = (*Remote)(nil)
)
