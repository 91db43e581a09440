// Package provider abstracts text-to-speech providers behind a common
// interface with a static registry. Unknown provider names fail closed.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/auralane/render-service/internal/audio"
	"github.com/auralane/render-service/internal/model"
)

var (
	// ErrProvider wraps remote failures: transport errors, non-2xx
	// responses and undecodable payloads.
	ErrProvider = errors.New("voice provider error")

	// ErrUnsupportedProvider is returned for provider names with no
	// registered implementation.
	ErrUnsupportedProvider = errors.New("unsupported voice provider")
)

// Synthesizer converts a script into a PCM audio asset using one voice.
// Implementations must return audio that downstream stages can treat as
// stereo-PCM-compatible input (any sample rate, 1 or 2 channels).
type Synthesizer interface {
	Synthesize(ctx context.Context, script string, voice model.VoiceSelection) (*audio.Asset, error)
}

// Registry maps provider names to implementations.
type Registry struct {
	providers map[string]Synthesizer
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Synthesizer)}
}

// Register binds a provider name. Later registrations replace earlier ones.
func (r *Registry) Register(name string, s Synthesizer) {
	r.providers[name] = s
}

// Get resolves a provider by name, failing closed on unknown names.
func (r *Registry) Get(name string) (Synthesizer, error) {
	s, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
	return s, nil
}

// Names lists registered providers, sorted, for the health endpoint.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
