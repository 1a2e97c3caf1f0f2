package llm

import (
	"errors"
	"fmt"
)

// ErrNotReady means the provider is unconfigured, as opposed to a network or
// provider-side failure.
var ErrNotReady = errors.New("provider is not initialized")

type ErrUnsupportedProvider struct {
	Provider string
}

func (e ErrUnsupportedProvider) Error() string {
	return fmt.Sprintf("unsupported LLM provider: %s", e.Provider)
}
