package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/llmrelay/relay/internal/dispatch"
)

// minAPIKeyLength is the shortest credential accepted. Real provider keys are
// well over this; it exists to catch placeholder values like "changeme".
const minAPIKeyLength = 20

// ValidateCredential reports whether the credential referenced by the spec is
// present and plausible. Implements the ValidateCredential collaborator
// contract used during candidate filtering.
func ValidateCredential(spec dispatch.ProviderSpec) bool {
	key := os.Getenv(spec.APIKeyEnv)
	if len(key) < minAPIKeyLength {
		log.Debug().
			Str("provider", spec.ProviderID).
			Str("env", spec.APIKeyEnv).
			Msg("Credential missing or too short")
		return false
	}
	return true
}

// ValidateAll checks every spec's credential in parallel and aggregates
// failures. Intended for startup, where a fully unconfigured catalog should
// fail fast rather than surface later as filtered-out candidates.
func ValidateAll(ctx context.Context, specs []dispatch.ProviderSpec) error {
	g, _ := errgroup.WithContext(ctx)

	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			if !ValidateCredential(spec) {
				return fmt.Errorf("provider %s: credential %s missing or invalid", spec.ProviderID, spec.APIKeyEnv)
			}
			return nil
		})
	}
	return g.Wait()
}
