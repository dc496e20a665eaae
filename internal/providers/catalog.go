// Package providers loads the provider catalog and supplies the default
// collaborator implementations for credential validation and the outbound
// provider call.
package providers

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/llmrelay/relay/internal/dispatch"
)

// catalogEntry is the YAML shape of one provider spec
type catalogEntry struct {
	ProviderID  string  `yaml:"provider_id"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
}

// catalogFile is the YAML shape of the catalog document
type catalogFile struct {
	Providers []catalogEntry `yaml:"providers"`
}

// LoadCatalog reads the prioritized provider list from a YAML file. The file
// order is the caller-supplied priority order for dispatch.
func LoadCatalog(path string) ([]dispatch.ProviderSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse provider catalog: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("provider catalog %s defines no providers", path)
	}

	specs := make([]dispatch.ProviderSpec, 0, len(file.Providers))
	for i, entry := range file.Providers {
		if entry.ProviderID == "" {
			return nil, fmt.Errorf("provider catalog entry %d: provider_id is required", i)
		}
		if entry.Model == "" {
			return nil, fmt.Errorf("provider %s: model is required", entry.ProviderID)
		}
		if entry.APIKeyEnv == "" {
			return nil, fmt.Errorf("provider %s: api_key_env is required", entry.ProviderID)
		}
		if entry.Temperature < 0 || entry.Temperature > 2.0 {
			return nil, fmt.Errorf("provider %s: temperature must be between 0 and 2.0", entry.ProviderID)
		}
		specs = append(specs, dispatch.ProviderSpec{
			ProviderID:  entry.ProviderID,
			Model:       entry.Model,
			MaxTokens:   entry.MaxTokens,
			Temperature: entry.Temperature,
			APIKeyEnv:   entry.APIKeyEnv,
			BaseURL:     entry.BaseURL,
		})
	}

	log.Info().
		Str("path", path).
		Int("providers", len(specs)).
		Msg("Provider catalog loaded")
	return specs, nil
}
