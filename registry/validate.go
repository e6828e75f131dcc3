package registry

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	maxNameLen     = 512
	maxURLLen      = 4096
	maxPatternsLen = 8192
	maxDelayMs     = 60_000
	maxWaitMs      = 120_000
	maxPageCeiling = 100

	// MaxSources is the maximum number of configured sources.
	MaxSources = 200
)

// allowedStrategies is the set of valid strategy values.
var allowedStrategies = map[string]bool{
	StrategyRender: true,
	StrategyDirect: true,
}

// validateSourceInput validates a source's mutable fields before insert or
// update.
func validateSourceInput(s *Source) error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(s.Name) > maxNameLen {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, maxNameLen)
	}

	if !allowedStrategies[s.Strategy] {
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, s.Strategy)
	}

	if s.BaseURL == "" {
		return fmt.Errorf("%w: base_url is required", ErrInvalidInput)
	}
	if len(s.BaseURL) > maxURLLen {
		return fmt.Errorf("%w: base_url exceeds %d characters", ErrInvalidInput, maxURLLen)
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base_url must be an absolute URL", ErrInvalidInput)
	}

	if s.SearchURLTemplate == "" {
		return fmt.Errorf("%w: search_url_template is required", ErrInvalidInput)
	}
	if !strings.Contains(s.SearchURLTemplate, "{from}") || !strings.Contains(s.SearchURLTemplate, "{to}") {
		return fmt.Errorf("%w: search_url_template must contain {from} and {to}", ErrInvalidInput)
	}

	if s.DocURLTemplate == "" {
		return fmt.Errorf("%w: doc_url_template is required", ErrInvalidInput)
	}
	if !strings.Contains(s.DocURLTemplate, "{id}") {
		return fmt.Errorf("%w: doc_url_template must contain {id}", ErrInvalidInput)
	}

	if s.RequestDelayMs < 0 || s.RequestDelayMs > maxDelayMs {
		return fmt.Errorf("%w: request_delay_ms must be between 0 and %d", ErrInvalidInput, maxDelayMs)
	}
	if s.LoadWaitMs < 0 || s.LoadWaitMs > maxWaitMs {
		return fmt.Errorf("%w: load_wait_ms must be between 0 and %d", ErrInvalidInput, maxWaitMs)
	}
	if s.MaxPages < 0 || s.MaxPages > maxPageCeiling {
		return fmt.Errorf("%w: max_pages must be between 0 and %d", ErrInvalidInput, maxPageCeiling)
	}

	if s.PatternsJSON != "" && s.PatternsJSON != "{}" {
		if len(s.PatternsJSON) > maxPatternsLen {
			return fmt.Errorf("%w: patterns_json exceeds %d bytes", ErrInvalidInput, maxPatternsLen)
		}
		if !json.Valid([]byte(s.PatternsJSON)) {
			return fmt.Errorf("%w: patterns_json is not valid JSON", ErrInvalidInput)
		}
	}

	return nil
}
