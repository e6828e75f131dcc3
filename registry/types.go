package registry

// Acquisition strategies. Render drives a headless browser through the
// source's search portal; direct fetches documents over plain HTTP.
const (
	StrategyRender = "render"
	StrategyDirect = "direct"
)

// Source describes one county recording portal: where to search, how to
// page through results, and how to resolve a document ID to its file.
//
// URL templates use brace placeholders: SearchURLTemplate takes {from} and
// {to} (MM/DD/YYYY dates), DocURLTemplate takes {id}.
type Source struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Strategy string `json:"strategy"`

	BaseURL           string `json:"base_url"`
	SearchURLTemplate string `json:"search_url_template"`
	DocURLTemplate    string `json:"doc_url_template"`

	// CSS selectors for the rendered results page. Empty selectors fall
	// back to scanning every anchor and table cell.
	ResultsSelector  string `json:"results_selector,omitempty"`
	NextPageSelector string `json:"next_page_selector,omitempty"`
	DisabledClass    string `json:"disabled_class,omitempty"`

	// PatternsJSON holds named extraction-pattern overrides as a JSON
	// object of name -> regex. Empty means the built-in patterns apply.
	PatternsJSON string `json:"patterns_json,omitempty"`

	RequestDelayMs int64 `json:"request_delay_ms"`
	LoadWaitMs     int64 `json:"load_wait_ms"`
	MaxPages       int   `json:"max_pages"`

	Enabled   bool  `json:"enabled"`
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}
