package types

import "time"

// HTTPConfig holds shared HTTP settings used by every component that makes
// network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "fulltext-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// ContactEmail identifies the operator to polite-pool APIs. Unpaywall
	// and NCBI both require it by their terms of use.
	ContactEmail string `json:"contact_email" yaml:"contact_email" mapstructure:"contact_email"`

	// ProxyURL, when set, routes all requests through an HTTP proxy.
	ProxyURL string `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty" mapstructure:"proxy_url"`

	// RequestsPerSecond bounds the request rate across all hosts
	// (default 2).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// FetchConfig holds settings for the retrieval pipeline.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// OutputDir is the directory PDFs are written to. Filenames are
	// derived deterministically from identifiers, so an existing file
	// short-circuits retrieval for its identifier.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// IdentifierDelay is the fixed pause after each identifier regardless
	// of outcome (default 1s). Politeness throttling, not retry backoff.
	IdentifierDelay time.Duration `json:"identifier_delay" yaml:"identifier_delay" mapstructure:"identifier_delay"`

	// LookupRetries bounds the automatic retries of the open-access
	// metadata lookup on transient failure (default 3). Every other step
	// attempts at most once per identifier per run.
	LookupRetries int `json:"lookup_retries" yaml:"lookup_retries" mapstructure:"lookup_retries"`

	// MinPDFSize is the strict validation floor in bytes (default 10240).
	MinPDFSize int64 `json:"min_pdf_size" yaml:"min_pdf_size" mapstructure:"min_pdf_size"`

	// TrustedMinPDFSize is the lenient floor applied to trusted-source
	// files during batch revalidation (default 1024).
	TrustedMinPDFSize int64 `json:"trusted_min_pdf_size" yaml:"trusted_min_pdf_size" mapstructure:"trusted_min_pdf_size"`

	// ElsevierAPIKey gates the publisher text-mining strategy. When empty
	// the strategy is a silent no-op.
	ElsevierAPIKey string `json:"elsevier_api_key,omitempty" yaml:"elsevier_api_key,omitempty" mapstructure:"elsevier_api_key"`

	// ElsevierInstToken is an optional institutional token sent alongside
	// the API key.
	ElsevierInstToken string `json:"elsevier_insttoken,omitempty" yaml:"elsevier_insttoken,omitempty" mapstructure:"elsevier_insttoken"`

	// NCBIAPIKey raises the NCBI rate limit when set. Optional.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty" mapstructure:"ncbi_api_key"`
}

// LogConfig holds settings for acquisition log persistence.
type LogConfig struct {
	// Path is the SQLite database file (default "acquisitions.db" inside
	// the output directory's parent).
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// ReportConfig holds settings for the downstream report generator.
type ReportConfig struct {
	// OutputPath is where the Markdown summary is written; empty means
	// stdout.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty" mapstructure:"output_path"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Fetch  FetchConfig  `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Log    LogConfig    `json:"log" yaml:"log" mapstructure:"log"`
	Report ReportConfig `json:"report" yaml:"report" mapstructure:"report"`
}
