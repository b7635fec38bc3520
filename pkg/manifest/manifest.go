// Package manifest provides loading and validation of docwatch watch
// manifests.
//
// A watch manifest is a YAML or JSON file that configures a tracking run:
// the analysis service connection, poll tuning, quota settling, and the
// glob patterns used to pick up documents for submission.
//
// Manifests are validated against a JSON Schema to ensure correctness
// before execution. The schema enforces strict typing and disallows
// unknown properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	connection:
//	  endpoint: http://localhost:8000
//	  user_id: u-7acc21
//	poll:
//	  interval_ms: 5000
//	  max_attempts: 24
//	submit:
//	  includes:
//	    - "contracts/**/*.pdf"
package manifest

import "time"

// Manifest represents a validated watch manifest.
//
// Required fields are Version and Connection. Poll, Quota, and Submit are
// optional with defaults matching the analysis service's expectations.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Connection configures the analysis service endpoint and identity.
	Connection ConnectionConfig `json:"connection" yaml:"connection"`

	// Poll tunes the status polling scheduler (optional).
	Poll PollConfig `json:"poll,omitempty" yaml:"poll,omitempty"`

	// Quota tunes quota refresh behavior (optional).
	Quota QuotaConfig `json:"quota,omitempty" yaml:"quota,omitempty"`

	// Submit configures document pickup for submission (optional).
	Submit SubmitConfig `json:"submit,omitempty" yaml:"submit,omitempty"`

	// StateDir overrides where job records are persisted (optional).
	StateDir string `json:"state_dir,omitempty" yaml:"state_dir,omitempty"`
}

// ConnectionConfig configures the analysis service connection.
type ConnectionConfig struct {
	// Endpoint is the service base URL, e.g. "http://localhost:8000".
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UserID is the opaque identity sent with user-scoped calls.
	UserID string `json:"user_id" yaml:"user_id"`

	// TimeoutMS bounds each request in milliseconds. Optional.
	TimeoutMS int `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
}

// PollConfig tunes the polling scheduler.
type PollConfig struct {
	// IntervalMS is the shared tick period in milliseconds. Default: 5000.
	IntervalMS int `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"`

	// MaxAttempts is the per-job poll ceiling. Default: 24.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`

	// RateLimit is the maximum status fetches per second across all
	// jobs. Zero means unlimited. Default: 0.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// QuotaConfig tunes quota refresh behavior.
type QuotaConfig struct {
	// SettleDelayMS is the pause before the post-submission quota
	// refresh, in milliseconds. Default: 1000.
	SettleDelayMS int `json:"settle_delay_ms,omitempty" yaml:"settle_delay_ms,omitempty"`
}

// SubmitConfig configures document pickup.
type SubmitConfig struct {
	// Includes is a list of doublestar glob patterns for documents to
	// submit, e.g. "reports/**/*.pdf". Optional.
	Includes []string `json:"includes,omitempty" yaml:"includes,omitempty"`
}

// Default tuning values. These match the analysis service's processing
// cadence and should only be overridden deliberately.
const (
	DefaultPollIntervalMS = 5000
	DefaultMaxAttempts    = 24
	DefaultSettleDelayMS  = 1000
	DefaultRequestTimeout = 30 * time.Second
)

// ApplyDefaults fills optional fields with defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Poll.IntervalMS <= 0 {
		m.Poll.IntervalMS = DefaultPollIntervalMS
	}
	if m.Poll.MaxAttempts <= 0 {
		m.Poll.MaxAttempts = DefaultMaxAttempts
	}
	if m.Quota.SettleDelayMS <= 0 {
		m.Quota.SettleDelayMS = DefaultSettleDelayMS
	}
	if m.Connection.TimeoutMS <= 0 {
		m.Connection.TimeoutMS = int(DefaultRequestTimeout / time.Millisecond)
	}
}

// PollInterval returns the tick period as a duration.
func (m *Manifest) PollInterval() time.Duration {
	return time.Duration(m.Poll.IntervalMS) * time.Millisecond
}

// SettleDelay returns the quota settling delay as a duration.
func (m *Manifest) SettleDelay() time.Duration {
	return time.Duration(m.Quota.SettleDelayMS) * time.Millisecond
}

// RequestTimeout returns the per-request timeout as a duration.
func (m *Manifest) RequestTimeout() time.Duration {
	return time.Duration(m.Connection.TimeoutMS) * time.Millisecond
}
