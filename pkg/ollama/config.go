package ollama

import "time"

// Config holds settings for the Ollama client.
type Config struct {
	// BaseURL is the Ollama endpoint, e.g. http://localhost:11434.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Model is used when a call does not name one.
	Model   string        `yaml:"model" json:"model"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// Retries counts extra attempts after a transient failure.
	Retries int           `yaml:"retries" json:"retries"`
	Backoff time.Duration `yaml:"backoff" json:"backoff"`
	// CircuitFailureThreshold consecutive failures open the circuit for
	// CircuitReset.
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold" json:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset" json:"circuit_reset"`
}

// DefaultConfig returns the settings of a local instance.
func DefaultConfig() Config {
	return Config{
		BaseURL:                 "http://localhost:11434",
		Model:                   "llama3",
		Timeout:                 30 * time.Second,
		Retries:                 2,
		Backoff:                 500 * time.Millisecond,
		CircuitFailureThreshold: 5,
		CircuitReset:            30 * time.Second,
	}
}

// withDefaults fills zero durations and thresholds from DefaultConfig.
// Retries may stay 0.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Backoff <= 0 {
		c.Backoff = d.Backoff
	}
	if c.CircuitFailureThreshold <= 0 {
		c.CircuitFailureThreshold = d.CircuitFailureThreshold
	}
	if c.CircuitReset <= 0 {
		c.CircuitReset = d.CircuitReset
	}
	if c.Retries < 0 {
		c.Retries = 0
	}

	return c
}
