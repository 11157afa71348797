package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	NoteFilterAdminOnly = "admin_only"
	NoteFilterAll       = "all"
)

// DefaultBackoffSeconds is the retry delay table indexed by attempt number,
// clamped to its last entry.
var DefaultBackoffSeconds = []int{5, 15, 60, 300, 900, 3600, 21600, 86400}

type WebhooksConfig struct {
	MaxAttempts           int   `koanf:"max_attempts" mapstructure:"max_attempts"`
	LeaseSeconds          int   `koanf:"lease_seconds" mapstructure:"lease_seconds"`
	RequestTimeoutSeconds int   `koanf:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	BatchSize             int   `koanf:"batch_size" mapstructure:"batch_size"`
	WorkerBatchSize       int   `koanf:"worker_batch_size" mapstructure:"worker_batch_size"`
	IdleIntervalMS        int   `koanf:"idle_interval_ms" mapstructure:"idle_interval_ms"`
	BackoffSeconds        []int `koanf:"backoff_seconds" mapstructure:"backoff_seconds"`
}

type PharmacyConfig struct {
	NoteFilter string `koanf:"note_filter" mapstructure:"note_filter"`
	APIKey     string `koanf:"api_key" mapstructure:"api_key"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Webhooks    WebhooksConfig `koanf:"webhooks" mapstructure:"webhooks"`
	Pharmacy    PharmacyConfig `koanf:"pharmacy" mapstructure:"pharmacy"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "relay",
		Webhooks: WebhooksConfig{
			MaxAttempts:           10,
			LeaseSeconds:          30,
			RequestTimeoutSeconds: 10,
			BatchSize:             50,
			WorkerBatchSize:       100,
			IdleIntervalMS:        1000,
			BackoffSeconds:        append([]int(nil), DefaultBackoffSeconds...),
		},
		Pharmacy: PharmacyConfig{
			NoteFilter: NoteFilterAdminOnly,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if err := c.Webhooks.Validate(); err != nil {
		return err
	}
	switch strings.TrimSpace(c.Pharmacy.NoteFilter) {
	case NoteFilterAdminOnly, NoteFilterAll:
	default:
		return fmt.Errorf("core: pharmacy.note_filter %q is invalid", c.Pharmacy.NoteFilter)
	}
	return nil
}

func (c WebhooksConfig) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("core: webhooks.max_attempts must be positive")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("core: webhooks.request_timeout_seconds must be positive")
	}
	if c.LeaseSeconds <= c.RequestTimeoutSeconds {
		return fmt.Errorf("core: webhooks.lease_seconds must exceed request_timeout_seconds")
	}
	if c.BatchSize <= 0 || c.WorkerBatchSize <= 0 {
		return fmt.Errorf("core: webhooks batch sizes must be positive")
	}
	if c.IdleIntervalMS < 0 {
		return fmt.Errorf("core: webhooks.idle_interval_ms is invalid")
	}
	if len(c.BackoffSeconds) == 0 {
		return fmt.Errorf("core: webhooks.backoff_seconds is required")
	}
	for _, delay := range c.BackoffSeconds {
		if delay <= 0 {
			return fmt.Errorf("core: webhooks.backoff_seconds entries must be positive")
		}
	}
	return nil
}

func (c WebhooksConfig) Lease() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

func (c WebhooksConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c WebhooksConfig) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalMS) * time.Millisecond
}

func (c WebhooksConfig) Backoff() []time.Duration {
	out := make([]time.Duration, 0, len(c.BackoffSeconds))
	for _, seconds := range c.BackoffSeconds {
		out = append(out, time.Duration(seconds)*time.Second)
	}
	return out
}

func (c PharmacyConfig) OnlyAdminNotes() bool {
	return strings.TrimSpace(c.NoteFilter) != NoteFilterAll
}
