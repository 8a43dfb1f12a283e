package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/filestream/resilience"
)

// Default transport values.
const (
	DefaultRegion  = "us-east-1"
	DefaultTimeout = 30 * time.Second
)

// Options carries backend transport settings. Each backend reads the fields
// that apply to it and ignores the rest.
type Options struct {
	// Client, when set, is used instead of building a backend.
	Client FileSystem `yaml:"-" mapstructure:"-" json:"-"`

	// Anonymous disables credential lookup (public buckets).
	Anonymous bool `yaml:"anonymous" mapstructure:"anonymous" json:"anonymous"`

	// Region is the object-store region.
	Region string `yaml:"region" mapstructure:"region" json:"region"`

	// Endpoint is a custom S3-compatible or GCS endpoint.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" json:"endpoint"`

	// AccessKey and SecretKey are static credentials (AWS keys or GCS HMAC keys).
	AccessKey    string `yaml:"access_key" mapstructure:"access_key" json:"access_key"`
	SecretKey    string `yaml:"secret_key" mapstructure:"secret_key" json:"-"`
	SessionToken string `yaml:"session_token" mapstructure:"session_token" json:"-"`

	// ForcePathStyle forces path-style bucket addressing.
	ForcePathStyle bool `yaml:"force_path_style" mapstructure:"force_path_style" json:"force_path_style"`

	// Insecure uses plain HTTP towards the object-store endpoint.
	Insecure bool `yaml:"insecure" mapstructure:"insecure" json:"insecure"`

	// Headers are added to every HTTP request of the http backend.
	Headers map[string]string `yaml:"headers" mapstructure:"headers" json:"headers,omitempty"`

	// Timeout bounds a single backend request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`

	// Retry controls retries of transient backend failures.
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry" json:"-"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (o *Options) ApplyDefaults() {
	if o.Region == "" {
		o.Region = DefaultRegion
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	o.Retry.ApplyDefaults()
}

// Validate checks that the options are consistent.
func (o *Options) Validate() error {
	var errs []error
	if (o.AccessKey == "") != (o.SecretKey == "") {
		errs = append(errs, errors.New("access_key and secret_key must be set together"))
	}
	if o.Anonymous && o.AccessKey != "" {
		errs = append(errs, errors.New("anonymous access cannot be combined with credentials"))
	}
	if o.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("storage: invalid options: %w", errors.Join(errs...))
	}
	return nil
}
