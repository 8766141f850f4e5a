package testsupport

import (
	"path/filepath"
	"testing"

	"medannotate/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLeaseTimeout enables claim leases with the given timeout in seconds.
func WithLeaseTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Assignment.LeaseTimeoutSeconds = seconds
	}
}

// WithClaimAttempts overrides the compare-and-set retry bound.
func WithClaimAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Assignment.ClaimAttempts = attempts
	}
}

// WithAPIToken requires the token on API requests.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
