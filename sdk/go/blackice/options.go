package blackice

import (
	"github.com/sirupsen/logrus"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/activity"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/display"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/permission"
)

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	configPath string
	cfg        *config.Config
	surface    display.Context
	injector   display.Injector
	matcher    display.ElementMatcher
	prober     activity.Prober
	approver   permission.Approver
	auditPath  string
	log        *logrus.Logger
}

// WithConfigPath sets the path to a config YAML file.
func WithConfigPath(path string) Option {
	return func(c *clientConfig) { c.configPath = path }
}

// WithConfig supplies an already validated config, bypassing file loading.
func WithConfig(cfg *config.Config) Option {
	return func(c *clientConfig) { c.cfg = cfg }
}

// WithDisplay sets the display context the client drives.
func WithDisplay(d display.Context) Option {
	return func(c *clientConfig) { c.surface = d }
}

// WithInjector sets the input injector.
func WithInjector(i display.Injector) Option {
	return func(c *clientConfig) { c.injector = i }
}

// WithMatcher sets the element matcher used by FindElement.
func WithMatcher(m display.ElementMatcher) Option {
	return func(c *clientConfig) { c.matcher = m }
}

// WithProber overrides how activity signals are read from the host.
func WithProber(p activity.Prober) Option {
	return func(c *clientConfig) { c.prober = p }
}

// WithApprover sets the external confirmation hook for gated tiers.
func WithApprover(a permission.Approver) Option {
	return func(c *clientConfig) { c.approver = a }
}

// WithAuditLog enables the append-only session log at path.
func WithAuditLog(path string) Option {
	return func(c *clientConfig) { c.auditPath = path }
}

// WithLogger sets the logger for all components.
func WithLogger(log *logrus.Logger) Option {
	return func(c *clientConfig) { c.log = log }
}
