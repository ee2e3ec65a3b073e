// Package metrics defines the observability interfaces mdsessiond's
// components accept, following dittofs's pkg/metrics: an interface per
// subsystem (here, SessionMapMetrics), implemented concretely in
// pkg/metrics/prometheus, with nil passed explicitly by the caller when
// metrics collection is disabled.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry installs the Prometheus registry metrics collectors should
// register against. Calling it with a non-nil registry enables IsEnabled.
func InitRegistry(reg *prometheus.Registry) {
	registry = reg
	enabled = reg != nil
}

// IsEnabled reports whether InitRegistry has been called with a non-nil
// registry.
func IsEnabled() bool {
	return enabled
}

// GetRegistry returns the installed registry, or a fresh unregistered one
// if InitRegistry was never called (so constructors can still be exercised
// in tests without a global registry).
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return prometheus.NewRegistry()
	}
	return registry
}
