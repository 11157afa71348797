package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-relay/webhooks"
)

const (
	LoggerNameRelay    = "relay"
	LoggerNameWebhooks = "relay.webhooks"
	LoggerNameJobs     = "relay.jobs"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Named returns the provider's logger for name, or fallback when the
// provider has none.
func Named(provider glog.LoggerProvider, name string, fallback glog.Logger) glog.Logger {
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			return named
		}
	}
	if fallback != nil {
		return fallback
	}
	return glog.Nop()
}

// DispatcherLogger routes dispatcher logs to the relay.webhooks logger.
func DispatcherLogger(provider glog.LoggerProvider, logger glog.Logger) webhooks.DispatcherOption {
	resolvedProvider, resolvedLogger := Resolve(LoggerNameWebhooks, provider, logger)
	return webhooks.WithLogger(Named(resolvedProvider, LoggerNameWebhooks, resolvedLogger))
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(LoggerNameJobs, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
