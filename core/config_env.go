package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const DefaultEnvPrefix = "RELAY_"

// EnvConfigLoader reads configuration from environment variables such as
// RELAY_WEBHOOKS_MAX_ATTEMPTS or RELAY_PHARMACY_NOTE_FILTER.
type EnvConfigLoader struct {
	Prefix string
	Lookup func(key string) (string, bool)
}

func NewEnvConfigLoader() EnvConfigLoader {
	return EnvConfigLoader{Prefix: DefaultEnvPrefix, Lookup: os.LookupEnv}
}

type envKey struct {
	section string
	name    string
	kind    string
}

var envKeys = []envKey{
	{name: "service_name", kind: "string"},
	{section: "webhooks", name: "max_attempts", kind: "int"},
	{section: "webhooks", name: "lease_seconds", kind: "int"},
	{section: "webhooks", name: "request_timeout_seconds", kind: "int"},
	{section: "webhooks", name: "batch_size", kind: "int"},
	{section: "webhooks", name: "worker_batch_size", kind: "int"},
	{section: "webhooks", name: "idle_interval_ms", kind: "int"},
	{section: "webhooks", name: "backoff_seconds", kind: "ints"},
	{section: "pharmacy", name: "note_filter", kind: "string"},
	{section: "pharmacy", name: "api_key", kind: "string"},
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	prefix := l.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	out := map[string]any{}
	for _, key := range envKeys {
		path := key.name
		if key.section != "" {
			path = key.section + "_" + key.name
		}
		variable := prefix + strings.ToUpper(path)
		raw, ok := lookup(variable)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		value, err := parseEnvValue(key.kind, strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("core: env %s: %w", variable, err)
		}
		if key.section == "" {
			out[key.name] = value
			continue
		}
		section, _ := out[key.section].(map[string]any)
		if section == nil {
			section = map[string]any{}
			out[key.section] = section
		}
		section[key.name] = value
	}
	return out, nil
}

func parseEnvValue(kind string, raw string) (any, error) {
	switch kind {
	case "int":
		return strconv.Atoi(raw)
	case "ints":
		parts := strings.Split(raw, ",")
		values := make([]int, 0, len(parts))
		for _, part := range parts {
			value, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			values = append(values, value)
		}
		return values, nil
	default:
		return raw, nil
	}
}
