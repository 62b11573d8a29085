package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for:
//   - Required fields
//   - A supported eventlog format
//   - Duplicate or empty entries in allowed_schemas
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if cfg.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if cfg.EventLog.Output == "" {
		errs = append(errs, "eventlog.output is required")
	}
	switch cfg.EventLog.Format {
	case "json", "cbor":
	default:
		errs = append(errs, fmt.Sprintf("eventlog.format must be json or cbor, got %q", cfg.EventLog.Format))
	}

	seen := make(map[string]int)
	for i, id := range cfg.EventLog.AllowedSchemas {
		if id == "" {
			errs = append(errs, fmt.Sprintf("eventlog.allowed_schemas[%d]: must not be empty", i))
			continue
		}
		if prev, ok := seen[id]; ok {
			errs = append(errs, fmt.Sprintf("duplicate schema %q (first seen at [%d], again at [%d])", id, prev, i))
		} else {
			seen[id] = i
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
