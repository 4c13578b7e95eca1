package config

// mergeConfigs layers override on top of base. Scalars replace when set,
// lists replace when non-empty and extension maps merge one level deep.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	result.Server = mergeServer(result.Server, override.Server)
	if override.Channel.Transport != "" {
		result.Channel.Transport = override.Channel.Transport
	}
	if override.Channel.Path != "" {
		result.Channel.Path = override.Channel.Path
	}

	if override.Plan.TargetEnvironment != "" {
		result.Plan.TargetEnvironment = override.Plan.TargetEnvironment
	}
	if override.Plan.SkipTests {
		result.Plan.SkipTests = true
	}
	if override.Plan.IncludeUnmodified {
		result.Plan.IncludeUnmodified = true
	}

	if len(override.Workspace.Ignore) > 0 {
		result.Workspace.Ignore = override.Workspace.Ignore
	}

	if override.State.Backend != "" {
		result.State.Backend = override.State.Backend
	}
	if override.State.Path != "" {
		result.State.Path = override.State.Path
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.ReportCaller {
		result.Logging.ReportCaller = true
	}
	if override.Logging.File.Enabled {
		result.Logging.File = override.Logging.File
	}
	if override.Logging.Format.Preset != "" {
		result.Logging.Format = override.Logging.Format
	}

	if override.Telemetry.DSN != "" {
		result.Telemetry.DSN = override.Telemetry.DSN
	}
	if override.Telemetry.Environment != "" {
		result.Telemetry.Environment = override.Telemetry.Environment
	}

	if override.Extensions != nil {
		merged := make(map[string]interface{}, len(result.Extensions)+len(override.Extensions))
		for k, v := range result.Extensions {
			merged[k] = v
		}
		for key, value := range override.Extensions {
			if baseMap, ok := merged[key].(map[string]interface{}); ok {
				if overrideMap, ok := value.(map[string]interface{}); ok {
					m := make(map[string]interface{}, len(baseMap)+len(overrideMap))
					for k, v := range baseMap {
						m[k] = v
					}
					for k, v := range overrideMap {
						m[k] = v
					}
					merged[key] = m
					continue
				}
			}
			merged[key] = value
		}
		result.Extensions = merged
	}

	return &result
}

func mergeServer(base, override ServerConfig) ServerConfig {
	result := base
	if override.URL != "" {
		result.URL = override.URL
	}
	if override.Socket != "" {
		result.Socket = override.Socket
	}
	if override.Timeout != "" {
		result.Timeout = override.Timeout
	}
	return result
}
