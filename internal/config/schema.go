package config

// Config is the top-level YAML structure.
type Config struct {
	Version  string       `yaml:"version"`
	Server   ServerConf   `yaml:"server"`
	EventLog EventLogConf `yaml:"eventlog"`
}

// ServerConf holds HTTP listener settings.
type ServerConf struct {
	Addr string `yaml:"addr"`
}

// EventLogConf configures the event sink.
type EventLogConf struct {
	Output         string   `yaml:"output"` // "-" = stdout
	Format         string   `yaml:"format"` // json | cbor
	AllowedSchemas []string `yaml:"allowed_schemas"`
}
