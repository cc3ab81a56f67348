package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. GN_WRITE_HOST or
// GN_SERVE_ADDRESS.
const EnvPrefix = "GN"

var writeKeys = []string{
	"host", "protocol", "count", "duration", "concurrency", "rate",
	"arrival_model", "timeout", "payload", "payload_file",
	"json_output", "yaml_output", "dashboard", "log_errors",
	"thresholds", "report_file",
	"tracing.endpoint", "tracing.protocol", "tracing.service_name",
	"tracing.sample_rate", "tracing.insecure",
}

var serveKeys = []string{"address", "protocol", "mode", "buffer_size"}

// Loader builds configurations from, in increasing precedence, defaults, a
// config file section, GN_* environment variables and command-line flags.
type Loader struct {
	// ConfigPath overrides the --config flag when set.
	ConfigPath string
}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. A missing file is only an
// error when the user asked for it explicitly.
func LoadEnvFile(path string, explicit bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// LoadWrite produces the write configuration. args are the positional
// arguments left after flag parsing; the first one is the payload literal.
func (l Loader) LoadWrite(flagSet *pflag.FlagSet, args []string) (*WriteConfig, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("expected at most one payload argument, got %d", len(args))
	}
	configPath := l.configPath(flagSet)

	settings, err := loadSection(configPath, "write", writeKeys)
	if err != nil {
		return nil, err
	}

	cfg := defaultWriteConfig()
	cfg.ConfigFile = configPath
	if err := applyWriteSettings(cfg, settings); err != nil {
		return nil, err
	}
	if err := applyWriteFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}
	if len(args) == 1 {
		cfg.Payload = args[0]
		if !flagSet.Changed("payload-file") {
			cfg.PayloadFile = ""
		}
	}

	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Protocol = strings.ToLower(strings.TrimSpace(cfg.Protocol))
	cfg.ArrivalModel = strings.ToLower(strings.TrimSpace(cfg.ArrivalModel))
	if !cfg.CountSet && cfg.Duration == 0 {
		cfg.Count = DefaultCount
		cfg.CountSet = true
	}
	return cfg, nil
}

// LoadServe produces the serve configuration.
func (l Loader) LoadServe(flagSet *pflag.FlagSet) (*ServeConfig, error) {
	configPath := l.configPath(flagSet)

	settings, err := loadSection(configPath, "serve", serveKeys)
	if err != nil {
		return nil, err
	}

	cfg := defaultServeConfig()
	cfg.ConfigFile = configPath
	if err := applyServeSettings(cfg, settings); err != nil {
		return nil, err
	}
	if err := applyServeFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}
	cfg.Protocol = strings.ToLower(strings.TrimSpace(cfg.Protocol))
	return cfg, nil
}

func (l Loader) configPath(flagSet *pflag.FlagSet) string {
	if l.ConfigPath != "" {
		return l.ConfigPath
	}
	if flagSet == nil || flagSet.Lookup("config") == nil {
		return ""
	}
	return strings.TrimSpace(flagSet.Lookup("config").Value.String())
}

// loadSection reads one top-level section of the config file merged with
// its GN_<SECTION>_<KEY> environment variables.
func loadSection(configPath, section string, keys []string) (map[string]interface{}, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range keys {
		if err := v.BindEnv(section + "." + key); err != nil {
			return nil, err
		}
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	raw, ok := lookupSetting(v.AllSettings(), section)
	if !ok || raw == nil {
		return nil, nil
	}
	settings, err := toStringKeyMap(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", section, err)
	}
	return settings, nil
}

// applyWriteSettings applies a `write` section to the config.
func applyWriteSettings(cfg *WriteConfig, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "host"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("host: %w", err)
		}
		cfg.Host = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		if val != "" {
			cfg.Protocol = val
		}
	}
	if raw, ok := lookupSetting(settings, "count", "total"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		cfg.Count = int64(val)
		cfg.CountSet = true
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = val
	}
	if raw, ok := lookupSetting(settings, "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("concurrency: %w", err)
		}
		cfg.Concurrency = val
	}
	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}
	if raw, ok := lookupSetting(settings, "arrival_model", "arrival-model", "arrivalmodel"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("arrival_model: %w", err)
		}
		if val != "" {
			cfg.ArrivalModel = val
		}
	}
	if raw, ok := lookupSetting(settings, "timeout"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = val
	}
	if raw, ok := lookupSetting(settings, "payload"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("payload: %w", err)
		}
		cfg.Payload = val
	}
	if raw, ok := lookupSetting(settings, "payload_file", "payload-file", "payloadfile"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("payload_file: %w", err)
		}
		cfg.PayloadFile = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "json_output", "json-output", "jsonoutput"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_output: %w", err)
		}
		cfg.JSONOutput = val
	}
	if raw, ok := lookupSetting(settings, "yaml_output", "yaml-output", "yamloutput"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("yaml_output: %w", err)
		}
		cfg.YAMLOutput = val
	}
	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}
	if raw, ok := lookupSetting(settings, "log_errors", "log-errors", "logerrors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("log_errors: %w", err)
		}
		cfg.LogErrors = val
	}
	if raw, ok := lookupSetting(settings, "thresholds", "threshold"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}
	if raw, ok := lookupSetting(settings, "report_file", "report-file", "reportfile"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("report_file: %w", err)
		}
		cfg.ReportFile = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok && raw != nil {
		tracing, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		if err := applyTracingSettings(&cfg.Tracing, tracing); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}
	return nil
}

func applyTracingSettings(cfg *TracingConfig, settings map[string]interface{}) error {
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		cfg.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		if val != "" {
			cfg.Protocol = strings.ToLower(val)
		}
	}
	if raw, ok := lookupSetting(settings, "service_name", "service-name", "servicename"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		cfg.ServiceName = val
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "sample-rate", "samplerate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		cfg.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		cfg.Insecure = val
	}
	return nil
}

// applyServeSettings applies a `serve` section to the config.
func applyServeSettings(cfg *ServeConfig, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}
	if raw, ok := lookupSetting(settings, "address", "addr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("address: %w", err)
		}
		if val = strings.TrimSpace(val); val != "" {
			cfg.Address = val
		}
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		if val != "" {
			cfg.Protocol = val
		}
	}
	if raw, ok := lookupSetting(settings, "mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		if val != "" {
			cfg.Mode = strings.ToLower(val)
		}
	}
	if raw, ok := lookupSetting(settings, "buffer_size", "buffer-size", "buffersize"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("buffer_size: %w", err)
		}
		cfg.BufferSize = val
	}
	return nil
}
