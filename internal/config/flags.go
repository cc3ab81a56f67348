package config

import (
	"strings"

	"github.com/spf13/pflag"
)

// RegisterGlobalFlags sets up the flags shared by every subcommand.
func RegisterGlobalFlags(flags *pflag.FlagSet) {
	flags.String("log-level", DefaultLogLevel, "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", DefaultLogFormat, "Log format: 'text' or 'json'")
	flags.String("color", DefaultColor, "Colorize output: 'auto', 'always' or 'never'")
	flags.String("env-file", DefaultEnvFile, "Dotenv file with GN_* variables to load before reading configuration")
}

// RegisterWriteFlags sets up the flags of the write command.
func RegisterWriteFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("host", "", "Target address in host:port form")
	flags.StringP("protocol", "p", DefaultProtocol, "Transport protocol: 'tcp' or 'udp'")
	flags.String("payload-file", "", "Read the payload from this file instead of the argument or stdin")

	// Load control flags
	flags.Int64P("count", "n", DefaultCount, "Total number of writes to perform (mutually exclusive with --duration)")
	flags.DurationP("duration", "d", 0, "How long to keep writing (e.g. 30s, 1m)")
	flags.IntP("concurrency", "c", DefaultConcurrency, "Number of concurrent writers")
	flags.IntP("rate", "r", 0, "Writes per second limit (0 means unlimited)")
	flags.String("arrival-model", DefaultArrivalModel, "Arrival model to use when pacing writes (uniform or poisson)")
	flags.Duration("timeout", 0, "Per-write timeout covering connect and send (0 means none)")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted report")
	flags.Bool("yaml-output", false, "Emit YAML formatted report")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.Bool("log-errors", false, "Log each failed write to stderr")
	flags.String("report-file", "", "Append the report as a JSON line to this history file")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g. 'write_duration:p95 < 50')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; tracing is off when empty")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of writes to trace (0.0 to 1.0)")
	flags.Bool("tracing-insecure", false, "Use a plaintext connection to the collector")
}

// RegisterServeFlags sets up the flags of the serve command.
func RegisterServeFlags(flags *pflag.FlagSet) {
	flags.StringP("address", "a", DefaultAddress, "Address to listen on")
	flags.StringP("protocol", "p", DefaultProtocol, "Transport protocol: 'tcp' or 'udp'")
	flags.String("mode", DefaultServeMode, "What to do with received data: 'print', 'echo' or 'discard'")
	flags.Int("buffer-size", DefaultBufferSize, "UDP receive buffer size in bytes")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")
}

// LoadLog reads the global flags.
func LoadLog(fs *pflag.FlagSet) (LogConfig, error) {
	cfg := LogConfig{
		Level:   DefaultLogLevel,
		Format:  DefaultLogFormat,
		Color:   DefaultColor,
		EnvFile: DefaultEnvFile,
	}
	for name, dst := range map[string]*string{
		"log-level":  &cfg.Level,
		"log-format": &cfg.Format,
		"color":      &cfg.Color,
		"env-file":   &cfg.EnvFile,
	} {
		if fs.Lookup(name) == nil {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return cfg, err
		}
		*dst = strings.TrimSpace(val)
	}
	return cfg, nil
}

// applyWriteFlagOverrides applies command-line flag values to the config,
// overriding values from the config file and the environment.
func applyWriteFlagOverrides(cfg *WriteConfig, fs *pflag.FlagSet) error {
	if fs.Changed("host") {
		val, err := fs.GetString("host")
		if err != nil {
			return err
		}
		cfg.Host = strings.TrimSpace(val)
	}
	if fs.Changed("protocol") {
		val, err := fs.GetString("protocol")
		if err != nil {
			return err
		}
		cfg.Protocol = val
	}
	if fs.Changed("payload-file") {
		val, err := fs.GetString("payload-file")
		if err != nil {
			return err
		}
		cfg.PayloadFile = strings.TrimSpace(val)
		cfg.Payload = ""
	}
	// A stopping condition from the command line replaces the one from
	// the file instead of conflicting with it.
	if fs.Changed("count") {
		val, err := fs.GetInt64("count")
		if err != nil {
			return err
		}
		cfg.Count = val
		cfg.CountSet = true
		if !fs.Changed("duration") {
			cfg.Duration = 0
		}
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
		if !fs.Changed("count") {
			cfg.Count = 0
			cfg.CountSet = false
		}
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.ArrivalModel = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("yaml-output") {
		val, err := fs.GetBool("yaml-output")
		if err != nil {
			return err
		}
		cfg.YAMLOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("report-file") {
		val, err := fs.GetString("report-file")
		if err != nil {
			return err
		}
		cfg.ReportFile = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(val)
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	return nil
}

func applyServeFlagOverrides(cfg *ServeConfig, fs *pflag.FlagSet) error {
	if fs.Changed("address") {
		val, err := fs.GetString("address")
		if err != nil {
			return err
		}
		cfg.Address = strings.TrimSpace(val)
	}
	if fs.Changed("protocol") {
		val, err := fs.GetString("protocol")
		if err != nil {
			return err
		}
		cfg.Protocol = val
	}
	if fs.Changed("mode") {
		val, err := fs.GetString("mode")
		if err != nil {
			return err
		}
		cfg.Mode = strings.ToLower(val)
	}
	if fs.Changed("buffer-size") {
		val, err := fs.GetInt("buffer-size")
		if err != nil {
			return err
		}
		cfg.BufferSize = val
	}
	return nil
}
