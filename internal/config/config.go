// Package config loads gn settings from flags, GN_* environment variables,
// dotenv files and JSON/YAML/TOML config files.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torosent/gn/internal/logger"
	"github.com/torosent/gn/internal/threshold"
)

// Defaults shared by flags and config files.
const (
	DefaultProtocol     = "tcp"
	DefaultAddress      = "127.0.0.1:5000"
	DefaultServeMode    = "print"
	DefaultBufferSize   = 1024
	DefaultConcurrency  = 1
	DefaultCount        = 1
	DefaultArrivalModel = "uniform"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultColor        = "auto"
	DefaultEnvFile      = ".env"
)

// WriteConfig drives one `gn write` run.
type WriteConfig struct {
	Host         string        `mapstructure:"host"`
	Protocol     string        `mapstructure:"protocol"`
	Count        int64         `mapstructure:"count"`
	CountSet     bool          `mapstructure:"-"`
	Duration     time.Duration `mapstructure:"duration"`
	Concurrency  int           `mapstructure:"concurrency"`
	Rate         int           `mapstructure:"rate"`
	ArrivalModel string        `mapstructure:"arrival_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Payload      string        `mapstructure:"payload"`
	PayloadFile  string        `mapstructure:"payload_file"`
	JSONOutput   bool          `mapstructure:"json_output"`
	YAMLOutput   bool          `mapstructure:"yaml_output"`
	Dashboard    bool          `mapstructure:"dashboard"`
	LogErrors    bool          `mapstructure:"log_errors"`
	Thresholds   []string      `mapstructure:"thresholds"`
	ReportFile   string        `mapstructure:"report_file"`
	Tracing      TracingConfig `mapstructure:"tracing"`
	ConfigFile   string        `mapstructure:"-"`
}

// ServeConfig drives `gn serve`.
type ServeConfig struct {
	Address    string `mapstructure:"address"`
	Protocol   string `mapstructure:"protocol"`
	Mode       string `mapstructure:"mode"`
	BufferSize int    `mapstructure:"buffer_size"`
	ConfigFile string `mapstructure:"-"`
}

// LogConfig holds the global output flags.
type LogConfig struct {
	Level   string
	Format  string
	Color   string
	EnvFile string
}

// TracingConfig configures the optional OTLP span exporter.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // grpc or http
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Enabled reports whether an exporter endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

func defaultWriteConfig() *WriteConfig {
	return &WriteConfig{
		Protocol:     DefaultProtocol,
		Concurrency:  DefaultConcurrency,
		ArrivalModel: DefaultArrivalModel,
		Tracing:      TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

func defaultServeConfig() *ServeConfig {
	return &ServeConfig{
		Address:    DefaultAddress,
		Protocol:   DefaultProtocol,
		Mode:       DefaultServeMode,
		BufferSize: DefaultBufferSize,
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate reports every problem with the write configuration at once.
func (c WriteConfig) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Host) == "" {
		issues = append(issues, "host is required (use --help for usage information)")
	}
	issues = append(issues, validateProtocol(c.Protocol)...)

	if c.CountSet && c.Duration > 0 {
		issues = append(issues, "count and duration are mutually exclusive")
	}
	if !c.CountSet && c.Duration <= 0 {
		issues = append(issues, "either count or duration is required")
	}
	if c.Count < 0 {
		issues = append(issues, "count must be >= 0")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}

	// Warn about high rate/concurrency
	if c.Rate > 1000 {
		logger.GetLogger().WithField("rate", c.Rate).Warn("High rate limit configured. Ensure you have authorization to send traffic to the target.")
	}
	if c.Concurrency > 500 {
		logger.GetLogger().WithField("concurrency", c.Concurrency).Warn("High concurrency configured. Ensure you have authorization to send traffic to the target.")
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	switch c.ArrivalModel {
	case "", "uniform", "poisson":
	default:
		issues = append(issues, fmt.Sprintf("arrival model %q is not supported", c.ArrivalModel))
	}
	if c.Payload != "" && strings.TrimSpace(c.PayloadFile) != "" {
		issues = append(issues, "payload and payload-file are mutually exclusive")
	}
	if c.JSONOutput && c.YAMLOutput {
		issues = append(issues, "json-output and yaml-output are mutually exclusive")
	}
	if c.Dashboard && (c.JSONOutput || c.YAMLOutput) {
		issues = append(issues, "dashboard cannot be combined with json-output or yaml-output")
	}
	if _, err := threshold.ParseMultiple(c.Thresholds); err != nil {
		issues = append(issues, err.Error())
	}
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Validate reports every problem with the serve configuration at once.
func (c ServeConfig) Validate() error {
	var issues []string
	if strings.TrimSpace(c.Address) == "" {
		issues = append(issues, "address is required")
	}
	issues = append(issues, validateProtocol(c.Protocol)...)
	switch strings.ToLower(c.Mode) {
	case "print", "echo", "discard":
	default:
		issues = append(issues, fmt.Sprintf("mode must be 'print', 'echo' or 'discard', got %q", c.Mode))
	}
	if c.BufferSize < 1 || c.BufferSize > 65535 {
		issues = append(issues, "buffer-size must be between 1 and 65535")
	}
	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Validate checks the global logging options.
func (c LogConfig) Validate() error {
	var issues []string
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		issues = append(issues, fmt.Sprintf("log-level: %v", err))
	}
	switch logger.LogFormat(c.Format) {
	case logger.LogFormatText, logger.LogFormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("log-format must be 'text' or 'json', got %q", c.Format))
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		issues = append(issues, fmt.Sprintf("color must be 'auto', 'always' or 'never', got %q", c.Color))
	}
	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateProtocol(protocol string) []string {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "tcp", "udp":
		return nil
	default:
		return []string{fmt.Sprintf("protocol: must be 'tcp' or 'udp', got %q", protocol)}
	}
}

func validateTracing(t TracingConfig) []string {
	if !t.Enabled() {
		return nil
	}
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be between 0.0 and 1.0")
	}
	return issues
}
