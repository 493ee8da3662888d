package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Format selects the log output encoding.
type Format string

const (
	// FormatJSON suits log aggregation in deployed environments.
	FormatJSON Format = "json"
	// FormatText suits a developer terminal.
	FormatText Format = "text"
)

// Environment names recognized by WithEnvironment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Option configures logger creation.
type Option func(*config)

func WithLevel(l slog.Level) Option {
	return func(c *config) { c.level = l }
}

// WithFormat sets the output format. An unknown format panics so a
// misconfigured logger stops startup instead of failing at runtime.
func WithFormat(f Format) Option {
	return func(c *config) {
		switch f {
		case FormatJSON, FormatText:
			c.format = f
		default:
			panic(fmt.Errorf("invalid log format %q: must be %q or %q", f, FormatJSON, FormatText))
		}
	}
}

// WithOutput redirects log output. Nil writers are ignored.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.output = w
		}
	}
}

// WithHandlerOptions overrides the slog handler options wholesale.
func WithHandlerOptions(opts *slog.HandlerOptions) Option {
	return func(c *config) {
		if opts != nil {
			c.handlerOptions = opts
		}
	}
}

// WithAttr attaches static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(c *config) {
		if len(attrs) > 0 {
			c.attrs = append(c.attrs, attrs...)
		}
	}
}

// envPreset applies the level/format combination for an environment and
// tags records with the service name. An empty service leaves the config
// untouched.
func envPreset(c *config, service, env string, level slog.Level, format Format) {
	if service == "" {
		return
	}
	c.level = level
	c.format = format
	if c.output == nil {
		c.output = os.Stdout
	}
	c.attrs = append(c.attrs,
		slog.String("service", service),
		slog.String("env", env),
	)
}

// WithDevelopment: text output at debug level.
func WithDevelopment(service string) Option {
	return func(c *config) { envPreset(c, service, EnvDevelopment, slog.LevelDebug, FormatText) }
}

// WithProduction: JSON output at info level.
func WithProduction(service string) Option {
	return func(c *config) { envPreset(c, service, EnvProduction, slog.LevelInfo, FormatJSON) }
}

// WithStaging: JSON output at info level, tagged as staging.
func WithStaging(service string) Option {
	return func(c *config) { envPreset(c, service, EnvStaging, slog.LevelInfo, FormatJSON) }
}

// WithEnvironment picks the preset matching env; anything unrecognized
// falls back to development.
func WithEnvironment(env string, service string) Option {
	return func(c *config) {
		switch env {
		case EnvProduction, "prod":
			WithProduction(service)(c)
		case EnvStaging, "stage":
			WithStaging(service)(c)
		default:
			WithDevelopment(service)(c)
		}
	}
}

// SetAsDefault installs l as the process-wide slog default.
func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

type config struct {
	level          slog.Level
	format         Format
	output         io.Writer
	attrs          []slog.Attr
	handlerOptions *slog.HandlerOptions
}

// New builds a slog.Logger. Without options it logs JSON at info level
// to stdout.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	handlerOpts := cfg.handlerOptions
	if handlerOpts == nil {
		handlerOpts = &slog.HandlerOptions{Level: cfg.level}
	}

	var handler slog.Handler
	if cfg.format == FormatText {
		handler = slog.NewTextHandler(cfg.output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(cfg.output, handlerOpts)
	}

	if len(cfg.attrs) > 0 {
		handler = handler.WithAttrs(cfg.attrs)
	}

	return slog.New(handler)
}
