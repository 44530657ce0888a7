package logger

import "io"

// Option configures a logger built by New.
type Option func(*config)

// Format is the console record encoding. Higher values win when several
// options ask for one.
type Format int

const (
	// FormatText is slog's key=value handler.
	FormatText Format = iota
	// FormatPretty is the charmbracelet/log handler for terminals.
	FormatPretty
	// FormatJSON is slog's JSON handler for collected service logs.
	FormatJSON
)

func WithDebug(debug bool) Option {
	return func(c *config) {
		c.debug = debug
	}
}

// WithPretty selects FormatPretty unless JSON was requested.
func WithPretty(pretty bool) Option {
	return WithFormatIf(pretty, FormatPretty)
}

// WithJSON selects FormatJSON.
func WithJSON(json bool) Option {
	return WithFormatIf(json, FormatJSON)
}

// WithFormatIf raises the console format to f when on is true. Flags map
// onto it directly, so --log-pretty=false never undoes --log-json.
func WithFormatIf(on bool, f Format) Option {
	return func(c *config) {
		if on && f > c.format {
			c.format = f
		}
	}
}

// WithWriter sets the console writer. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.console = w
	}
}

// WithFile mirrors every record as JSON to w, whatever the console format.
// serve uses it for --log-file.
func WithFile(w io.Writer) Option {
	return func(c *config) {
		c.file = w
	}
}

// WithComponent tags every record with component=name.
func WithComponent(name string) Option {
	return func(c *config) {
		c.component = name
	}
}
