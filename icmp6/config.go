package icmp6

// Config holds configuration for the ICMPv6 engine.
type Config struct {
	// EchoEnabled controls whether the engine answers echo requests and
	// delivers echo replies. When false, both are silently discarded.
	EchoEnabled bool `yaml:"echo_enabled"`

	// ErrorRate limits outbound ICMPv6 error messages, in messages per
	// second. Errors beyond the limit are suppressed, per RFC 4443
	// section 2.4(f). 0 or negative disables error transmission entirely.
	ErrorRate float64 `yaml:"error_rate"`

	// ErrorBurst is the burst size of the error rate limiter.
	ErrorBurst int `yaml:"error_burst"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EchoEnabled: true,
		ErrorRate:   1,
		ErrorBurst:  10,
	}
}
