// Package constant holds application-wide identifiers that never change at runtime.
package constant

const (
	// Aniplay is the application name used for paths, env prefixes and CLI branding.
	Aniplay = "aniplay"
	// Version is the current application version.
	Version = "0.2.0"
	// UserAgent is sent by scripted providers unless they override it.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Build metadata, injected with -ldflags.
var (
	BuiltAt  = "unknown"
	BuiltBy  = "unknown"
	Revision = "unknown"
)
