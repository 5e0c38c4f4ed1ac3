package health

import (
	"regexp"
	"strings"
)

// Pre-compiled patterns stripped from error text before it reaches a Status
// message. Health output is served over HTTP and mirrored to dashboards, so
// broker URLs, file paths, and credentials must not survive in it.
var (
	httpURLRegex     = regexp.MustCompile(`https?://[^\s]+`)
	natsURLRegex     = regexp.MustCompile(`nats://[^\s]+`)
	wsURLRegex       = regexp.MustCompile(`wss?://[^\s]+`)
	unixPathRegex    = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	windowsPathRegex = regexp.MustCompile(`[A-Z]:\\[^:\s]+`)
	ipAddrRegex      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex        = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex  = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// sanitizeErrorMessage removes potentially sensitive information from error
// text. Applied automatically by FromSnapshot and FromError; there is no
// opt-out.
//
// Replacements:
//   - URLs (http://, https://, nats://, ws://, wss://) become [URL]
//   - File paths (Unix and Windows) become [PATH]
//   - IP addresses become [IP]
//   - Port numbers (:4222) become [PORT]
//   - Credential assignments (password=X, token=X, ...) become [REDACTED]
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}

	sanitized := err

	// URLs first: they contain paths, ports, and sometimes credentials.
	sanitized = httpURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = natsURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = wsURLRegex.ReplaceAllString(sanitized, "[URL]")

	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = windowsPathRegex.ReplaceAllString(sanitized, "[PATH]")

	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	// Credential patterns are matched case-insensitively but replaced in the
	// original casing.
	lower := strings.ToLower(sanitized)
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") ||
		strings.Contains(lower, "key") || strings.Contains(lower, "secret") ||
		strings.Contains(lower, "credential") {
		sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	}

	return sanitized
}

// FromError builds a status from an error, sanitizing its text. A nil error
// yields a healthy status.
func FromError(component string, err error) Status {
	if err == nil {
		return NewHealthy(component, "operating normally")
	}
	return NewUnhealthy(component, sanitizeErrorMessage(err.Error()))
}
