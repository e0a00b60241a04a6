package environment

import "strings"

// ParseBrowser infers the browser family from a user agent string.
// Order matters: Edge and Opera agents also mention Chrome, and Chrome agents mention Safari.
func ParseBrowser(ua string) string {
	u := strings.ToLower(ua)
	switch {
	case u == "":
		return ""
	case strings.Contains(u, "edg/"):
		return "Edge"
	case strings.Contains(u, "chrome") && !strings.Contains(u, "chromium"):
		return "Chrome"
	case strings.Contains(u, "firefox") || strings.Contains(u, "fxios"):
		return "Firefox"
	case strings.Contains(u, "safari") && !strings.Contains(u, "chrome"):
		return "Safari"
	case strings.Contains(u, "opera") || strings.Contains(u, "opr/"):
		return "Opera"
	}
	return ""
}

// ParseOS infers the operating system from a user agent string
func ParseOS(ua string) string {
	u := strings.ToLower(ua)
	switch {
	case u == "":
		return ""
	case strings.Contains(u, "win"):
		return "Windows"
	case strings.Contains(u, "mac"):
		return "macOS"
	case strings.Contains(u, "linux"):
		return "Linux"
	case strings.Contains(u, "android"):
		return "Android"
	case strings.Contains(u, "iphone") || strings.Contains(u, "ipad"):
		return "iOS"
	}
	return ""
}
