package model

import "fmt"

// LogSource identifies the kind of server the watched log file belongs to.
// It is threaded into classifier prompts so the backend knows what to look
// for.
type LogSource string

const (
	SourceTomcat  LogSource = "tomcat"
	SourceNginx   LogSource = "nginx"
	SourceDotnet  LogSource = "dotnet"
	SourceGeneric LogSource = "generic"
)

// ParseLogSource validates a configured source name.
func ParseLogSource(s string) (LogSource, error) {
	switch LogSource(s) {
	case SourceTomcat, SourceNginx, SourceDotnet, SourceGeneric:
		return LogSource(s), nil
	case "":
		return SourceGeneric, nil
	default:
		return "", fmt.Errorf("unknown log source: %q", s)
	}
}

// Context returns the hint passed to the classifier for this source.
func (s LogSource) Context() string {
	switch s {
	case SourceTomcat:
		return "Java/Tomcat (look for JVM errors, Spring Security failures and leaked UUIDs)"
	case SourceDotnet:
		return ".NET Core (look for middleware exceptions and ASP.NET attacks)"
	case SourceNginx:
		return "Nginx (look for path scans and 4xx/5xx errors)"
	default:
		return "Generic server"
	}
}

// String returns the display name used in alerts.
func (s LogSource) String() string {
	switch s {
	case SourceTomcat:
		return "Tomcat"
	case SourceNginx:
		return "Nginx"
	case SourceDotnet:
		return "Dotnet"
	default:
		return "Generic"
	}
}
