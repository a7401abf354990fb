// Package exitcode provides standardized exit codes for packlint
package exitcode

// Exit codes for the packlint CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	ValidationError = 3
	FileSystemError = 4
	GraphError      = 5
	VCSError        = 6
	InternalError   = 7
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case ValidationError:
		return "Validation error"
	case FileSystemError:
		return "File system error"
	case GraphError:
		return "Content graph error"
	case VCSError:
		return "Version control error"
	case InternalError:
		return "Internal engine error"
	default:
		return "Unknown error"
	}
}
