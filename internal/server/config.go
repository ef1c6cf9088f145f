package server

// DBConfig holds database configuration for the API server.
type DBConfig struct {
	Driver      string
	DSN         string
	TablePrefix string
	// PolicyPath points at the optional field widget policy file.
	PolicyPath string
	// ValidateOnUpdate re-validates case data on field updates.
	ValidateOnUpdate bool
}
