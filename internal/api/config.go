package api

// Config holds server configuration.
type Config struct {
	Port           int
	Auth           AuthConfig // Authentication configuration
	TLS            TLSConfig  // TLS configuration
	AllowedOrigins []string   // CORS allowed origins (empty = allow all)
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   // Enable HTTPS
	CertFile string // Path to TLS certificate file
	KeyFile  string // Path to TLS private key file
}
