package config

// Config holds scribe configuration.
// Stored at: ~/.scribe/config.yaml
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Couch    CouchConfig    `mapstructure:"couch" yaml:"couch"`
	Autosave AutosaveConfig `mapstructure:"autosave" yaml:"autosave"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the address to bind (default: 127.0.0.1)
	Host string `mapstructure:"host" yaml:"host"`
	// Port is the port to listen on (default: 8585)
	Port int `mapstructure:"port" yaml:"port"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	// Backend is "couch" or "sqlite" (default: sqlite)
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Database is the CouchDB database name for documents (default: theses)
	Database string `mapstructure:"database" yaml:"database"`
}

// CouchConfig holds CouchDB container configuration.
type CouchConfig struct {
	// ContainerName is the Docker container name (default: scribe-couch)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: couchdb:3)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 5984)
	Port string `mapstructure:"port" yaml:"port"`
	// Username for CouchDB admin (default: scribe)
	Username string `mapstructure:"username" yaml:"username"`
	// Password for CouchDB admin (supports ${ENV_VAR} syntax)
	Password string `mapstructure:"password" yaml:"password"`
}

// AutosaveConfig controls the debounced document save.
type AutosaveConfig struct {
	// DelaySeconds is the debounce window in seconds (default: 3)
	DelaySeconds int `mapstructure:"delay_seconds" yaml:"delay_seconds"`
}

// Storage backend names.
const (
	BackendSQLite = "sqlite"
	BackendCouch  = "couch"
)

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8585,
		},
		Storage: StorageConfig{
			Backend:  BackendSQLite,
			Database: "theses",
		},
		Couch: CouchConfig{
			ContainerName: "scribe-couch",
			Image:         "couchdb:3",
			Port:          "5984",
			Username:      "scribe",
			Password:      "${SCRIBE_COUCH_PASSWORD}",
		},
		Autosave: AutosaveConfig{
			DelaySeconds: 3,
		},
	}
}

// CouchURL returns the CouchDB server URL from the configured port.
func (c *Config) CouchURL() string {
	return "http://localhost:" + c.Couch.Port
}
