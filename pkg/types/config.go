package types

// Config is the resolved server configuration, merged from config files
// and environment overrides by internal/config.
type Config struct {
	// AppName namespaces session keys in the durable store.
	AppName string `json:"appName,omitempty"`

	// Model is the default completion model id (e.g. "gpt-4o").
	Model string `json:"model,omitempty"`

	OpenAI   OpenAIConfig   `json:"openai,omitempty"`
	Database DatabaseConfig `json:"database,omitempty"`
	Memory   MemoryConfig   `json:"memory,omitempty"`
	Server   ServerConfig   `json:"server,omitempty"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR, FATAL.
	LogLevel string `json:"logLevel,omitempty"`
}

// OpenAIConfig configures the completion backend client.
type OpenAIConfig struct {
	APIKey    string `json:"apiKey,omitempty"`
	BaseURL   string `json:"baseUrl,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
}

// DatabaseConfig configures the relational stores.
type DatabaseConfig struct {
	// Path is the sqlite database file. Empty means a file under the
	// process working directory.
	Path string `json:"path,omitempty"`
}

// MemoryConfig configures the long-term memory service client.
type MemoryConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port        int      `json:"port,omitempty"`
	CORSOrigins []string `json:"corsOrigins,omitempty"`
}
