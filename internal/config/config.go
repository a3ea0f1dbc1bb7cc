// Package config loads server configuration from JSONC files and the
// environment.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/atrium-ai/atrium/pkg/types"
)

const (
	// DefaultAppName namespaces session keys when no config overrides it.
	DefaultAppName = "agents"
	// DefaultModel is used when neither config file nor environment
	// names a completion model.
	DefaultModel = "gpt-4o"
	// DefaultPort is the HTTP listen port.
	DefaultPort = 8000
)

// Load resolves configuration from multiple sources (priority order):
//  1. Global config (~/.config/atrium/atrium.json[c])
//  2. Project config (<directory>/atrium.json[c])
//  3. ATRIUM_CONFIG file override
//  4. Environment variables (highest priority)
func Load(directory string) (*types.Config, error) {
	cfg := &types.Config{
		AppName: DefaultAppName,
		Model:   DefaultModel,
		Server: types.ServerConfig{
			Port:        DefaultPort,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
	}

	loaded := make(map[string]bool)
	loadOnce := func(path, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, cfg, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		globalDir := filepath.Join(home, ".config", "atrium")
		loadOnce(filepath.Join(globalDir, "atrium.json"), globalDir)
		loadOnce(filepath.Join(globalDir, "atrium.jsonc"), globalDir)
	}

	if directory != "" {
		loadOnce(filepath.Join(directory, "atrium.json"), directory)
		loadOnce(filepath.Join(directory, "atrium.jsonc"), directory)
	}

	if configPath := os.Getenv("ATRIUM_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, cfg *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Strip JSONC comments, then resolve placeholders.
	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileCfg types.Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}

	mergeConfig(cfg, &fileCfg)
	return nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		rel := filePattern.FindStringSubmatch(match)[1]
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, rel)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(content))
	})

	return []byte(str)
}

// mergeConfig overlays src on top of dst, field by field.
func mergeConfig(dst, src *types.Config) {
	if src.AppName != "" {
		dst.AppName = src.AppName
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.OpenAI.APIKey != "" {
		dst.OpenAI.APIKey = src.OpenAI.APIKey
	}
	if src.OpenAI.BaseURL != "" {
		dst.OpenAI.BaseURL = src.OpenAI.BaseURL
	}
	if src.OpenAI.MaxTokens != 0 {
		dst.OpenAI.MaxTokens = src.OpenAI.MaxTokens
	}
	if src.Database.Path != "" {
		dst.Database.Path = src.Database.Path
	}
	if src.Memory.APIKey != "" {
		dst.Memory.APIKey = src.Memory.APIKey
	}
	if src.Memory.BaseURL != "" {
		dst.Memory.BaseURL = src.Memory.BaseURL
	}
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if len(src.Server.CORSOrigins) > 0 {
		dst.Server.CORSOrigins = src.Server.CORSOrigins
	}
}

// applyEnvOverrides applies environment variables on top of file config.
func applyEnvOverrides(cfg *types.Config) {
	if v := os.Getenv("ATRIUM_APP_NAME"); v != "" {
		cfg.AppName = v
	}
	if v := os.Getenv("ATRIUM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("ATRIUM_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SUPERMEMORY_API_KEY"); v != "" {
		cfg.Memory.APIKey = v
	}
	if v := os.Getenv("SUPERMEMORY_BASE_URL"); v != "" {
		cfg.Memory.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ATRIUM_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.Server.CORSOrigins = origins
		}
	}
	if v := os.Getenv("ATRIUM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
