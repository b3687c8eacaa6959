package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"

	GroqBaseURL   = "https://api.groq.com/openai/v1"
	GroqModel     = "llama-3.1-8b-instant"
	DefaultAddr   = ":8080"
	DefaultLogDir = "logs"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Chat      ChatConfig      `yaml:"chat"`
	Providers ProvidersConfig `yaml:"providers"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Debug     bool            `yaml:"debug"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// AllowedOrigins is checked on websocket upgrades. Empty allows same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ChatConfig struct {
	// Endpoint is the backend chat URL the terminal client posts to.
	Endpoint string `yaml:"endpoint"`
	// Timeout for a gateway call, Go duration format. Empty keeps the transport default.
	Timeout string `yaml:"timeout"`
	// DenyList phrases mark a remote reply as unusable. Defaults apply when empty.
	DenyList           []string `yaml:"deny_list"`
	MaxContextMessages int      `yaml:"max_context_messages"`
	// TranscriptsPath enables the SQLite transcript archive.
	TranscriptsPath string `yaml:"transcripts_path"`
}

type ProvidersConfig struct {
	Primary   PrimaryProvider   `yaml:"primary"`
	Secondary SecondaryProvider `yaml:"secondary"`
}

// PrimaryProvider is an OpenAI-compatible chat completions API.
type PrimaryProvider struct {
	Name      string `yaml:"name"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
}

// SecondaryProvider is Gemini via the genai SDK.
type SecondaryProvider struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

type KnowledgeConfig struct {
	// DataPath overrides the bundled portfolio tables with a YAML file.
	DataPath        string `yaml:"data_path"`
	RefreshInterval string `yaml:"refresh_interval"`
	Watch           bool   `yaml:"watch"`
}

type CacheConfig struct {
	TTL string `yaml:"ttl"`
}

type LoggingConfig struct {
	Dir    string `yaml:"dir"`
	Level  string `yaml:"level"`
	Stderr bool   `yaml:"stderr"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Server: ServerConfig{ListenAddr: DefaultAddr},
		Chat: ChatConfig{
			Endpoint:           "http://localhost:8080/api/chat",
			MaxContextMessages: 20,
		},
		Providers: ProvidersConfig{
			Primary: PrimaryProvider{Name: ProviderOpenAI},
		},
		Knowledge: KnowledgeConfig{RefreshInterval: "5m"},
		Cache:     CacheConfig{TTL: "10m"},
		Logging:   LoggingConfig{Dir: DefaultLogDir, Level: "info"},
	}
}

// DefaultPath returns $HOME/.portfoliochat/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(homeDir, ".portfoliochat", "config.yaml"), nil
}

// Load reads configuration from file with environment variable overrides.
// A missing file at the default location is not an error.
func Load(configPath string) (cfg Config, err error) {
	cfg = Default()

	path := configPath
	if path == "" {
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "failed to parse config file: %s", path)
		}
	case os.IsNotExist(err) && configPath == "":
		err = nil
	case os.IsNotExist(err):
		return cfg, errors.Errorf("config file not found: %s (run 'portfoliochat config init' to create)", path)
	default:
		return cfg, errors.Wrapf(err, "failed to read config file: %s", path)
	}

	cfg.applyEnvOverrides()

	if err = cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORTFOLIOCHAT_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("PORTFOLIOCHAT_ENDPOINT"); v != "" {
		c.Chat.Endpoint = v
	}
	if v := os.Getenv("PORTFOLIOCHAT_DATA"); v != "" {
		c.Knowledge.DataPath = v
	}

	// GROQ_API_KEY switches an unset primary to Groq's OpenAI-compatible API.
	if v := os.Getenv("GROQ_API_KEY"); v != "" && c.Providers.Primary.APIKey == "" {
		c.Providers.Primary.APIKey = v
		if c.Providers.Primary.BaseURL == "" {
			c.Providers.Primary.Name = ProviderGroq
			c.Providers.Primary.BaseURL = GroqBaseURL
			if c.Providers.Primary.Model == "" {
				c.Providers.Primary.Model = GroqModel
			}
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Providers.Primary.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Providers.Secondary.APIKey = v
	}
}

// Validate checks durations and fills defaults.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultAddr
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = DefaultLogDir
	}
	if c.Providers.Primary.Name == "" {
		c.Providers.Primary.Name = ProviderOpenAI
	}
	if c.Chat.MaxContextMessages < 0 {
		return errors.New("chat.max_context_messages must not be negative")
	}

	for name, value := range map[string]string{
		"chat.timeout":               c.Chat.Timeout,
		"knowledge.refresh_interval": c.Knowledge.RefreshInterval,
		"cache.ttl":                  c.Cache.TTL,
	} {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", name)
		}
		if d < 0 {
			return errors.Errorf("%s must not be negative", name)
		}
	}

	if c.Knowledge.Watch && c.Knowledge.DataPath == "" {
		return errors.New("knowledge.watch requires knowledge.data_path")
	}
	return nil
}

// ChatTimeout returns the gateway timeout, zero for the transport default.
func (c *Config) ChatTimeout() time.Duration {
	return parseDuration(c.Chat.Timeout)
}

// RefreshInterval returns the knowledge polling interval, zero to disable.
func (c *Config) RefreshInterval() time.Duration {
	return parseDuration(c.Knowledge.RefreshInterval)
}

// CacheTTL returns the response cache TTL, zero to disable.
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL)
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// InitConfig writes the default configuration to configPath (or the default path).
func InitConfig(configPath string) (path string, err error) {
	path = configPath
	if path == "" {
		path, err = DefaultPath()
		if err != nil {
			return path, err
		}
	}

	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0750); err != nil {
		return path, errors.Wrapf(err, "failed to create config directory: %s", dir)
	}

	if _, err = os.Stat(path); err == nil {
		return path, errors.Errorf("config file already exists: %s", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return path, errors.Wrap(err, "failed to marshal default config")
	}

	if err = os.WriteFile(path, data, 0600); err != nil {
		return path, errors.Wrapf(err, "failed to write config file: %s", path)
	}
	return path, nil
}
