package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "MAILSIGHT"

// DefaultPath is where the configuration lives when nothing else is given.
const DefaultPath = "mailsight.yaml"

// AuthConfig controls the OAuth consent flow and token persistence.
type AuthConfig struct {
	CredentialsFile string        `mapstructure:"credentials_file" yaml:"credentials_file"`
	TokenFile       string        `mapstructure:"token_file" yaml:"token_file"`
	TokenStore      string        `mapstructure:"token_store" yaml:"token_store"` // file or keyring
	KeyringService  string        `mapstructure:"keyring_service" yaml:"keyring_service"`
	CallbackPort    int           `mapstructure:"callback_port" yaml:"callback_port"`
	ConsentTimeout  time.Duration `mapstructure:"consent_timeout" yaml:"consent_timeout"`
}

// MailConfig selects the mail backend and the two listings the tool uses.
type MailConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider"` // gmail or imap
	SpamLabel  string `mapstructure:"spam_label" yaml:"spam_label"`
	SpamMax    int64  `mapstructure:"spam_max" yaml:"spam_max"`
	InboxLabel string `mapstructure:"inbox_label" yaml:"inbox_label"`
	InboxMax   int64  `mapstructure:"inbox_max" yaml:"inbox_max"`
}

// IMAPConfig is only read when MailConfig.Provider is "imap".
type IMAPConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Port        string `mapstructure:"port" yaml:"port"`
	Username    string `mapstructure:"username" yaml:"username"`
	PasswordEnv string `mapstructure:"password_env" yaml:"password_env"`
	TLS         bool   `mapstructure:"tls" yaml:"tls"`
	// Mailboxes maps a label (SPAM, INBOX) to a server mailbox name.
	Mailboxes map[string]string `mapstructure:"mailboxes" yaml:"mailboxes"`
}

type WordCloudConfig struct {
	Width    int    `mapstructure:"width" yaml:"width"`
	Height   int    `mapstructure:"height" yaml:"height"`
	MaxWords int    `mapstructure:"max_words" yaml:"max_words"`
	Output   string `mapstructure:"output" yaml:"output"`
}

// LLMConfig configures the summary and sentiment completions.
type LLMConfig struct {
	Provider             string  `mapstructure:"provider" yaml:"provider"` // openai or ollama
	Model                string  `mapstructure:"model" yaml:"model"`
	BaseURL              string  `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens            int64   `mapstructure:"max_tokens" yaml:"max_tokens"`
	SummaryTemperature   float64 `mapstructure:"summary_temperature" yaml:"summary_temperature"`
	SentimentTemperature float64 `mapstructure:"sentiment_temperature" yaml:"sentiment_temperature"`
}

// Config is the full application configuration.
type Config struct {
	LogFile   string          `mapstructure:"log_file" yaml:"log_file"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Mail      MailConfig      `mapstructure:"mail" yaml:"mail"`
	IMAP      IMAPConfig      `mapstructure:"imap" yaml:"imap"`
	WordCloud WordCloudConfig `mapstructure:"wordcloud" yaml:"wordcloud"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
}

var defaults = map[string]any{
	"log_file":                  "mailsight.log",
	"auth.credentials_file":     "credentials.json",
	"auth.token_file":           "token.json",
	"auth.token_store":          "file",
	"auth.keyring_service":      "mailsight",
	"auth.callback_port":        8501,
	"auth.consent_timeout":      "5m",
	"mail.provider":             "gmail",
	"mail.spam_label":           "SPAM",
	"mail.spam_max":             30,
	"mail.inbox_label":          "INBOX",
	"mail.inbox_max":            10,
	"imap.port":                 "993",
	"imap.password_env":         "IMAP_PASSWORD",
	"imap.tls":                  true,
	"imap.mailboxes":            map[string]string{"spam": "Junk", "inbox": "INBOX"},
	"wordcloud.width":           800,
	"wordcloud.height":          400,
	"wordcloud.max_words":       50,
	"wordcloud.output":          "wordcloud.png",
	"llm.provider":              "openai",
	"llm.model":                 "gpt-4o-mini",
	"llm.base_url":              "",
	"llm.max_tokens":            256,
	"llm.summary_temperature":   0.5,
	"llm.sentiment_temperature": 0.0,
	"imap.host":                 "",
	"imap.username":             "",
}

// Manager handles loading and accessing the configuration.
type Manager struct {
	filePath string
	cfg      *Config
	mu       sync.RWMutex
}

// NewManager loads filePath, creating it with defaults if it does not exist.
func NewManager(filePath string) (*Manager, error) {
	m := &Manager{filePath: filePath}
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// Load (re)reads the configuration file. Environment variables such as
// MAILSIGHT_MAIL_PROVIDER override file values.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := newViper(m.filePath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading config %s: %w", m.filePath, err)
		}
		if err := writeDefaults(v, m.filePath); err != nil {
			return err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", m.filePath, err)
	}
	// Keys read back from the file come out lower-cased; defaults and
	// overrides must look the same.
	mailboxes := make(map[string]string, len(cfg.IMAP.Mailboxes))
	for label, name := range cfg.IMAP.Mailboxes {
		mailboxes[strings.ToLower(label)] = name
	}
	cfg.IMAP.Mailboxes = mailboxes

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", m.filePath, err)
	}
	m.cfg = cfg
	return nil
}

func writeDefaults(v *viper.Viper, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory %s: %w", dir, err)
		}
	}
	if err := v.SafeWriteConfigAs(path); err != nil {
		var exists viper.ConfigFileAlreadyExistsError
		if errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("writing default config to %s: %w", path, err)
	}
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := *m.cfg
	c.IMAP.Mailboxes = make(map[string]string, len(m.cfg.IMAP.Mailboxes))
	for k, v := range m.cfg.IMAP.Mailboxes {
		c.IMAP.Mailboxes[k] = v
	}
	return c
}

// Path is the file the manager reads.
func (m *Manager) Path() string { return m.filePath }

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.Auth.TokenStore {
	case "file", "keyring":
	default:
		return fmt.Errorf("auth.token_store must be file or keyring, got %q", c.Auth.TokenStore)
	}
	switch c.Mail.Provider {
	case "gmail":
	case "imap":
		if c.IMAP.Host == "" || c.IMAP.Username == "" {
			return errors.New("imap.host and imap.username are required for the imap provider")
		}
	default:
		return fmt.Errorf("mail.provider must be gmail or imap, got %q", c.Mail.Provider)
	}
	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("llm.provider must be openai or ollama, got %q", c.LLM.Provider)
	}
	if c.Mail.SpamMax <= 0 || c.Mail.InboxMax <= 0 {
		return errors.New("mail.spam_max and mail.inbox_max must be positive")
	}
	if c.WordCloud.Width <= 0 || c.WordCloud.Height <= 0 || c.WordCloud.MaxWords <= 0 {
		return errors.New("wordcloud width, height and max_words must be positive")
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.New("llm.max_tokens must be positive")
	}
	return nil
}
