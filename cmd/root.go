package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spigell/scout-responder/internal/bizreach"
	"github.com/spigell/scout-responder/internal/ledger"
	"github.com/spigell/scout-responder/internal/pipeline"
	"github.com/spigell/scout-responder/internal/scout"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "scout-responder"

	defaultAuthFile  = "auth.json"
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

type Config struct {
	AuthFile    string `mapstructure:"auth-file" validate:"required"`
	CI          bool   `mapstructure:"ci"`
	DumpDir     string `mapstructure:"dump-dir"`
	MetricsFile string `mapstructure:"metrics-file"`

	Browser        BrowserConfig   `mapstructure:"browser"`
	Account        AccountConfig   `mapstructure:"account"`
	Site           bizreach.Site   `mapstructure:"site"`
	PlatformTiming bizreach.Timing `mapstructure:"platform-timing"`
	PipelineTiming pipeline.Timing `mapstructure:"pipeline-timing"`
	Scout          scout.Config    `mapstructure:"scout"`
	AI             AIConfig        `mapstructure:"ai"`
	Ledger         LedgerConfig    `mapstructure:"ledger"`
}

type BrowserConfig struct {
	UserAgent     string        `mapstructure:"user-agent"`
	ExecPath      string        `mapstructure:"exec-path"`
	ActionTimeout time.Duration `mapstructure:"action-timeout" validate:"gte=0"`
	LoginTimeout  time.Duration `mapstructure:"login-timeout" validate:"gte=0"`
}

type AccountConfig struct {
	Email        string `mapstructure:"email" json:"-"`
	Password     string `mapstructure:"password" json:"-"`
	PasswordFile string `mapstructure:"password-file"`
}

type AIConfig struct {
	Provider string       `mapstructure:"provider" validate:"omitempty,oneof=gemini"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength int    `mapstructure:"max-log-length" validate:"gte=0"`
}

type LedgerConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	CSVFile string        `mapstructure:"csv-file"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Media   string        `mapstructure:"media"`
	Sender  string        `mapstructure:"sender"`
}

func defaultConfig() Config {
	return Config{
		AuthFile: defaultAuthFile,
		Browser: BrowserConfig{
			UserAgent:     defaultUserAgent,
			ActionTimeout: 15 * time.Second,
			LoginTimeout:  15 * time.Second,
		},
		Site:           bizreach.DefaultSite(),
		PlatformTiming: bizreach.DefaultTiming(),
		PipelineTiming: pipeline.DefaultTiming(),
		Scout:          scout.DefaultConfig(),
		AI: AIConfig{
			Provider: "gemini",
			Gemini:   GeminiConfig{MaxRetries: 3, MaxLogLength: 200},
		},
		Ledger: LedgerConfig{
			CSVFile: ledger.DefaultCSVPath,
			Timeout: 30 * time.Second,
			Media:   ledger.DefaultMedia,
			Sender:  ledger.DefaultSender,
		},
	}
}

var envBindings = map[string]string{
	"auth-file":              "SCOUT_AUTH_FILE",
	"ci":                     "CI",
	"ai.gemini.api-key":      "GEMINI_API_KEY",
	"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
	"ledger.url":             "GAS_WEB_APP_URL",
	"account.email":          "BIZREACH_EMAIL",
	"account.password":       "BIZREACH_PASSWORD",
	"account.password-file":  "BIZREACH_PASSWORD_FILE",
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "scout-responder evaluates BizReach candidates with Gemini and sends scout messages to the good ones",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is scout-responder.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// The version command works without any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every key has a default, so a missing file is fine. A broken one is not.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			log.Fatal(err)
		}
	}
}

// getConfig decodes viper settings over the defaults and validates the result.
func getConfig() (*Config, error) {
	config := defaultConfig()
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
