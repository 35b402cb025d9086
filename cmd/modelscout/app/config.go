package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/modelscout/modelscout/pkg/constants"
)

// Config holds the application configuration loaded from flags, environment
// variables, .env files, and the config file.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Output  string

	// Config file
	ConfigFile string

	// Scout configuration
	StorageDir     string
	StatePath      string
	UpdateInterval time.Duration

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// apiKeyEnv maps registered provider names to their conventional API key
// environment variables.
var apiKeyEnv = map[string]string{
	"openai":             "OPENAI_API_KEY",
	"groq":               "GROQ_API_KEY",
	"mistral":            "MISTRAL_API_KEY",
	"anthropic":          "ANTHROPIC_API_KEY",
	"google":             "GOOGLE_API_KEY",
	"huggingface":        "HUGGINGFACE_API_KEY",
	"artificialanalysis": "ARTIFICIALANALYSIS_API_KEY",
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (applied later by cobra)
//  2. Environment variables (MODELSCOUT_ prefix)
//  3. .env files
//  4. Config file (~/.modelscout.yaml)
//  5. Defaults
func LoadConfig() (*Config, error) {
	// .env files load before Viper binds the environment.
	loadEnvFiles()

	viper.SetEnvPrefix("modelscout")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.AddConfigPath(".")
			viper.SetConfigType("yaml")
			viper.SetConfigName(".modelscout")
		}
	}

	// A missing config file is not an error.
	_ = viper.ReadInConfig()

	config := &Config{
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),
		NoColor: viper.GetBool("no-color"),
		Output:  viper.GetString("output"),

		ConfigFile: viper.ConfigFileUsed(),

		StorageDir:     viper.GetString("storage_dir"),
		StatePath:      viper.GetString("state_path"),
		UpdateInterval: viper.GetDuration("update_interval"),

		LogLevel:  getEnvOrDefault("MODELSCOUT_LOG_LEVEL", ""),
		LogFormat: getEnvOrDefault("MODELSCOUT_LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("MODELSCOUT_LOG_OUTPUT", "stderr"),
	}

	if config.StorageDir == "" {
		config.StorageDir = constants.DefaultStorageDir
	}
	if config.UpdateInterval == 0 {
		config.UpdateInterval = constants.DefaultUpdateInterval
	}

	return config, nil
}

// APIKey returns the configured API key for a provider, or "" when the
// provider is unknown or no key is set.
func (c *Config) APIKey(provider string) string {
	env, ok := apiKeyEnv[provider]
	if !ok {
		return ""
	}
	return os.Getenv(env)
}

// UpdateFromFlags applies parsed command flags. Flags take precedence over
// config file and environment values.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, output, logLevel, logFormat, storageDir string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if output != "" {
		c.Output = output
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if logFormat != "" {
		c.LogFormat = logFormat
	}
	if storageDir != "" {
		c.StorageDir = storageDir
	}
}

// loadEnvFiles loads environment variables from .env files. .env.local
// loads last so it overrides .env.
func loadEnvFiles() {
	envFiles := []string{
		".env",
		".env.local",
	}
	for _, envFile := range envFiles {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
