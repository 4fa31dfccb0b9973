package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the service.
type Config struct {
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Git struct {
		// Token is injected into clone URLs for known hosts when the URL
		// carries no credential of its own. Falls back to GITHUB_TOKEN /
		// GIT_AUTH_TOKEN via AutomaticEnv.
		Token        string        `mapstructure:"token"`
		CloneTimeout time.Duration `mapstructure:"clone_timeout"`
	} `mapstructure:"git"`
	LLM struct {
		// URL of the code-review backend. Empty disables the LLM analyzer
		// tier; this is not a startup error.
		URL    string `mapstructure:"url"`
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"llm"`
	Validation struct {
		// StepTimeout bounds a single step's execution. Zero disables the
		// bound, matching the historical behavior.
		StepTimeout time.Duration `mapstructure:"step_timeout"`
		Workers     int           `mapstructure:"workers"`
	} `mapstructure:"validation"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// LoadConfig loads the configuration from a file and the environment.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("git.clone_timeout", 5*time.Minute)
	viper.SetDefault("validation.workers", 4)

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry the day.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Git.Token == "" {
		config.Git.Token = firstNonEmpty(viper.GetString("GITHUB_TOKEN"), viper.GetString("GIT_AUTH_TOKEN"))
	}
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = viper.GetString("LLM_API_KEY")
	}

	return &config, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
