package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/naveenspark/mulic2/pkg/domain"
)

// Settings is the console's environment configuration.
type Settings struct {
	ConfigLocation string `env:"MULIC2_CONFIG" default:"config.json"`
	BackendHost    string `env:"MULIC2_BACKEND_HOST" default:"127.0.0.1"`
	APIURL         string `env:"MULIC2_API_URL"`
	Home           string `env:"MULIC2_HOME"`
	LogLevel       string `env:"LOG_LEVEL" default:"info"`
	LogFormat      string `env:"LOG_FORMAT" default:"text"`
}

// LoadSettings reads .env (if present) and the environment.
func LoadSettings() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var s Settings
	if err := env.Load(&s, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if s.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		s.Home = filepath.Join(home, ".mulic2")
	}
	return &s, nil
}

// ResolveAPIURL returns the backend API root: the explicit override if set,
// otherwise http://BackendHost:api_port.
func (s *Settings) ResolveAPIURL(ports domain.PortConfig) string {
	if s.APIURL != "" {
		return s.APIURL
	}
	return "http://" + net.JoinHostPort(s.BackendHost, strconv.Itoa(ports.BackendAPI))
}

// ConsoleURL returns the web console address, or "" when no frontend port is configured.
func (s *Settings) ConsoleURL(ports domain.PortConfig) string {
	if ports.Frontend == 0 {
		return ""
	}
	return "http://" + net.JoinHostPort(s.BackendHost, strconv.Itoa(ports.Frontend))
}

// Source returns the config.json source named by ConfigLocation.
func (s *Settings) Source() Source {
	return SourceFor(s.ConfigLocation)
}
