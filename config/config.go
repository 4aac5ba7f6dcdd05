// Package config loads the node's configuration surface (spec §4.F) from
// environment variables, optionally seeded from a .env file via
// github.com/joho/godotenv - the ambient config mechanism cmd/ entry points
// use instead of hardcoding flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config mirrors node.Option's configuration surface (spec §4.F table) in
// a form cmd/ entry points can load once at startup.
type Config struct {
	AETitle             string
	IP                  string
	Port                int
	RequireCallingAET   []string
	RootDataDirectory   string
	ProcessingDirectory string
	LogLevel            string
	LogPath             string
	DisableWireLogger   bool
}

// Load reads a .env file if present (its absence is not an error) and then
// populates Config from the environment, applying defaults for anything
// unset.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	port, err := getEnvInt("DICOMNODE_PORT", 11112)
	if err != nil {
		return nil, err
	}
	disableWireLogger, err := getEnvBool("DICOMNODE_DISABLE_WIRE_LOGGER", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		AETitle:             getEnv("DICOMNODE_AE_TITLE", "PIPELINE"),
		IP:                  getEnv("DICOMNODE_IP", "0.0.0.0"),
		Port:                port,
		RequireCallingAET:   getEnvList("DICOMNODE_REQUIRE_CALLING_AET"),
		RootDataDirectory:   getEnv("DICOMNODE_ROOT_DATA_DIRECTORY", ""),
		ProcessingDirectory: getEnv("DICOMNODE_PROCESSING_DIRECTORY", ""),
		LogLevel:            getEnv("DICOMNODE_LOG_LEVEL", "info"),
		LogPath:             getEnv("DICOMNODE_LOG_PATH", ""),
		DisableWireLogger:   disableWireLogger,
	}, nil
}

// Address returns the "<ip>:<port>" dial string node.Node.ListenAndServe
// expects.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.IP, c.Port)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getEnvList(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
