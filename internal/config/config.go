package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultServerURL is the official UniCred API used when no override is set.
const defaultServerURL = "https://api.unicred.education"

type Config struct {
	// ServerURL is the base URL of the UniCred API, without a trailing slash.
	// Request paths are joined as `ServerURL + "/v1/..."`.
	ServerURL string

	// UnicredHome is the directory where the client stores local state.
	UnicredHome string
	// SessionFile is the path to the encrypted session file.
	SessionFile string
	// DeviceKeyFile is the path to the per-device storage key.
	DeviceKeyFile string

	// Debug enables verbose logging.
	Debug bool
}

// Load loads configuration from environment and defaults
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	unicredHome := os.Getenv("UNICRED_HOME_DIR")
	if unicredHome == "" {
		unicredHome = filepath.Join(homeDir, ".unicred")
	}

	// Ensure unicred home exists
	if err := os.MkdirAll(unicredHome, 0700); err != nil {
		return nil, fmt.Errorf("failed to create unicred home: %w", err)
	}

	serverURL := os.Getenv("UNICRED_SERVER_URL")
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	serverURL = strings.TrimRight(serverURL, "/")

	debug := getenvBool("DEBUG") || getenvBool("UNICRED_DEBUG")

	return &Config{
		ServerURL:     serverURL,
		UnicredHome:   unicredHome,
		SessionFile:   filepath.Join(unicredHome, "session.enc"),
		DeviceKeyFile: filepath.Join(unicredHome, "device.key"),
		Debug:         debug,
	}, nil
}

func getenvBool(name string) bool {
	val := os.Getenv(name)
	return val == "true" || val == "1"
}
