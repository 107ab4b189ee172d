package utils

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
)

// EnvPrefix is prepended to every environment override, e.g. BRIDGE_SERVER_URL.
const EnvPrefix = "BRIDGE"

// LoadConfig builds the bridge configuration: defaults, then the JSON config
// file, then environment variables (an optional .env file is loaded first).
// When the config file does not exist an interactive setup reads answers
// from in and saves them.
func LoadConfig(ctx context.Context, in io.Reader, out io.Writer) (model.Config, error) {
	config, err := LoadOrSetupConfig(ctx, in, out)
	if err != nil {
		return config, err
	}

	_ = godotenv.Load()
	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return config, fmt.Errorf("failed to read environment: %w", err)
	}
	config.AppVersion = model.StringFromContext(ctx, model.ContextAppVersion)

	if err := ValidateConfig(config); err != nil {
		return config, err
	}
	return config, nil
}

func LoadOrSetupConfig(ctx context.Context, in io.Reader, out io.Writer) (model.Config, error) {
	config := model.DefaultConfig()
	configFile := model.StringFromContext(ctx, model.ContextConfigFile)

	// Ensure config directory exists
	configDir := filepath.Dir(configFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return config, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		config.AppVersion = model.StringFromContext(ctx, model.ContextAppVersion)
		fmt.Fprintln(out, "--- Initial Setup ---")
		reader := bufio.NewReader(in)

		config.ServerURL = prompt(reader, out, "Enter Server URL", config.ServerURL)
		config.WsURL = prompt(reader, out, "Enter push WebSocket URL (optional)", "")
		config.APIKey = prompt(reader, out, "Enter Server API Key (optional)", "")
		config.RestaurantID = prompt(reader, out, "Enter Restaurant ID", "")
		config.RestaurantName = prompt(reader, out, "Enter Restaurant name for receipts", config.RestaurantName)
		config.DeviceRole = model.DeviceRole(prompt(reader, out, "Device role (kitchen/cashier)", string(config.DeviceRole)))

		if err := SaveConfig(configFile, config); err != nil {
			return config, err
		}
		fmt.Fprintln(out, "Configuration saved.")
		return config, nil
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return config, err
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse %s: %w", configFile, err)
	}
	return config, nil
}

func SaveConfig(configFile string, config model.Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configFile, data, 0644)
}

// ValidateConfig rejects configurations the bridge cannot run with.
func ValidateConfig(c model.Config) error {
	switch {
	case strings.TrimSpace(c.ServerURL) == "":
		return &model.ConfigurationError{Reason: "server URL is required"}
	case strings.TrimSpace(c.RestaurantID) == "":
		return &model.ConfigurationError{Reason: "restaurant ID is required"}
	case c.PollIntervalMs <= 0:
		return &model.ConfigurationError{Reason: "poll interval must be positive"}
	case c.DeviceRole != model.RoleKitchen && c.DeviceRole != model.RoleCashier:
		return &model.ConfigurationError{Reason: fmt.Sprintf("unknown device role %q", c.DeviceRole)}
	}
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s (default: %s): ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	answer, _ := reader.ReadString('\n')
	if answer = strings.TrimSpace(answer); answer != "" {
		return answer
	}
	return def
}
