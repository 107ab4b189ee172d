package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// DeviceRole decides whether this bridge announces kitchen tickets by voice.
type DeviceRole string

const (
	RoleKitchen DeviceRole = "kitchen"
	RoleCashier DeviceRole = "cashier"
)

const DefaultPrinterPort = 9100

// --- Configuration Structures ---

type Config struct {
	AppVersion     string `json:"appVersion" ignored:"true"`
	ServerURL      string `json:"serverUrl" envconfig:"SERVER_URL"`
	RestaurantID   string `json:"restaurantId" envconfig:"RESTAURANT_ID"`
	RestaurantName string `json:"restaurantName" envconfig:"RESTAURANT_NAME"`
	APIKey         string `json:"apiKey" envconfig:"API_KEY"`
	WsURL          string `json:"wsUrl" envconfig:"WS_URL"`

	PollIntervalMs int    `json:"pollIntervalMs" envconfig:"POLL_INTERVAL_MS"`
	AutoPrint      bool   `json:"autoPrint" envconfig:"AUTO_PRINT"`
	PrintersFile   string `json:"printersFile" envconfig:"PRINTERS_FILE"`

	PrintRetryAttempts int `json:"printRetryAttempts" envconfig:"PRINT_RETRY_ATTEMPTS"`
	PrintRetryDelayMs  int `json:"printRetryDelayMs" envconfig:"PRINT_RETRY_DELAY_MS"`
	PrintTimeoutMs     int `json:"printTimeoutMs" envconfig:"PRINT_TIMEOUT_MS"`

	VoiceEnabled  bool       `json:"voiceEnabled" envconfig:"VOICE_ENABLED"`
	DeviceRole    DeviceRole `json:"deviceRole" envconfig:"DEVICE_ROLE"`
	SpeechCommand string     `json:"speechCommand" envconfig:"SPEECH_COMMAND"`

	ListenAddr     string `json:"listenAddr" envconfig:"LISTEN_ADDR"`
	LogLevel       string `json:"logLevel" envconfig:"LOG_LEVEL"`
	LogPretty      bool   `json:"logPretty" envconfig:"LOG_PRETTY"`
	MetricsEnabled bool   `json:"metricsEnabled" envconfig:"METRICS_ENABLED"`
}

// DefaultConfig holds the values used when neither the config file nor the
// environment set a key.
func DefaultConfig() Config {
	return Config{
		ServerURL:          "https://api.restorank.ai",
		RestaurantName:     "RESTORANK",
		PollIntervalMs:     5000,
		AutoPrint:          true,
		PrintersFile:       "config/printers.json",
		PrintRetryAttempts: 3,
		PrintRetryDelayMs:  1000,
		PrintTimeoutMs:     5000,
		VoiceEnabled:       true,
		DeviceRole:         RoleKitchen,
		ListenAddr:         "127.0.0.1:8686",
		LogLevel:           "info",
		MetricsEnabled:     true,
	}
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c Config) PrintRetryDelay() time.Duration {
	return time.Duration(c.PrintRetryDelayMs) * time.Millisecond
}

func (c Config) PrintTimeout() time.Duration {
	return time.Duration(c.PrintTimeoutMs) * time.Millisecond
}

// Printer is one network thermal printer as configured on the server.
type Printer struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	IP          string `json:"ip"`
	Port        int    `json:"port"`
	Description string `json:"description,omitempty"`
	IsEnabled   bool   `json:"isEnabled"`
}

// UnmarshalJSON accepts the port as a number or a numeric string and text
// fields as any scalar.
func (p *Printer) UnmarshalJSON(raw []byte) error {
	raw, err := stringifyKeys(raw, "name", "ip", "description")
	if err != nil {
		return err
	}
	type plain Printer
	aux := struct {
		*plain
		Port Int `json:"port"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}
	p.Port = aux.Port.Or(0)
	return nil
}

// PortOrDefault returns the configured port, 9100 when unset.
func (p Printer) PortOrDefault() int {
	if p.Port <= 0 {
		return DefaultPrinterPort
	}
	return p.Port
}

func (p Printer) Addr() string {
	return p.IP + ":" + strconv.Itoa(p.PortOrDefault())
}
