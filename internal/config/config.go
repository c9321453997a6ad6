package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Device: identity sent with GETCONF/CHECKIN.
type Device struct {
	UserID     int64  `yaml:"user_id"`
	Model      string `yaml:"model"`
	OS         string `yaml:"os"`
	NetType    uint16 `yaml:"net_type"`
	AppVersion string `yaml:"app_version"`
	Lang       string `yaml:"lang"`
	MCCMNC     string `yaml:"mccmnc"`
}

// Config holds the client configuration.
type Config struct {
	BookingAddr   string        `yaml:"booking_addr"`
	BookingHost   string        `yaml:"booking_host"`
	TicketAddr    string        `yaml:"ticket_addr"`
	PublicKeyFile string        `yaml:"public_key_file"`
	CachePath     string        `yaml:"cache_path"`
	Timeout       time.Duration `yaml:"timeout"`
	Device        Device        `yaml:"device"`
}

// Default matches the production services and an Android 9.7.2 client.
func Default() *Config {
	return &Config{
		BookingAddr: "booking-loco.kakao.com:443",
		BookingHost: "booking-loco.kakao.com",
		TicketAddr:  "ticket-loco.kakao.com:443",
		CachePath:   filepath.Join(dataDir(), "cache.db"),
		Timeout:     30 * time.Second,
		Device: Device{
			UserID:     1,
			OS:         "android",
			AppVersion: "9.7.2",
			Lang:       "ko",
			MCCMNC:     "45005",
		},
	}
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".loco"
	}
	return filepath.Join(home, ".loco")
}

// DefaultPath: ~/.loco/config.yaml
func DefaultPath() string {
	return filepath.Join(dataDir(), "config.yaml")
}

// Load reads YAML at path (missing file = defaults), then applies LOCO_* env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr("LOCO_BOOKING_ADDR", &cfg.BookingAddr)
	setStr("LOCO_BOOKING_HOST", &cfg.BookingHost)
	setStr("LOCO_TICKET_ADDR", &cfg.TicketAddr)
	setStr("LOCO_PUBLIC_KEY", &cfg.PublicKeyFile)
	setStr("LOCO_CACHE", &cfg.CachePath)
	setStr("LOCO_OS", &cfg.Device.OS)
	setStr("LOCO_APP_VERSION", &cfg.Device.AppVersion)
	setStr("LOCO_LANG", &cfg.Device.Lang)
	setStr("LOCO_MCCMNC", &cfg.Device.MCCMNC)
	setStr("LOCO_MODEL", &cfg.Device.Model)
	if v := os.Getenv("LOCO_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LOCO_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("LOCO_USER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("LOCO_USER_ID: %w", err)
		}
		cfg.Device.UserID = id
	}
	return nil
}
