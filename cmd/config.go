package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"bookmybox-cli/bookings"
	"bookmybox-cli/storage"

	"github.com/joho/godotenv"
)

const (
	envAPIURL  = "BOOKMYBOX_API_URL"
	envStateDB = "BOOKMYBOX_STATE_DB"
)

type Config struct {
	APIURL            string   `json:"api_url"`
	StateDB           string   `json:"state_db,omitempty"`
	DefaultLocation   string   `json:"default_location"`
	FavouriteSports   []string `json:"favourite_sports"`
	PreferredDuration int      `json:"preferred_duration"`
}

// loadConfig reads .env from the working directory, then the JSON config
// file, then lets the environment override both.
func loadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	path, err := storage.ConfigPath()
	if err != nil {
		return Config{}, err
	}
	conf, err := readConfigFile(path)
	if err != nil {
		return Config{}, err
	}
	applyEnv(&conf)
	return conf, nil
}

func readConfigFile(path string) (Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, fmt.Errorf("config path is a directory: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var conf Config
	if err := json.NewDecoder(file).Decode(&conf); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return conf, nil
}

func applyEnv(conf *Config) {
	if value := strings.TrimSpace(os.Getenv(envAPIURL)); value != "" {
		conf.APIURL = value
	}
	if value := strings.TrimSpace(os.Getenv(envStateDB)); value != "" {
		conf.StateDB = value
	}
}

func (c Config) duration() int {
	if c.PreferredDuration < bookings.MinDuration || c.PreferredDuration > bookings.MaxDuration {
		return bookings.MinDuration
	}
	return c.PreferredDuration
}
