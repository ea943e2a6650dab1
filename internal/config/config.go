package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// DefaultAPIPort is the well-known playback API port
const DefaultAPIPort = 5672

// Backend selects the playback engine implementation
type Backend string

const (
	BackendMPV Backend = "mpv"
	BackendMPD Backend = "mpd"
)

// Config holds application configuration
type Config struct {
	APIPort     int
	DataDir     string
	Backend     Backend
	MPVPath     string
	MPDAddress  string
	MPDPassword string
	AdminAddr   string
	LogLevel    string
	Hostname    string
	ForceEnable bool // enable the API on start regardless of the persisted flag
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// LoadDotEnv loads a .env file if one exists. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load builds the configuration: flags > env > defaults
func Load(args []string) (Config, error) {
	fs := pflag.NewFlagSet("gpmdp-api", pflag.ContinueOnError)
	apiPort := fs.Int("api-port", 0, "Playback API port (overrides GPMDP_API_PORT)")
	dataDir := fs.String("data", "", "Data directory (overrides DATA_DIR)")
	backend := fs.String("backend", "", "Playback backend: mpv or mpd (overrides PLAYBACK_BACKEND)")
	mpvPath := fs.String("mpv", "", "Path to the mpv binary (overrides MPV_PATH)")
	mpdAddr := fs.String("mpd", "", "MPD address host:port (overrides MPD_HOST)")
	adminAddr := fs.String("admin", "", "Admin listen address (overrides ADMIN_ADDR)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	hostname := fs.String("hostname", "", "Name advertised over mDNS (overrides GPMDP_HOSTNAME)")
	forceEnable := fs.Bool("enable", false, "Enable the playback API on start")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DataDir:     getEnv("DATA_DIR", "./data"),
		Backend:     Backend(strings.ToLower(getEnv("PLAYBACK_BACKEND", string(BackendMPV)))),
		MPVPath:     getEnv("MPV_PATH", "mpv"),
		MPDAddress:  getEnv("MPD_HOST", "localhost:6600"),
		MPDPassword: getEnv("MPD_PASSWORD", ""),
		AdminAddr:   getEnv("ADMIN_ADDR", "127.0.0.1:5673"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Hostname:    getEnv("GPMDP_HOSTNAME", ""),
		ForceEnable: *forceEnable,
	}

	port, err := ResolvePort(*apiPort, os.Getenv("GPMDP_API_PORT"))
	if err != nil {
		return Config{}, err
	}
	cfg.APIPort = port

	// Flags override env values if provided
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *backend != "" {
		cfg.Backend = Backend(strings.ToLower(*backend))
	}
	if *mpvPath != "" {
		cfg.MPVPath = *mpvPath
	}
	if *mpdAddr != "" {
		cfg.MPDAddress = *mpdAddr
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *hostname != "" {
		cfg.Hostname = *hostname
	}

	if cfg.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.Hostname = h
		} else {
			cfg.Hostname = "gpmdp"
		}
	}

	switch cfg.Backend {
	case BackendMPV, BackendMPD:
	default:
		return Config{}, fmt.Errorf("unknown playback backend %q", cfg.Backend)
	}

	return cfg, nil
}

// ResolvePort picks the API port: explicit override, then the environment
// value, then DefaultAPIPort. A zero override means unset.
func ResolvePort(override int, env string) (int, error) {
	if override != 0 {
		if override < 0 || override > 65535 {
			return 0, fmt.Errorf("api port %d out of range", override)
		}
		return override, nil
	}
	if env = strings.TrimSpace(env); env != "" {
		port, err := strconv.Atoi(env)
		if err != nil {
			return 0, fmt.Errorf("invalid GPMDP_API_PORT %q: %w", env, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("GPMDP_API_PORT %d out of range", port)
		}
		return port, nil
	}
	return DefaultAPIPort, nil
}
