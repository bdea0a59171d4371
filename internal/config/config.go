// Package config handles runtime configuration. Values come from
// PAGELAPSE_* environment variables and may be overridden by CLI flags.
// Malformed numeric or duration values are fatal before any capture runs.
package config

import (
	"os"
	"strconv"
	"time"

	apperrors "github.com/pagelapse/pagelapse/internal/errors"
	"github.com/pagelapse/pagelapse/internal/fingerprint"
	"github.com/pagelapse/pagelapse/internal/snapshot"
)

// Defaults for the configuration surface.
const (
	DefaultTheme       = string(snapshot.ThemeLight)
	DefaultFormat      = "mp4"
	DefaultFrameRate   = 1.0
	DefaultWidth       = 960
	DefaultHeight      = 720
	DefaultLoadTimeout = 30 * time.Second
	DefaultMaxInterval = 24 * time.Hour
)

// Config holds all runtime settings.
type Config struct {
	OutDir string // required; must exist
	URL    string // required

	HashSize  int    // fingerprint granularity
	Theme     string // light or dark
	Threshold int    // duplicate distance threshold; negative = always retain

	Format    string  // output container extension
	MaxFrames int     // frames per segment; 0 = unbounded
	FrameRate float64 // 0 = frames-only mode

	Infinite    bool
	Interval    time.Duration // 0 = single-shot
	MaxInterval time.Duration

	ViewportWidth  int
	ViewportHeight int
	LoadTimeout    time.Duration

	HTTPAddr string // status server address; empty = disabled
}

// Load reads configuration from the environment. Parse failures are
// CodeConfig errors and abort startup.
func Load() (*Config, error) {
	c := &Config{
		OutDir:   os.Getenv("PAGELAPSE_OUT_DIR"),
		URL:      os.Getenv("PAGELAPSE_URL"),
		Theme:    getEnv("PAGELAPSE_THEME", DefaultTheme),
		Format:   getEnv("PAGELAPSE_FORMAT", DefaultFormat),
		HTTPAddr: os.Getenv("PAGELAPSE_HTTP_ADDR"),
	}

	var err error
	if c.HashSize, err = getEnvInt("PAGELAPSE_HASH_SIZE", fingerprint.DefaultSize); err != nil {
		return nil, err
	}
	if c.Threshold, err = getEnvInt("PAGELAPSE_THRESHOLD", 0); err != nil {
		return nil, err
	}
	if c.MaxFrames, err = getEnvInt("PAGELAPSE_MAX_FRAMES", 0); err != nil {
		return nil, err
	}
	if c.FrameRate, err = getEnvFloat("PAGELAPSE_FRAME_RATE", DefaultFrameRate); err != nil {
		return nil, err
	}
	if c.Infinite, err = getEnvBool("PAGELAPSE_INFINITE", false); err != nil {
		return nil, err
	}
	if c.Interval, err = getEnvDuration("PAGELAPSE_INTERVAL", 0); err != nil {
		return nil, err
	}
	if c.MaxInterval, err = getEnvDuration("PAGELAPSE_MAX_INTERVAL", DefaultMaxInterval); err != nil {
		return nil, err
	}
	if c.ViewportWidth, err = getEnvInt("PAGELAPSE_VIEWPORT_W", DefaultWidth); err != nil {
		return nil, err
	}
	if c.ViewportHeight, err = getEnvInt("PAGELAPSE_VIEWPORT_H", DefaultHeight); err != nil {
		return nil, err
	}
	if c.LoadTimeout, err = getEnvDuration("PAGELAPSE_LOAD_TIMEOUT", DefaultLoadTimeout); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks required fields and value ranges after flag overrides.
func (c *Config) Validate() error {
	if c.OutDir == "" {
		return apperrors.New(apperrors.CodeConfig, "output directory is required")
	}
	if c.URL == "" {
		return apperrors.New(apperrors.CodeConfig, "target URL is required")
	}
	if c.Theme != string(snapshot.ThemeLight) && c.Theme != string(snapshot.ThemeDark) {
		return apperrors.Newf(apperrors.CodeConfig, "invalid theme %q (light or dark)", c.Theme)
	}
	if c.HashSize <= 0 {
		return apperrors.Newf(apperrors.CodeConfig, "hash size must be positive, got %d", c.HashSize)
	}
	if c.FrameRate < 0 {
		return apperrors.Newf(apperrors.CodeConfig, "frame rate must be >= 0, got %v", c.FrameRate)
	}
	if c.MaxFrames < 0 {
		return apperrors.Newf(apperrors.CodeConfig, "max frames must be >= 0, got %d", c.MaxFrames)
	}
	if c.Interval < 0 || c.MaxInterval <= 0 {
		return apperrors.New(apperrors.CodeConfig, "intervals must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.CodeConfig, "%s=%q is not an integer", key, v)
	}
	return i, nil
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.CodeConfig, "%s=%q is not a number", key, v)
	}
	return f, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	switch v {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, apperrors.Newf(apperrors.CodeConfig, "%s=%q is not a boolean", key, v)
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare numbers are accepted as seconds.
		if secs, serr := strconv.ParseFloat(v, 64); serr == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return 0, apperrors.Wrapf(err, apperrors.CodeConfig, "%s=%q is not a duration", key, v)
	}
	return d, nil
}
