package config

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultListenAddr        = "127.0.0.1:3099"
	defaultPollInterval      = 1 * time.Second
	defaultVolumeInterval    = 250 * time.Millisecond
	defaultCallTimeout       = 2 * time.Second
	defaultRefreshThrottle   = 5 * time.Second
	defaultRecencyWindow     = 1 * time.Second
	defaultPostDispatchDelay = 300 * time.Millisecond
	defaultEventSource       = "native"
	defaultMixerTool         = "auto"
)

// defaultBrandPriority ranks display names for selection tie-breaking,
// highest priority first. Substring match, case-insensitive.
var defaultBrandPriority = []string{
	"spotify",
	"zen",
	"firefox",
	"chromium",
	"chrome",
	"vlc",
	"mpv",
}

// AppConfig holds the daemon configuration, read once from the environment
type AppConfig struct {
	logger *zap.Logger

	listenAddr        string
	pollInterval      time.Duration
	volumeInterval    time.Duration
	callTimeout       time.Duration
	refreshThrottle   time.Duration
	recencyWindow     time.Duration
	postDispatchDelay time.Duration
	brandPriority     []string
	eventSource       string
	mixerTool         string
}

// NewAppConfig creates a new application configuration instance
func NewAppConfig(logger *zap.Logger) *AppConfig {
	c := &AppConfig{
		logger:            logger,
		listenAddr:        envString("MEDIAD_LISTEN_ADDR", defaultListenAddr),
		pollInterval:      envDuration(logger, "MEDIAD_POLL_INTERVAL", defaultPollInterval),
		volumeInterval:    envDuration(logger, "MEDIAD_VOLUME_POLL_INTERVAL", defaultVolumeInterval),
		callTimeout:       envDuration(logger, "MEDIAD_CALL_TIMEOUT", defaultCallTimeout),
		refreshThrottle:   envDuration(logger, "MEDIAD_REFRESH_THROTTLE", defaultRefreshThrottle),
		recencyWindow:     envDuration(logger, "MEDIAD_RECENCY_WINDOW", defaultRecencyWindow),
		postDispatchDelay: envDuration(logger, "MEDIAD_POST_DISPATCH_DELAY", defaultPostDispatchDelay),
		brandPriority:     envList("MEDIAD_BRAND_PRIORITY", defaultBrandPriority),
		eventSource:       envString("MEDIAD_EVENT_SOURCE", defaultEventSource),
		mixerTool:         envString("MEDIAD_MIXER_TOOL", defaultMixerTool),
	}

	logger.Info("Configuration loaded",
		zap.String("listenAddr", c.listenAddr),
		zap.Duration("pollInterval", c.pollInterval),
		zap.Duration("volumeInterval", c.volumeInterval),
		zap.String("eventSource", c.eventSource),
		zap.String("mixerTool", c.mixerTool),
		zap.Strings("brandPriority", c.brandPriority))

	return c
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(logger *zap.Logger, key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Warn("Invalid duration in environment, using default",
			zap.String("key", key),
			zap.String("value", v))
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// GetListenAddr returns the address the display bridge listens on
func (c *AppConfig) GetListenAddr() string { return c.listenAddr }

// GetPollInterval returns the metadata poll cadence
func (c *AppConfig) GetPollInterval() time.Duration { return c.pollInterval }

// GetVolumeInterval returns the system-volume poll cadence
func (c *AppConfig) GetVolumeInterval() time.Duration { return c.volumeInterval }

// GetCallTimeout returns the bound applied to every external bus/mixer call
func (c *AppConfig) GetCallTimeout() time.Duration { return c.callTimeout }

// GetRefreshThrottle returns the minimum spacing between forced full
// re-queries of the same player
func (c *AppConfig) GetRefreshThrottle() time.Duration { return c.refreshThrottle }

// GetRecencyWindow returns the lastUpdated delta above which the fresher
// record wins selection
func (c *AppConfig) GetRecencyWindow() time.Duration { return c.recencyWindow }

// GetPostDispatchDelay returns how long after a control dispatch the
// out-of-band resync fires
func (c *AppConfig) GetPostDispatchDelay() time.Duration { return c.postDispatchDelay }

// GetBrandPriority returns the ranked brand list for selection tie-breaking
func (c *AppConfig) GetBrandPriority() []string { return c.brandPriority }

// GetEventSource returns "native" (in-process signal subscription) or
// "monitor" (spawned bus monitor tool plus text parser)
func (c *AppConfig) GetEventSource() string { return c.eventSource }

// GetMixerTool returns the forced mixer tool name, or "auto" to detect
func (c *AppConfig) GetMixerTool() string { return c.mixerTool }
