package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the proxy's process-wide configuration. It is loaded once in
// main and passed down by value/pointer; nothing in the proxy reaches back
// into the environment after startup.
type Config struct {
	Env  string
	Port string

	UpstreamURL string
	UpstreamKey string

	ListenPath string
	Debug      bool

	AudioCommitDebounce time.Duration
	AudioCommitMinBytes int

	SessionUpdatedTimeout time.Duration
	OutboundQueueSize     int
}

// Load reads configuration from the environment. It returns an error when
// the upstream credential is missing: refuse to start rather than run
// without one.
func Load() (*Config, error) {
	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnv("LISTEN_PORT", "8080"),
		UpstreamURL: getEnv("UPSTREAM_URL", "wss://api.openai.com/v1/realtime"),
		UpstreamKey: getEnv("UPSTREAM_API_KEY", ""),
		ListenPath:  getEnv("LISTEN_PATH", "/openai"),
		Debug:       getEnv("DEBUG", "false") == "true",

		AudioCommitDebounce: getDuration("AUDIO_COMMIT_DEBOUNCE_MS", 250*time.Millisecond),
		// 3200 bytes is a deliberately conservative default (100ms of 16kHz
		// 16-bit mono PCM): a burst shorter than this is not committed on its
		// own; the debounce timer keeps re-arming and its bytes are carried
		// into the commit of a later burst once the running total reaches it.
		AudioCommitMinBytes:   getInt("AUDIO_COMMIT_MIN_BYTES", 3200),
		SessionUpdatedTimeout: getDuration("SESSION_UPDATED_TIMEOUT_S", 15*time.Second),
		OutboundQueueSize:     getInt("OUTBOUND_QUEUE_SIZE", 256),
	}

	if cfg.UpstreamKey == "" {
		return nil, fmt.Errorf("UPSTREAM_API_KEY is required")
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

// getDuration reads key as a count of milliseconds when it ends in _MS, or
// seconds otherwise, defaulting to defaultValue on absence or malformed
// input.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	if len(key) > 3 && key[len(key)-3:] == "_MS" {
		return time.Duration(n) * time.Millisecond
	}
	return time.Duration(n) * time.Second
}
