package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Config holds the entire service configuration, loaded from the
// environment.
type Config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	// JobStore selects the repository backing the job records. Valid
	// values are "memory" and "redis".
	JobStore string `envconfig:"JOB_STORE" default:"memory"`
	Redis    *Redis

	// VideoBackends is the ordered list of backend names tried when the
	// request asks for automatic selection.
	VideoBackends string `envconfig:"VIDEO_BACKENDS" default:"pollo,imagineart"`

	// MockProviders replaces every external provider with its
	// deterministic mock. Providers whose credentials are missing fall
	// back to mocks regardless of this flag.
	MockProviders bool          `envconfig:"MOCK_PROVIDERS"`
	MockDelay     time.Duration `envconfig:"MOCK_DELAY" default:"50ms"`

	RetryAttempts   int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryBackoff    time.Duration `envconfig:"RETRY_BACKOFF" default:"500ms"`
	RetryBackoffMax time.Duration `envconfig:"RETRY_BACKOFF_MAX" default:"10s"`

	// CallTimeout bounds a single provider call, BackendTimeout the
	// total time spent on one video backend candidate, JobTimeout the
	// wall clock of a whole job.
	CallTimeout    time.Duration `envconfig:"CALL_TIMEOUT" default:"2m"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"5m"`
	JobTimeout     time.Duration `envconfig:"JOB_TIMEOUT" default:"15m"`

	// StageWeights is the progress weight of each pipeline stage, in
	// order script,voice,video,edit,upload. The weights must sum to 100.
	StageWeights string `envconfig:"STAGE_WEIGHTS" default:"10,20,30,25,15"`

	WorkDir string `envconfig:"WORK_DIR" default:"/tmp/video-orchestrator"`

	Pollo      *Pollo
	ImagineArt *ImagineArt
	ElevenLabs *ElevenLabs
	Script     *Script
	Storage    *Storage
}

// Redis carries connection parameters for the redis-backed job store.
type Redis struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB"`
}

// Pollo holds credentials for the Pollo video generation backend.
type Pollo struct {
	Endpoint string `envconfig:"POLLO_ENDPOINT" default:"https://api.pollo.ai/v1"`
	APIKey   string `envconfig:"POLLO_API_KEY"`
	// PollInterval is the delay between generation status checks.
	PollInterval time.Duration `envconfig:"POLLO_POLL_INTERVAL" default:"2s"`
}

// ImagineArt holds credentials for the ImagineArt video generation backend.
type ImagineArt struct {
	Endpoint     string        `envconfig:"IMAGINEART_ENDPOINT" default:"https://api.imagineart.ai/v1"`
	APIKey       string        `envconfig:"IMAGINEART_API_KEY"`
	PollInterval time.Duration `envconfig:"IMAGINEART_POLL_INTERVAL" default:"2s"`
}

// ElevenLabs holds credentials for the voice synthesis provider.
type ElevenLabs struct {
	Endpoint string `envconfig:"ELEVENLABS_ENDPOINT" default:"https://api.elevenlabs.io/v1"`
	APIKey   string `envconfig:"ELEVENLABS_API_KEY"`
}

// Script holds credentials for the chat-completion script writer.
type Script struct {
	Endpoint string `envconfig:"SCRIPT_ENDPOINT" default:"https://api.openai.com/v1"`
	APIKey   string `envconfig:"SCRIPT_API_KEY"`
	Model    string `envconfig:"SCRIPT_MODEL" default:"gpt-4o-mini"`
}

// Storage holds parameters for the S3 upload target.
type Storage struct {
	Bucket    string `envconfig:"STORAGE_BUCKET"`
	Region    string `envconfig:"STORAGE_REGION" default:"us-east-1"`
	KeyPrefix string `envconfig:"STORAGE_KEY_PREFIX" default:"videos"`
}

// Weights is the parsed form of Config.StageWeights.
type Weights struct {
	Script float64
	Voice  float64
	Video  float64
	Edit   float64
	Upload float64
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() *Config {
	var cfg Config
	envconfig.MustProcess("", &cfg)
	return &cfg
}

// Logger builds a logrus logger according to the configured level.
func (c *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", c.LogLevel, err)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger, nil
}

// BackendOrder returns the configured video backend names in fallback
// order.
func (c *Config) BackendOrder() []string {
	parts := strings.Split(c.VideoBackends, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// ParseWeights validates and parses StageWeights.
func (c *Config) ParseWeights() (Weights, error) {
	parts := strings.Split(c.StageWeights, ",")
	if len(parts) != 5 {
		return Weights{}, fmt.Errorf("stage weights %q: want 5 values, got %d", c.StageWeights, len(parts))
	}
	vals := make([]float64, 5)
	var sum float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Weights{}, fmt.Errorf("stage weights %q: %w", c.StageWeights, err)
		}
		vals[i] = v
		sum += v
	}
	if sum != 100 {
		return Weights{}, fmt.Errorf("stage weights %q sum to %v, want 100", c.StageWeights, sum)
	}
	return Weights{
		Script: vals[0],
		Voice:  vals[1],
		Video:  vals[2],
		Edit:   vals[3],
		Upload: vals[4],
	}, nil
}
