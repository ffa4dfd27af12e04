package internal

import (
	goerrors "errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	PolicyConstant    = "constant"
	PolicyExponential = "exponential"
)

type Config struct {
	ServerURL      string `env:"SERVER_URL,default=http://localhost:4040" validate:"required,url"`
	WebsocketURL   string `env:"WEBSOCKET_URL,default=ws://localhost:4040" validate:"required,url"`
	AuthToken      string `env:"AUTH_TOKEN,required=true" validate:"required"`
	AuthCookieName string `env:"AUTH_COOKIE_NAME,default=token" validate:"required"`
	SelfID         string `env:"SELF_ID"`
	SelfUsername   string `env:"SELF_USERNAME"`

	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY,default=2s" validate:"gt=0"`
	ReconnectPolicy   string        `env:"RECONNECT_POLICY,default=constant" validate:"oneof=constant exponential"`
	ReconnectMaxDelay time.Duration `env:"RECONNECT_MAX_DELAY,default=30s" validate:"gtefield=ReconnectDelay"`
	DialTimeout       time.Duration `env:"DIAL_TIMEOUT,default=10s" validate:"gt=0"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	PongTimeout       time.Duration `env:"PONG_TIMEOUT,default=60s" validate:"gt=0"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT,default=15s" validate:"gt=0"`

	EventBufferSize      int           `env:"EVENT_BUFFER_SIZE,default=256" validate:"min=1"`
	SubscriberBufferSize int           `env:"SUBSCRIBER_BUFFER_SIZE,default=64" validate:"min=1"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s" validate:"gt=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`

	HistoryCachePath string `env:"HISTORY_CACHE_PATH"`
	LimitMessages    *int   `env:"LIMIT_MESSAGES" validate:"omitempty,min=1"`
	EnableSearch     bool   `env:"ENABLE_SEARCH,default=false"`
	SearchIndexPath  string `env:"SEARCH_INDEX_PATH"`
	LogLevel         string `env:"LOG_LEVEL,required=true" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// Load reads an optional .env file, then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !goerrors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("reading env file failed: %w", err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, err
	}
	return config, config.Validate()
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
