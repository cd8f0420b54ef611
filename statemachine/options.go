package statemachine

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// CoordinatorConfig holds the environment-tunable settings of a Coordinator.
type CoordinatorConfig struct {
	// Name labels the coordinator in logs and metrics.
	Name string `env:"FSM_COORDINATOR_NAME" envDefault:"default"`

	// Workers is the size of the shared worker pool. Zero means GOMAXPROCS.
	Workers int `env:"FSM_WORKERS" envDefault:"0"`

	// DispatchTimeout bounds blocking Dispatch calls. Zero disables it.
	DispatchTimeout time.Duration `env:"FSM_DISPATCH_TIMEOUT" envDefault:"0s"`
}

var dotenvOnce sync.Once

// LoadCoordinatorConfig reads CoordinatorConfig from the environment, loading
// a .env file first if one is present.
func LoadCoordinatorConfig() (CoordinatorConfig, error) {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	var cfg CoordinatorConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing coordinator config: %w", err)
	}

	return cfg, nil
}

type options struct {
	id        string
	listeners []Listener
	config    CoordinatorConfig
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.config.Workers <= 0 {
		o.config.Workers = runtime.GOMAXPROCS(0)
	}

	if o.config.Name == "" {
		o.config.Name = "default"
	}

	return o
}

// Option configures a Machine or a Coordinator. Options that do not apply to
// the value being built are ignored.
type Option func(*options)

// WithID sets the instance id of a machine. Defaults to a random UUID.
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// WithListener adds a listener. A coordinator listener observes every outcome
// the coordinator dispatches, whichever machine produced it.
func WithListener(l Listener) Option {
	return func(o *options) {
		if l != nil {
			o.listeners = append(o.listeners, l)
		}
	}
}

// WithConfig sets every coordinator setting at once.
func WithConfig(cfg CoordinatorConfig) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithWorkers sets the coordinator's worker pool size.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.config.Workers = n
	}
}

// WithDispatchTimeout bounds blocking coordinator dispatches.
func WithDispatchTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config.DispatchTimeout = d
	}
}

// WithName sets the coordinator name used in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.config.Name = name
	}
}
