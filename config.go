package observe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/rip-projects/pants-observe/internal/layering"
	"github.com/rip-projects/pants-observe/keypath"
	"github.com/rip-projects/pants-observe/notify"
)

// ErrInvalidConfig is returned for configuration values that cannot be
// applied.
var ErrInvalidConfig = errors.New("observe: invalid config")

// Config is the file form of the Context options.
//
//	interval: 300ms
//	strategy: poll          # poll | native
//	getter: walk            # walk | compiled | expr
//	filter_engine: expr     # expr | cel | js
//	program_cache_size: 128
//	manual_ticks: false
//	activity_channel: observe
type Config struct {
	Interval         string `yaml:"interval"`
	Strategy         string `yaml:"strategy"`
	Getter           string `yaml:"getter"`
	FilterEngine     string `yaml:"filter_engine"`
	ProgramCacheSize int    `yaml:"program_cache_size"`
	ManualTicks      bool   `yaml:"manual_ticks"`
	ActivityChannel  string `yaml:"activity_channel"`
}

// DefaultConfig returns the configuration New uses when given no options.
func DefaultConfig() Config {
	return Config{
		Interval:         notify.DefaultInterval.String(),
		Strategy:         notify.StrategyPoll,
		Getter:           "walk",
		FilterEngine:     EngineExpr,
		ProgramCacheSize: DefaultProgramCacheSize,
		ActivityChannel:  "observe",
	}
}

// LoadConfig decodes a YAML document. Unknown fields are rejected and unset
// fields keep their defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(r, yaml.DisallowUnknownField())
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: decode: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseConfig decodes a YAML document held in memory.
func ParseConfig(data []byte) (Config, error) {
	return LoadConfig(bytes.NewReader(data))
}

// LoadConfigFile reads and decodes the YAML file at path.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("observe: open config: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// configLayer is one partially specified configuration file. Nil fields are
// left to weaker layers.
type configLayer struct {
	Interval         *string `yaml:"interval"`
	Strategy         *string `yaml:"strategy"`
	Getter           *string `yaml:"getter"`
	FilterEngine     *string `yaml:"filter_engine"`
	ProgramCacheSize *int    `yaml:"program_cache_size"`
	ManualTicks      *bool   `yaml:"manual_ticks"`
	ActivityChannel  *string `yaml:"activity_channel"`
}

func (l configLayer) apply(cfg Config) Config {
	if l.Interval != nil {
		cfg.Interval = *l.Interval
	}
	if l.Strategy != nil {
		cfg.Strategy = *l.Strategy
	}
	if l.Getter != nil {
		cfg.Getter = *l.Getter
	}
	if l.FilterEngine != nil {
		cfg.FilterEngine = *l.FilterEngine
	}
	if l.ProgramCacheSize != nil {
		cfg.ProgramCacheSize = *l.ProgramCacheSize
	}
	if l.ManualTicks != nil {
		cfg.ManualTicks = *l.ManualTicks
	}
	if l.ActivityChannel != nil {
		cfg.ActivityChannel = *l.ActivityChannel
	}
	return cfg
}

// LoadConfigFiles reads several YAML files, each allowed to set only some
// fields, and layers them over DefaultConfig. Later files win.
func LoadConfigFiles(paths ...string) (Config, error) {
	layers := make([]configLayer, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("observe: read config: %w", err)
		}
		var layer configLayer
		decoder := yaml.NewDecoder(bytes.NewReader(data), yaml.DisallowUnknownField())
		if err := decoder.Decode(&layer); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
		// strongest first
		layers[len(paths)-1-i] = layer
	}
	cfg := layering.Merge(layers...).apply(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first value that cannot be applied.
func (c Config) Validate() error {
	if _, err := c.interval(); err != nil {
		return err
	}
	switch c.Strategy {
	case "", notify.StrategyPoll, notify.StrategyNative:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	if _, err := c.getter(); err != nil {
		return err
	}
	switch c.FilterEngine {
	case "", EngineExpr, EngineCEL, EngineJS:
	default:
		return fmt.Errorf("%w: unknown filter engine %q", ErrInvalidConfig, c.FilterEngine)
	}
	if c.ProgramCacheSize < 0 {
		return fmt.Errorf("%w: program_cache_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Options converts the configuration into Context options.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	interval, _ := c.interval()
	getter, _ := c.getter()

	opts := []Option{
		WithStrategy(c.Strategy),
		WithInterval(interval),
		WithFilterEngine(c.FilterEngine),
	}
	if getter != nil {
		opts = append(opts, WithGetter(getter))
	}
	if c.ProgramCacheSize > 0 {
		opts = append(opts, WithProgramCacheSize(c.ProgramCacheSize))
	}
	if c.ManualTicks {
		opts = append(opts, WithManualTicks())
	}
	if c.ActivityChannel != "" {
		opts = append(opts, WithActivityChannel(c.ActivityChannel))
	}
	return opts, nil
}

// NewFromConfig builds a Context from cfg followed by any extra options.
func NewFromConfig(cfg Config, extra ...Option) (*Context, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return New(append(opts, extra...)...), nil
}

func (c Config) interval() (time.Duration, error) {
	if c.Interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0, fmt.Errorf("%w: interval: %v", ErrInvalidConfig, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: interval must not be negative", ErrInvalidConfig)
	}
	return d, nil
}

func (c Config) getter() (keypath.Getter, error) {
	switch c.Getter {
	case "":
		return nil, nil
	case "walk":
		return keypath.WalkGetter{}, nil
	case "compiled":
		return keypath.CompiledGetter{}, nil
	case "expr":
		return keypath.ExprGetter{}, nil
	}
	return nil, fmt.Errorf("%w: unknown getter %q", ErrInvalidConfig, c.Getter)
}
