// Package config loads the taskpool command configuration from a YAML
// file, an optional .env file and TASKPOOL_* environment variables, in
// that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/azargarov/taskpool"
)

const envPrefix = "TASKPOOL_"

// Config holds all configuration for the taskpool command.
type Config struct {
	// Name identifies the scheduler in logs and traces.
	Name string `yaml:"name"`

	// Workers is the number of workers added at startup.
	Workers int `yaml:"workers"`

	// TaskIDStart and WorkerIDStart are the first ids handed out; both
	// must be at least 1.
	TaskIDStart    int           `yaml:"taskIdStart"`
	WorkerIDStart  int           `yaml:"workerIdStart"`
	ProcessingTime time.Duration `yaml:"processingTime"`

	// HTTPAddr is where the API listens.
	HTTPAddr string `yaml:"httpAddr"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// LoopCPU pins the scheduler goroutine to a CPU; -1 leaves it unpinned.
	LoopCPU int `yaml:"loopCpu"`

	Tracing Tracing `yaml:"tracing"`
	Notify  Notify  `yaml:"notify"`
}

// Tracing configures the OpenTelemetry stdout exporter.
type Tracing struct {
	Enabled bool `yaml:"enabled"`

	// File receives the spans; empty means stdout.
	File string `yaml:"file"`
}

// Notify configures asynchronous event delivery.
type Notify struct {
	Buffer   int           `yaml:"buffer"`
	Attempts int           `yaml:"attempts"`
	Initial  time.Duration `yaml:"initial"`
	Max      time.Duration `yaml:"max"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Name:            "taskpool",
		Workers:         2,
		TaskIDStart:     1001,
		WorkerIDStart:   1,
		ProcessingTime:  5 * time.Second,
		HTTPAddr:        ":8080",
		ShutdownTimeout: 10 * time.Second,
		LoopCPU:         -1,
		Notify: Notify{
			Buffer:   256,
			Attempts: 3,
			Initial:  50 * time.Millisecond,
			Max:      2 * time.Second,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), the dotenv file at envFile (skipped when missing) and
// the process environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Name = getEnvWithDefault("NAME", c.Name)
	c.HTTPAddr = getEnvWithDefault("HTTP_ADDR", c.HTTPAddr)
	c.Tracing.File = getEnvWithDefault("TRACE_FILE", c.Tracing.File)

	ints := []struct {
		key string
		dst *int
	}{
		{"WORKERS", &c.Workers},
		{"TASK_ID_START", &c.TaskIDStart},
		{"WORKER_ID_START", &c.WorkerIDStart},
		{"LOOP_CPU", &c.LoopCPU},
		{"NOTIFY_BUFFER", &c.Notify.Buffer},
		{"NOTIFY_ATTEMPTS", &c.Notify.Attempts},
	}
	for _, it := range ints {
		if v, ok := os.LookupEnv(envPrefix + it.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, it.key, err)
			}
			*it.dst = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"PROCESSING_TIME", &c.ProcessingTime},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
		{"NOTIFY_INITIAL", &c.Notify.Initial},
		{"NOTIFY_MAX", &c.Notify.Max},
	}
	for _, it := range durations {
		if v, ok := os.LookupEnv(envPrefix + it.key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, it.key, err)
			}
			*it.dst = d
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "TRACING"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sTRACING: %w", envPrefix, err)
		}
		c.Tracing.Enabled = b
	}
	return nil
}

// Validate rejects values the scheduler cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	case c.TaskIDStart < 1:
		return fmt.Errorf("taskIdStart must be at least 1, got %d", c.TaskIDStart)
	case c.WorkerIDStart < 1:
		return fmt.Errorf("workerIdStart must be at least 1, got %d", c.WorkerIDStart)
	case c.ProcessingTime <= 0:
		return fmt.Errorf("processingTime must be positive, got %s", c.ProcessingTime)
	case c.LoopCPU < -1:
		return fmt.Errorf("loopCpu must be -1 or a cpu index, got %d", c.LoopCPU)
	case c.HTTPAddr == "":
		return errors.New("httpAddr is required")
	}
	return nil
}

// SchedulerOptions maps the scheduler part of c onto taskpool.Options.
// Notify, Metrics and Ctx are left for the caller.
func (c *Config) SchedulerOptions() taskpool.Options {
	return taskpool.Options{
		Name:           c.Name,
		TaskIDStart:    c.TaskIDStart,
		WorkerIDStart:  c.WorkerIDStart,
		ProcessingTime: c.ProcessingTime,
		PinLoop:        c.LoopCPU >= 0,
		LoopCPU:        c.LoopCPU,
	}
}

// getEnvWithDefault returns the TASKPOOL_-prefixed variable or def.
func getEnvWithDefault(key, def string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}
