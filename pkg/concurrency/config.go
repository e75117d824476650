package concurrency

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// FanoutMode selects how fan-out branches dispatch their tasks.
type FanoutMode string

const (
	FanoutModeParallel   FanoutMode = "parallel"
	FanoutModeSequential FanoutMode = "sequential"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	ConfigSourceEnvVar     ConfigSource = "environment_variable"
	ConfigSourceAutoDetect ConfigSource = "auto_detect"
)

// Config holds the concurrency settings for the pipeline and service.
type Config struct {
	// MaxConcurrent bounds simultaneous external task executions
	MaxConcurrent int
	// ServiceWorkers is the number of message-processing workers
	ServiceWorkers int
	// FanoutMode selects parallel or sequential fan-out dispatch
	FanoutMode FanoutMode
	// Source records where MaxConcurrent came from
	Source ConfigSource
	// IsKubernetes is true when running inside a Kubernetes pod
	IsKubernetes bool
	// EffectiveCPUs is the usable CPU count (respects GOMAXPROCS)
	EffectiveCPUs int
}

// LoadConfig resolves concurrency settings with priority:
// environment variables > environment auto-detection.
func LoadConfig() *Config {
	cfg := &Config{
		IsKubernetes:  isKubernetes(),
		EffectiveCPUs: runtime.GOMAXPROCS(0),
	}

	if v := getEnvInt("PERSPECTIVE_MAX_CONCURRENT", 0); v > 0 {
		cfg.MaxConcurrent = v
		cfg.Source = ConfigSourceEnvVar
	} else if mult := getEnvInt("PERSPECTIVE_CONCURRENCY_MULTIPLIER", 0); mult > 0 {
		cfg.MaxConcurrent = cfg.EffectiveCPUs * mult
		cfg.Source = ConfigSourceEnvVar
	} else {
		cfg.MaxConcurrent = defaultMaxConcurrent(cfg.IsKubernetes, cfg.EffectiveCPUs)
		cfg.Source = ConfigSourceAutoDetect
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}

	if v := getEnvInt("PERSPECTIVE_SERVICE_WORKERS", 0); v > 0 {
		cfg.ServiceWorkers = v
	} else {
		cfg.ServiceWorkers = defaultServiceWorkers(cfg.IsKubernetes, cfg.EffectiveCPUs)
	}

	cfg.FanoutMode = FanoutMode(strings.ToLower(os.Getenv("PERSPECTIVE_FANOUT_MODE")))
	if cfg.FanoutMode != FanoutModeSequential {
		cfg.FanoutMode = FanoutModeParallel
	}

	return cfg
}

// isKubernetes detects Kubernetes through the service host variable injected
// into every container.
func isKubernetes() bool {
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}

func defaultMaxConcurrent(isK8s bool, cpus int) int {
	if isK8s {
		// Conservative inside a pod to respect CPU quotas
		return cpus * 2
	}
	return cpus * 4
}

func defaultServiceWorkers(isK8s bool, cpus int) int {
	if isK8s {
		return max(cpus, 4)
	}
	return max(cpus*2, 8)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// String returns a formatted representation of the config for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{MaxConcurrent: %d, ServiceWorkers: %d, FanoutMode: %s, IsK8s: %t, CPUs: %d, Source: %s}",
		c.MaxConcurrent, c.ServiceWorkers, c.FanoutMode, c.IsKubernetes, c.EffectiveCPUs, c.Source,
	)
}
