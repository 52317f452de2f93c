// Package config loads tracker settings from .env files and the process
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	visionforge "github.com/swdee/go-visionforge"
	"github.com/swdee/go-visionforge/match"
)

// Environment variables read by Apply
const (
	EnvHorizontalTracking  = "VF_HORIZONTAL_TRACKING"
	EnvVerticalTracking    = "VF_VERTICAL_TRACKING"
	EnvHorizontalExpansion = "VF_HORIZONTAL_EXPANSION"
	EnvVerticalExpansion   = "VF_VERTICAL_EXPANSION"
	EnvDetectorConfidence  = "VF_DETECTOR_CONFIDENCE"
	EnvMatchConfidence     = "VF_MATCH_CONFIDENCE"
	EnvEuclideanDistance   = "VF_EUCLIDEAN_DISTANCE"
	EnvMatchMethod         = "VF_MATCH_METHOD"
	EnvStopOnStaleInput    = "VF_STOP_ON_STALE_INPUT"
	EnvDetectionPeriod     = "VF_DETECTION_PERIOD"
	EnvAdaptivePeriod      = "VF_ADAPTIVE_PERIOD"
	EnvSchedulerCPUs       = "VF_SCHEDULER_CPUS"
)

// Environment variables for settings outside of Config, read with the
// GetEnv helpers
const (
	EnvTrailSize       = "VF_TRAIL_SIZE"
	EnvNMSThreshold    = "VF_NMS_THRESHOLD"
	EnvShowWindow      = "VF_SHOW_WINDOW"
	EnvShutdownTimeout = "VF_SHUTDOWN_TIMEOUT"
)

// Load reads the .env file from the current working directory and sets
// environment variables.  Variables already set in the environment are not
// overridden.  If .env does not exist Load returns an error which callers can
// ignore to use the system environment or defaults
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or
// fallback if the variable is unset or empty
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by
// key, or fallback if the variable is unset, empty, or not a valid integer
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat returns the float value of the environment variable named by
// key, or fallback if the variable is unset, empty, or not a valid number
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of the environment variable named by
// key, or fallback if the variable is unset, empty, or not a valid boolean
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of the environment variable named
// by key, or fallback if the variable is unset, empty, or not a valid duration
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// Apply overrides the fields of base with any VF_* environment variables
// that are set.  Unlike the GetEnv helpers a malformed value is an error
// rather than silently ignored.  The result is validated
func Apply(base visionforge.Config) (visionforge.Config, error) {

	cfg := base
	p := &parser{}

	p.boolean(EnvHorizontalTracking, &cfg.HorizontalTracking)
	p.boolean(EnvVerticalTracking, &cfg.VerticalTracking)
	p.integer(EnvHorizontalExpansion, &cfg.HorizontalExpansion)
	p.integer(EnvVerticalExpansion, &cfg.VerticalExpansion)
	p.float32(EnvDetectorConfidence, &cfg.DetectorConfidence)
	p.float64(EnvMatchConfidence, &cfg.MatchConfidence)
	p.float64(EnvEuclideanDistance, &cfg.EuclideanDistance)
	p.method(EnvMatchMethod, &cfg.MatchMethod)
	p.boolean(EnvStopOnStaleInput, &cfg.StopOnStaleInput)
	p.duration(EnvDetectionPeriod, &cfg.DetectionPeriod)
	p.boolean(EnvAdaptivePeriod, &cfg.AdaptivePeriod)
	p.cpus(EnvSchedulerCPUs, &cfg.SchedulerCPUs)

	if p.err != nil {
		return base, p.err
	}

	if err := cfg.Validate(); err != nil {
		return base, err
	}

	return cfg, nil
}

// parser reads typed environment variables, keeping the first error
type parser struct {
	err error
}

// lookup returns the trimmed value of key if it is set and no earlier error
// occurred
func (p *parser) lookup(key string) (string, bool) {

	if p.err != nil {
		return "", false
	}

	s, ok := os.LookupEnv(key)
	s = strings.TrimSpace(s)

	return s, ok && s != ""
}

func (p *parser) fail(key, val string, err error) {
	p.err = fmt.Errorf("invalid value %q for %s: %w", val, key, err)
}

func (p *parser) boolean(key string, dst *bool) {
	if s, ok := p.lookup(key); ok {
		v, err := strconv.ParseBool(s)
		if err != nil {
			p.fail(key, s, err)
			return
		}
		*dst = v
	}
}

func (p *parser) integer(key string, dst *int) {
	if s, ok := p.lookup(key); ok {
		v, err := strconv.Atoi(s)
		if err != nil {
			p.fail(key, s, err)
			return
		}
		*dst = v
	}
}

func (p *parser) float32(key string, dst *float32) {
	if s, ok := p.lookup(key); ok {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			p.fail(key, s, err)
			return
		}
		*dst = float32(v)
	}
}

func (p *parser) float64(key string, dst *float64) {
	if s, ok := p.lookup(key); ok {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			p.fail(key, s, err)
			return
		}
		*dst = v
	}
}

func (p *parser) duration(key string, dst *time.Duration) {
	if s, ok := p.lookup(key); ok {
		v, err := time.ParseDuration(s)
		if err != nil {
			p.fail(key, s, err)
			return
		}
		*dst = v
	}
}

func (p *parser) method(key string, dst *match.Method) {
	if s, ok := p.lookup(key); ok {
		v, err := match.ParseMethod(strings.ToLower(s))
		if err != nil {
			p.fail(key, s, err)
			return
		}
		*dst = v
	}
}

// cpus parses a comma separated list of core numbers, eg: 4,5,6,7
func (p *parser) cpus(key string, dst *[]int) {

	s, ok := p.lookup(key)

	if !ok {
		return
	}

	var cores []int

	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))

		if err != nil {
			p.fail(key, s, err)
			return
		}

		cores = append(cores, n)
	}

	*dst = cores
}
