package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"vidsift/internal/crop"
	"vidsift/internal/matching"
	"vidsift/pkg/vhash"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	Log         LogConfig      `mapstructure:"log"`
	Hash        HashConfig     `mapstructure:"hash"`
	Crop        CropConfig     `mapstructure:"crop"`
	Match       MatchConfig    `mapstructure:"match"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
	Decoder     DecoderConfig  `mapstructure:"decoder"`
	Scan        ScanConfig     `mapstructure:"scan"`
	Server      ServerConfig   `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type HashConfig struct {
	SkipMS   int64 `mapstructure:"skip_ms"`
	WindowMS int64 `mapstructure:"window_ms"`
	FramesN  int   `mapstructure:"frames_n"`
}

type CropConfig struct {
	Mode      string `mapstructure:"mode"`      // off | letterbox
	Threshold uint8  `mapstructure:"threshold"` // black cutoff 0-255
}

type MatchConfig struct {
	Tau               float64 `mapstructure:"tau"`
	DurationTolerance float64 `mapstructure:"duration_tolerance"`
	SpatialWeight     float64 `mapstructure:"spatial_weight"`
	TemporalWeight    float64 `mapstructure:"temporal_weight"`
}

type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

type PipelineConfig struct {
	WorkersDecode int           `mapstructure:"workers_decode"` // 0 = cpu_count - 1
	WorkersDigest int           `mapstructure:"workers_digest"`
	QueueSize     int           `mapstructure:"queue_size"`
	DecodeTimeout time.Duration `mapstructure:"decode_timeout"`
	SpawnRate     float64       `mapstructure:"spawn_rate"` // decoder launches/sec, 0 = unpaced
}

type DecoderConfig struct {
	FFmpegPath  string   `mapstructure:"ffmpeg_path"`
	FFprobePath string   `mapstructure:"ffprobe_path"`
	ExtraArgs   []string `mapstructure:"extra_args"`
}

type ScanConfig struct {
	Roots          []string `mapstructure:"roots"`
	Extensions     []string `mapstructure:"extensions"`
	RescanSchedule string   `mapstructure:"rescan_schedule"` // cron expression, "" = disabled
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Load reads configuration from an optional file plus VIDSIFT_* environment
// variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("hash.skip_ms", 0)
	v.SetDefault("hash.window_ms", 30_000)
	v.SetDefault("hash.frames_n", 10)
	v.SetDefault("crop.mode", "off")
	v.SetDefault("crop.threshold", 24)
	v.SetDefault("match.tau", 0.25)
	v.SetDefault("match.duration_tolerance", 0.05)
	v.SetDefault("match.spatial_weight", 0.7)
	v.SetDefault("match.temporal_weight", 0.3)
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("pipeline.workers_decode", defaultDecodeWorkers())
	v.SetDefault("pipeline.workers_digest", 2)
	v.SetDefault("pipeline.queue_size", 64)
	v.SetDefault("pipeline.decode_timeout", 120*time.Second)
	v.SetDefault("pipeline.spawn_rate", 0.0)
	v.SetDefault("decoder.ffmpeg_path", "ffmpeg")
	v.SetDefault("decoder.ffprobe_path", "ffprobe")
	v.SetDefault("scan.extensions", []string{".mp4", ".mkv", ".avi", ".mov", ".webm", ".m4v", ".wmv", ".flv", ".ts", ".mpg", ".mpeg"})
	v.SetDefault("scan.rescan_schedule", "")
	v.SetDefault("server.port", "8575")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetEnvPrefix("VIDSIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if _, err := crop.ParseMode(c.Crop.Mode); err != nil {
		return err
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Match.Tau <= 0 || c.Match.Tau > 1 {
		return fmt.Errorf("match.tau %v out of (0, 1]", c.Match.Tau)
	}
	if c.Match.DurationTolerance < 0 || c.Match.DurationTolerance > 1 {
		return fmt.Errorf("match.duration_tolerance %v out of [0, 1]", c.Match.DurationTolerance)
	}
	return nil
}

// Params assembles the hashing parameters that feed the params digest.
func (c *Config) Params() vhash.Params {
	return vhash.Params{
		FrameCount:     c.Hash.FramesN,
		SkipMS:         c.Hash.SkipMS,
		WindowMS:       c.Hash.WindowMS,
		CropMode:       c.Crop.Mode,
		CropThreshold:  c.Crop.Threshold,
		SpatialWeight:  c.Match.SpatialWeight,
		TemporalWeight: c.Match.TemporalWeight,
	}
}

// MatchOptions assembles the matcher configuration.
func (c *Config) MatchOptions() matching.Options {
	return matching.Options{
		Tau:               c.Match.Tau,
		DurationTolerance: c.Match.DurationTolerance,
		SpatialWeight:     c.Match.SpatialWeight,
		TemporalWeight:    c.Match.TemporalWeight,
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", ".vidsift-cache")
	}
	return filepath.Join(base, "vidsift")
}

func defaultDecodeWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}
