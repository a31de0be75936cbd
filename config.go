package glprog

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config configures a [System]. It is usually loaded from a TOML file:
//
//	cache_file = "programs.yaml"
//	log_level = "debug"
//
//	[stage_headers]
//	fragment = "#define USE_FOG"
type Config struct {
	// CacheFile is the persisted program cache. Empty disables persistence.
	CacheFile string `toml:"cache_file"`
	// DisableCompilation turns program requests into no-ops returning no program.
	DisableCompilation bool `toml:"disable_compilation"`
	// LogLevel is one of debug, info, warn or error. Empty disables logging.
	LogLevel string `toml:"log_level"`
	// StageHeaders maps stage names such as "vertex" or "tessEval" to text
	// prepended to every generated source of that stage.
	StageHeaders map[string]string `toml:"stage_headers"`
	// Includes maps include names to the text inlined in their place.
	Includes map[string]string `toml:"includes"`
}

// LoadConfig reads a TOML config file. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a TOML config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err := dec.Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("glprog: decoding config: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Level returns the slog level of LogLevel, info when it is empty.
func (cfg Config) Level() (level slog.Level, err error) {
	if cfg.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	err = level.UnmarshalText([]byte(cfg.LogLevel))
	if err != nil {
		return level, fmt.Errorf("glprog: bad log level %q: %w", cfg.LogLevel, err)
	}
	return level, nil
}

// Logger returns a text logger writing to stderr at the configured level, or nil
// when LogLevel is empty.
func (cfg Config) Logger() *slog.Logger {
	level, err := cfg.Level()
	if cfg.LogLevel == "" || err != nil {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
