// Package setting loads the INI configuration of the command line tool.
//
//	[expand]
//	MODE = single-macro
//	MAX_DEPTH = 30
//	STRIP_PARENS = false
//	CACHE_SIZE = 256
//	SYMBOLS = errno, stdout
//
//	[index]
//	EXCLUDE = build, third_party/**
//	JOBS = 0
//	DB_PATH = .macroexp
//
//	[log]
//	LEVEL = info
package setting

import (
	"fmt"
	"strings"

	"github.com/fwessels/macroexp/internal/expand"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// ExpandSettings represent the [expand] section
type ExpandSettings struct {
	Mode        expand.Mode
	MaxDepth    int
	StripParens bool
	CacheSize   int
	Symbols     []string
}

// IndexSettings represent the [index] section
type IndexSettings struct {
	Exclude []string
	Jobs    int
	DBPath  string
}

type Settings struct {
	Expand ExpandSettings
	Index  IndexSettings
	Log    logrus.Level
}

const DefaultCacheSize = 256

func Default() Settings {
	return Settings{
		Expand: ExpandSettings{
			Mode:      expand.SingleMacro,
			MaxDepth:  expand.DefaultMaxDepth,
			CacheSize: DefaultCacheSize,
		},
		Index: IndexSettings{DBPath: ".macroexp"},
		Log:   logrus.InfoLevel,
	}
}

// LoadFile reads the settings from an INI file. Missing keys keep their
// defaults.
func LoadFile(path string) (Settings, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return Settings{}, errors.Wrapf(err, "load config %s", path)
	}
	s, err := parse(cfg)
	return s, errors.Wrapf(err, "config %s", path)
}

// LoadBytes is LoadFile for in-memory content.
func LoadBytes(data []byte) (Settings, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return Settings{}, errors.Wrap(err, "load config")
	}
	return parse(cfg)
}

func parse(cfg *ini.File) (Settings, error) {
	s := Default()

	sec := cfg.Section("expand")
	if key, err := sec.GetKey("MODE"); err == nil {
		mode, err := expand.ParseMode(key.String())
		if err != nil {
			return s, errors.Wrap(err, "[expand] MODE")
		}
		s.Expand.Mode = mode
	}
	s.Expand.MaxDepth = sec.Key("MAX_DEPTH").MustInt(s.Expand.MaxDepth)
	s.Expand.StripParens = sec.Key("STRIP_PARENS").MustBool(s.Expand.StripParens)
	s.Expand.CacheSize = sec.Key("CACHE_SIZE").MustInt(s.Expand.CacheSize)
	s.Expand.Symbols = trimmed(sec.Key("SYMBOLS").Strings(","))

	sec = cfg.Section("index")
	s.Index.Exclude = trimmed(sec.Key("EXCLUDE").Strings(","))
	s.Index.Jobs = sec.Key("JOBS").MustInt(s.Index.Jobs)
	s.Index.DBPath = sec.Key("DB_PATH").MustString(s.Index.DBPath)

	if key, err := cfg.Section("log").GetKey("LEVEL"); err == nil {
		lvl, err := logrus.ParseLevel(key.String())
		if err != nil {
			return s, errors.Wrap(err, "[log] LEVEL")
		}
		s.Log = lvl
	}
	return s, s.Validate()
}

// Validate checks the values that cannot be clamped silently.
func (s Settings) Validate() error {
	if d := s.Expand.MaxDepth; d < expand.MinMaxDepth || d > expand.MaxMaxDepth {
		return fmt.Errorf("[expand] MAX_DEPTH %d out of range [%d, %d]", d, expand.MinMaxDepth, expand.MaxMaxDepth)
	}
	if s.Expand.CacheSize <= 0 {
		return fmt.Errorf("[expand] CACHE_SIZE must be positive, got %d", s.Expand.CacheSize)
	}
	if s.Index.Jobs < 0 {
		return fmt.Errorf("[index] JOBS must not be negative, got %d", s.Index.Jobs)
	}
	return nil
}

// ExpandConfig returns the engine configuration.
func (s Settings) ExpandConfig() expand.Config {
	return expand.Config{
		Mode:        s.Expand.Mode,
		MaxDepth:    s.Expand.MaxDepth,
		StripParens: s.Expand.StripParens,
		Symbols:     append([]string(nil), s.Expand.Symbols...),
	}
}

func trimmed(vals []string) []string {
	var out []string
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
