package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigDirEnv overrides the directory Load searches first.
const ConfigDirEnv = "RAGPIPE_CONFIG_DIR"

// GetEnv returns the ENV variable, "local" when unset.
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// Load reads <env>.yaml from the first config directory that has it:
// $RAGPIPE_CONFIG_DIR, ./config, then the config directory of the source tree.
func Load(env string) (Config, error) {
	name := env + ".yaml"
	for _, dir := range configDirs() {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return Config{}, fmt.Errorf("config %s not found in %s", name, strings.Join(configDirs(), ", "))
}

func configDirs() []string {
	var dirs []string
	if d := os.Getenv(ConfigDirEnv); d != "" {
		dirs = append(dirs, d)
	}
	dirs = append(dirs, "config")
	if _, src, _, ok := runtime.Caller(0); ok {
		// internal/config/load.go -> <root>/config
		dirs = append(dirs, filepath.Join(filepath.Dir(src), "..", "..", "config"))
	}
	return dirs
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands environment references, decodes, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data, err := expandEnv(data)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// expandEnv substitutes ${VAR}, ${VAR:-default} and ${VAR:?message}.
// The last form fails with message when VAR is unset or empty.
func expandEnv(data []byte) ([]byte, error) {
	var missing []string
	out := envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		m := envRef.FindSubmatch(ref)
		val := os.Getenv(string(m[1]))
		if val != "" {
			return []byte(val)
		}
		switch string(m[2]) {
		case ":-":
			return m[3]
		case ":?":
			missing = append(missing, fmt.Sprintf("%s: %s", m[1], m[3]))
		}
		return nil
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment not set: %s", strings.Join(missing, "; "))
	}
	return out, nil
}
