package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// EnvConfigPath names the variable holding the main config file path.
	EnvConfigPath = "OPTDESK_CONFIG"
	// DefaultConfigPath is used when EnvConfigPath is unset.
	DefaultConfigPath = "configs/config.yaml"
	envPrefix         = "OPTDESK"
)

// secretKeys may be supplied through OPTDESK_<SECTION>_<KEY> instead of the
// file, e.g. OPTDESK_BROKER_PASSWORD.
var secretKeys = []string{
	"broker.password",
	"broker.api_key",
	"broker.totp_secret",
	"notify.telegram.bot_token",
}

// PathFromEnv returns the config path from the environment or the default.
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads path and its include chain, decodes the merged settings and
// applies defaults to keys that were not set explicitly.
func Load(path string) (*Config, error) {
	files, err := resolveIncludes(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeFile(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	keys := make(keySet)
	flattenKeys("", v.AllSettings(), keys)
	cfg.applyDefaults(keys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func mergeFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	settings := tmp.AllSettings()
	delete(settings, "include")
	return v.MergeConfigMap(settings)
}

// resolveIncludes returns path and every file it includes, depth first, so
// later files override earlier ones.
func resolveIncludes(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := includeWalker{done: map[string]bool{}, active: map[string]bool{}}
	if err := w.walk(abs); err != nil {
		return nil, err
	}
	return w.order, nil
}

type includeWalker struct {
	done   map[string]bool
	active map[string]bool
	order  []string
}

func (w *includeWalker) walk(path string) error {
	path = filepath.Clean(path)
	if w.active[path] {
		return fmt.Errorf("include cycle detected: %s", path)
	}
	if w.done[path] {
		return nil
	}
	w.active[path] = true
	includes, err := readIncludes(path)
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := w.walk(inc); err != nil {
			return err
		}
	}
	delete(w.active, path)
	w.done[path] = true
	w.order = append(w.order, path)
	return nil
}

func readIncludes(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("include must be a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include only supports strings")
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func flattenKeys(prefix string, node any, dest keySet) {
	m, ok := node.(map[string]any)
	if !ok {
		if prefix != "" {
			dest.mark(prefix)
		}
		return
	}
	for k, v := range m {
		next := strings.ToLower(strings.TrimSpace(k))
		if next == "" {
			continue
		}
		if prefix != "" {
			next = prefix + "." + next
		}
		flattenKeys(next, v, dest)
	}
}
