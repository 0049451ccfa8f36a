package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type (
	// Persister reads and writes the flat key/value map of a store.
	Persister interface {
		Load() (map[string]any, error)
		Save(map[string]any) error
	}

	// Map is an in-memory Persister.
	Map map[string]any

	// YAMLFile persists values in a YAML file. Nested mappings are flattened
	// into dotted keys on load; a missing file loads as empty.
	YAMLFile struct {
		Path string
	}

	// Defaults are the built-in settings.
	Defaults struct {
		Audio struct {
			Host   string         `yaml:"host"`
			Output DeviceDefaults `yaml:"output"`
			Input  DeviceDefaults `yaml:"input"`
		} `yaml:"audio"`
		Console struct {
			ReconcileInterval time.Duration `yaml:"reconcile_interval"`
			BackendTimeout    time.Duration `yaml:"backend_timeout"`
		} `yaml:"console"`
		Rack struct {
			ChainLength int `yaml:"chain_length"`
		} `yaml:"rack"`
	}

	DeviceDefaults struct {
		Device     string `yaml:"device"`
		Stream     string `yaml:"stream"`
		BufferSize int    `yaml:"buffer_size"`
	}
)

//go:embed defaults.yml
var defaultsYaml []byte

// LoadDefaults decodes the built-in settings.
func LoadDefaults() Defaults {
	var d Defaults
	if err := yaml.UnmarshalStrict(defaultsYaml, &d); err != nil {
		panic(fmt.Errorf("failed to unmarshal config defaults: %w", err))
	}
	return d
}

// Values returns the defaults as a flat map.
func (d Defaults) Values() Map {
	return Map{
		KeyHost:              d.Audio.Host,
		KeyOutputDevice:      d.Audio.Output.Device,
		KeyOutputStream:      d.Audio.Output.Stream,
		KeyOutputBufferSize:  d.Audio.Output.BufferSize,
		KeyInputDevice:       d.Audio.Input.Device,
		KeyInputStream:       d.Audio.Input.Stream,
		KeyInputBufferSize:   d.Audio.Input.BufferSize,
		KeyReconcileInterval: d.Console.ReconcileInterval.String(),
		KeyBackendTimeout:    d.Console.BackendTimeout.String(),
		KeyChainLength:       d.Rack.ChainLength,
	}
}

func (m Map) Load() (map[string]any, error) {
	ret := make(map[string]any, len(m))
	for k, v := range m {
		ret[k] = v
	}
	return ret, nil
}

func (m Map) Save(values map[string]any) error {
	for k, v := range values {
		m[k] = v
	}
	return nil
}

// UserFile returns the YAML file for user settings, under the user config
// directory.
func UserFile() (YAMLFile, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return YAMLFile{}, err
	}
	return YAMLFile{Path: filepath.Join(dir, "mixrack", "config.yml")}, nil
}

func (f YAMLFile) Load() (map[string]any, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	ret := map[string]any{}
	flatten("", raw, ret)
	return ret, nil
}

func (f YAMLFile) Save(values map[string]any) error {
	b, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.Path, b, 0o644)
}

func flatten(prefix string, v any, out map[string]any) {
	join := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}
	switch m := v.(type) {
	case map[string]any:
		for k, child := range m {
			flatten(join(k), child, out)
		}
	case map[any]any:
		for k, child := range m {
			var key string
			switch kk := k.(type) {
			case string:
				key = kk
			case int:
				key = strconv.Itoa(kk)
			default:
				key = fmt.Sprint(kk)
			}
			flatten(join(key), child, out)
		}
	default:
		if prefix != "" {
			out[prefix] = v
		}
	}
}
