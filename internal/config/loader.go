package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is loaded by LoadDotEnv when no path is given.
const DefaultEnvFile = ".env"

// YAMLLoader is a kong.ConfigurationLoader for YAML files whose top-level keys
// are flag names. Dashes and underscores are interchangeable; nested maps
// feed map-valued flags.
func YAMLLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]interface{}{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	return kong.ResolverFunc(func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (interface{}, error) {
		for _, key := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			raw, ok := values[key]
			if !ok {
				continue
			}
			return flatten(flag.Name, raw)
		}
		return nil, nil
	}), nil
}

// flatten turns YAML values into the string form kong's mappers parse.
func flatten(name string, raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, v[k]))
		}
		return strings.Join(pairs, ";"), nil
	case []interface{}:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = fmt.Sprint(e)
		}
		return strings.Join(parts, ","), nil
	case string, bool, int, int64, float64:
		return fmt.Sprint(v), nil
	default:
		return nil, fmt.Errorf("config: unsupported value for %q: %T", name, raw)
	}
}

// LoadDotEnv loads environment variables from path, or DefaultEnvFile when
// path is empty. Variables already set are kept. A missing default file is
// not an error.
func LoadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load env file %s: %w", path, err)
	}
	return nil
}
