package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load populates config from the file at path, with environment variables
// overriding file values (dots become underscores: http.port -> HTTP_PORT).
// An empty path skips the file and runs on defaults plus environment only.
// config must be a pointer to the config struct.
func Load(path string, config any) error {
	v := viper.New()

	// Seed viper with the struct's zero values so it knows every key; without
	// this AutomaticEnv has nothing to bind against.
	m := make(map[string]any)
	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config map: %v", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", path, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}
