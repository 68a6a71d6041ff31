package config

import (
	"os"
	"path/filepath"

	"github.com/kkyr/fig"
)

const EnvPrefix = "SOLIVE"

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom path to the configuration file.
// Reads and puts environment variables with the prefix SOLIVE_.
// Params from the config should be in uppercase separated with _.
// Returns the list of dirs where the file was looked up.
func LoadConfig(config any, path string) ([]string, error) {
	file := "config.yaml"
	dirs := []string{path}
	if path == "" {
		dirs = append(dirs, ".", "configs", "../../configs")
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, filepath.Join(home, ".solive"))
		}
	} else if filepath.Ext(path) != "" {
		file, dirs = filepath.Base(path), []string{filepath.Dir(path)}
	}
	if err := fig.Load(config, fig.File(file), fig.Dirs(dirs...), fig.UseEnv(EnvPrefix)); err != nil {
		return dirs, err
	}
	return dirs, nil
}

// LoadConfigEnv fills the config only from the environment.
func LoadConfigEnv(config any) error {
	return fig.Load(config, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
}
