// Package config wires viper to the application's defaults, environment and TOML file.
package config

import (
	"errors"
	"strings"

	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/where"
	"github.com/spf13/viper"
)

// EnvKeyReplacer maps config keys to environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Setup registers defaults and env bindings, then reads aniplay.toml if it exists.
func Setup() error {
	viper.SetConfigName(constant.Aniplay)
	viper.SetConfigType("toml")
	viper.SetFs(filesystem.API())
	viper.AddConfigPath(where.Config())

	viper.SetEnvPrefix(constant.Aniplay)
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	for _, env := range EnvExposed {
		viper.MustBindEnv(env)
	}

	viper.SetTypeByDefaultValue(true)
	for name, field := range Default {
		viper.SetDefault(name, field.Value)
	}

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}

	return err
}
