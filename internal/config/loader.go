package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EmbeddedRootConfigurationReference identifies the embedded
	// fallback configuration source.
	EmbeddedRootConfigurationReference = "embedded default configuration"

	configurationFileName              = "config"
	configurationFileType              = "yaml"
	homeConfigurationRelativeDirectory = ".repo-insights"
	environmentVariablePrefix          = "REPO_INSIGHTS"
)

//go:embed default_root_configuration.yaml
var embeddedRootConfigurationBytes []byte

// LoadResult carries the parsed configuration and where it came from.
type LoadResult struct {
	Root      Root
	Reference string
}

// commonSettingKeys are the scalar settings overridable through the
// environment (REPO_INSIGHTS_COMMON_API_ENDPOINT and so on). Bound
// explicitly because viper's Unmarshal only surfaces env values for
// keys it already knows about.
var commonSettingKeys = []string{
	"common.api.endpoint",
	"common.api.api_key_env",
	"common.logging.level",
	"common.logging.format",
	"common.defaults.attempts",
	"common.defaults.timeout_seconds",
	"common.defaults.max_candidates",
}

// LoadRoot resolves the configuration using the preferred search order:
// explicit path, working directory, then ~/.repo-insights; when none
// exists the embedded default is used. Environment variables prefixed
// REPO_INSIGHTS_ override the common settings.
func LoadRoot(explicitPath string) (LoadResult, error) {
	v := viper.New()
	v.SetConfigType(configurationFileType)
	v.SetEnvPrefix(environmentVariablePrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range commonSettingKeys {
		if err := v.BindEnv(key); err != nil {
			return LoadResult{}, fmt.Errorf("bind environment key %s: %w", key, err)
		}
	}

	reference := EmbeddedRootConfigurationReference
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		if err := v.ReadInConfig(); err != nil {
			return LoadResult{}, fmt.Errorf("read explicit configuration %s: %w", explicitPath, err)
		}
		reference = explicitPath
	} else {
		v.SetConfigName(configurationFileName)
		v.AddConfigPath(".")
		if home := os.Getenv("HOME"); home != "" {
			v.AddConfigPath(filepath.Join(home, homeConfigurationRelativeDirectory))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return LoadResult{}, fmt.Errorf("read configuration: %w", err)
			}
			if readErr := v.ReadConfig(bytes.NewReader(embeddedRootConfigurationBytes)); readErr != nil {
				return LoadResult{}, fmt.Errorf("read embedded configuration: %w", readErr)
			}
		} else {
			reference = v.ConfigFileUsed()
		}
	}

	var root Root
	if err := v.Unmarshal(&root); err != nil {
		return LoadResult{}, fmt.Errorf("unmarshal configuration %s: %w", reference, err)
	}
	if err := root.Validate(); err != nil {
		return LoadResult{}, err
	}
	return LoadResult{Root: root, Reference: reference}, nil
}
