// Package config loads the root configuration: provider endpoint,
// model catalog, defaults, and per-workflow settings. Workflow entries
// carry free-form bodies that are mapped onto typed settings the same
// way recipes map onto tasks.
package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	emptyModelsErrorMessage         = "config.models is empty"
	missingDefaultModelErrorMessage = "no default model found (set models[].default: true)"
	mapWorkflowMarshalErrorFormat   = "marshal workflow settings: %w"
	mapWorkflowUnmarshalErrorFormat = "map workflow settings: %w"
)

type Root struct {
	Common    Common     `mapstructure:"common"`
	Models    []Model    `mapstructure:"models"`
	Workflows []Workflow `mapstructure:"workflows"`
}

type Common struct {
	API struct {
		Endpoint  string `mapstructure:"endpoint"`
		APIKeyEnv string `mapstructure:"api_key_env"`
	} `mapstructure:"api"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
	Defaults struct {
		Attempts       int `mapstructure:"attempts"`
		TimeoutSeconds int `mapstructure:"timeout_seconds"`
		MaxCandidates  int `mapstructure:"max_candidates"`
	} `mapstructure:"defaults"`
}

type Model struct {
	Name                string  `mapstructure:"name"`
	Provider            string  `mapstructure:"provider"`
	ModelID             string  `mapstructure:"model_id"`
	Default             bool    `mapstructure:"default"`
	SupportsTemperature bool    `mapstructure:"supports_temperature"`
	DefaultTemperature  float64 `mapstructure:"default_temperature"`
	MaxCompletionTokens int     `mapstructure:"max_completion_tokens"`
}

type Workflow struct {
	Name    string `mapstructure:"name"`
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`

	Body map[string]any `mapstructure:",remain"`
}

// Validate checks required fields after loading.
func (root Root) Validate() error {
	if len(root.Models) == 0 {
		return errors.New(emptyModelsErrorMessage)
	}
	if _, ok := root.DefaultModel(); !ok {
		return errors.New(missingDefaultModelErrorMessage)
	}
	return nil
}

func (root Root) DefaultModel() (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Default {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

func (root Root) FindModel(name string) (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Name == name {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

func (root Root) FindWorkflow(name string) (Workflow, bool) {
	for _, workflow := range root.Workflows {
		if workflow.Name == name {
			return workflow, true
		}
	}
	return Workflow{}, false
}

// WorkflowSettings are the per-workflow knobs carried in a workflow
// entry's free-form body.
type WorkflowSettings struct {
	Limits struct {
		MaxCandidates int `yaml:"max_candidates"`
	} `yaml:"limits"`
	Guidance string `yaml:"guidance"`
}

// MapWorkflow converts a workflow entry's body into typed settings.
func MapWorkflow(workflow Workflow) (WorkflowSettings, error) {
	var settings WorkflowSettings
	encodedBody, marshalError := yaml.Marshal(workflow.Body)
	if marshalError != nil {
		return settings, fmt.Errorf(mapWorkflowMarshalErrorFormat, marshalError)
	}
	if err := yaml.Unmarshal(encodedBody, &settings); err != nil {
		return settings, fmt.Errorf(mapWorkflowUnmarshalErrorFormat, err)
	}
	return settings, nil
}
