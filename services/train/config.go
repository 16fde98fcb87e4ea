// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package train

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/backprop/services/mlp"
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid training config")

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("activation", validateActivation)
}

func validateActivation(fl validator.FieldLevel) bool {
	_, err := mlp.ParseActivation(fl.Field().String())
	return err == nil
}

// Config describes a training run.
//
// The final entry of Layers is the output width and must match the width of
// the generated targets, which is always 1.
type Config struct {
	// Inputs is the width of each example.
	Inputs int `yaml:"inputs" validate:"required,gte=1,lte=1024"`

	// Examples is the number of generated training examples.
	Examples int `yaml:"examples" validate:"required,gte=1,lte=100000"`

	// Layers lists the neuron count of each layer, input side first.
	Layers []int `yaml:"layers" validate:"required,min=1,max=16,dive,gte=1,lte=1024"`

	// Activation is one of tanh, sigmoid or relu.
	Activation string `yaml:"activation" validate:"required,activation"`

	// StepSize is the gradient-descent learning rate.
	StepSize float64 `yaml:"step_size" validate:"gt=0,lte=10"`

	// Iterations is the number of descent steps.
	Iterations int `yaml:"iterations" validate:"gte=1,lte=10000000"`

	// Seed makes initialization and data generation reproducible.
	Seed uint64 `yaml:"seed"`

	// LogInterval logs the loss every LogInterval iterations. 0 disables.
	LogInterval int `yaml:"log_interval" validate:"gte=0"`
}

// DefaultConfig returns a 4-input network with layers [4, 4, 1] trained on
// 10 random examples for 999 iterations.
func DefaultConfig() Config {
	return Config{
		Inputs:      4,
		Examples:    10,
		Layers:      []int{4, 4, 1},
		Activation:  string(mlp.Tanh),
		StepSize:    0.1,
		Iterations:  999,
		Seed:        1,
		LogInterval: 100,
	}
}

// Validate checks field ranges and that the network ends in one output.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if last := c.Layers[len(c.Layers)-1]; last != 1 {
		return fmt.Errorf("%w: output layer has %d neurons, want 1", ErrInvalidConfig, last)
	}
	return nil
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
// Fields absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
