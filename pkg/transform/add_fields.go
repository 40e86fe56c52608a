package transform

import (
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
)

func init() {
	RegisterConfig("add_fields", func() Config { return &AddFieldsConfig{} })
}

// AddFieldsConfig configures the add_fields transform: static key/value
// pairs written onto every event. Dotted keys create nested fields on logs;
// on metrics and traces only tag/attribute paths are writable.
type AddFieldsConfig struct {
	Fields map[string]interface{} `yaml:"fields"`
}

func (c *AddFieldsConfig) ComponentName() string { return "add_fields" }

func (c *AddFieldsConfig) Build(_ *config.TransformContext) (Transform, error) {
	if len(c.Fields) == 0 {
		return Transform{}, errors.New(errors.CodeInvalidConfig, "add_fields requires at least one field")
	}
	return NewFunction(&addFields{fields: c.Fields}), nil
}

func (c *AddFieldsConfig) Input() config.Input { return config.InputAll() }

func (c *AddFieldsConfig) Outputs(_ *config.Definition, _ config.LogNamespace) []config.Output {
	return []config.Output{config.DefaultOutput(config.DataTypeAll)}
}

func (c *AddFieldsConfig) Nestable(_ map[string]bool) bool { return true }

type addFields struct {
	fields map[string]interface{}
}

func (t *addFields) Transform(e event.Event, output *OutputsBuf) {
	for path, value := range t.fields {
		e.SetField(path, value)
	}
	output.Push(e)
}
