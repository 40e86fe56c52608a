package topology

import (
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/transform"
)

// Expander is implemented by compound transform configs that rewrite
// themselves into physical components before the build phase.
type Expander interface {
	Expand(key config.ComponentKey, inputs []string) (*transform.InnerTopology, error)
}

// expandTransforms replaces every compound transform with its physical
// expansion and rewires downstream inputs to the expansion's outputs.
// Expansion runs to a fixed point so compounds produced by other compounds
// are handled, with a depth guard against runaway definitions.
func (c *Config) expandTransforms() error {
	for depth := 0; ; depth++ {
		if depth > 8 {
			return errors.New(errors.CodeInvalidConfig, "transform expansion did not terminate")
		}
		expanded, err := c.expandOnce()
		if err != nil {
			return err
		}
		if !expanded {
			return nil
		}
	}
}

func (c *Config) expandOnce() (bool, error) {
	expanded := false

	for _, name := range sortedNames(c.Transforms) {
		node := c.Transforms[name]
		expander, ok := node.Config.(Expander)
		if !ok {
			continue
		}

		inner, err := expander.Expand(config.NewComponentKey(name), node.Inputs)
		if err != nil {
			return false, errors.Wrapf(err, errors.CodeInvalidConfig, "expanding transform %q", name)
		}

		delete(c.Transforms, name)
		for key, component := range inner.Inner {
			if _, taken := c.Transforms[key]; taken {
				return false, errors.Newf(errors.CodeInvalidConfig,
					"expansion of %q collides with existing component %q", name, key)
			}
			c.Transforms[key] = TransformNode{
				Inputs: component.Inputs,
				Config: component.Inner,
			}
		}

		c.rewriteInputs(name, inner.OutputIDs())
		expanded = true
	}

	return expanded, nil
}

// rewriteInputs replaces references to old with the given replacement list in
// every transform and sink input set.
func (c *Config) rewriteInputs(old string, replacement []string) {
	rewrite := func(inputs []string) []string {
		out := make([]string, 0, len(inputs))
		for _, input := range inputs {
			if input == old {
				out = append(out, replacement...)
				continue
			}
			out = append(out, input)
		}
		return out
	}

	for name, node := range c.Transforms {
		node.Inputs = rewrite(node.Inputs)
		c.Transforms[name] = node
	}
	for name, node := range c.Sinks {
		node.Inputs = rewrite(node.Inputs)
		c.Sinks[name] = node
	}
}
