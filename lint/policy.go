package lint

import (
	"fmt"
	"strings"

	"csslint/css"
)

// PropertyGroup is one named slot of the canonical declaration order.
type PropertyGroup struct {
	Name       string
	Properties []string
}

// Policy is the adjustable part of the rule set. Defaults follow common
// stylesheet authoring conventions but every threshold is policy, not
// contract - override via configuration.
type Policy struct {
	// StructuralSelectors are element names considered non-reusable when
	// styled bare (without class or attribute qualifier).
	StructuralSelectors []string
	// GlobalExceptions are element names exempt from the selector check,
	// typically global reset targets.
	GlobalExceptions []string
	// PropertyGroups define the canonical declaration order, first group
	// expected first.
	PropertyGroups []PropertyGroup
	// MaxNestingDepth bounds parser recursion, see css.DefaultMaxDepth.
	MaxNestingDepth int
}

// DefaultPolicy returns the built-in rule set.
func DefaultPolicy() Policy {
	return Policy{
		StructuralSelectors: []string{"header", "nav", "footer", "aside", "section", "button"},
		GlobalExceptions:    []string{"body", "*", "html", "h1", "h2", "h3", "h4", "h5", "h6"},
		PropertyGroups: []PropertyGroup{
			{Name: "box model", Properties: []string{
				"border", "border-radius", "padding", "margin",
				"width", "height", "box-shadow", "box-sizing",
			}},
			{Name: "color and background", Properties: []string{
				"background", "background-color", "color",
			}},
			{Name: "typography", Properties: []string{
				"font", "font-family", "font-size", "font-weight",
				"text-transform", "line-height",
			}},
			{Name: "interaction", Properties: []string{
				"cursor", "transition", "pointer-events",
			}},
		},
		MaxNestingDepth: css.DefaultMaxDepth,
	}
}

// compiledPolicy is the lookup form of a Policy, built once per Linter.
type compiledPolicy struct {
	structural map[string]struct{}
	exceptions map[string]struct{}
	groupOf    map[string]int
	groupNames []string
	maxDepth   int
}

// compile validates the policy and builds lookup tables. Validation
// failures here are the configuration error path: surfaced before any
// analysis begins, no partial report is ever produced.
func (p Policy) compile() (compiledPolicy, error) {
	if len(p.PropertyGroups) == 0 {
		return compiledPolicy{}, fmt.Errorf("invalid lint policy: property groups must not be empty")
	}

	c := compiledPolicy{
		structural: make(map[string]struct{}, len(p.StructuralSelectors)),
		exceptions: make(map[string]struct{}, len(p.GlobalExceptions)),
		groupOf:    make(map[string]int),
		groupNames: make([]string, 0, len(p.PropertyGroups)),
		maxDepth:   p.MaxNestingDepth,
	}
	if c.maxDepth <= 0 {
		c.maxDepth = css.DefaultMaxDepth
	}

	for _, s := range p.StructuralSelectors {
		c.structural[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	for _, s := range p.GlobalExceptions {
		c.exceptions[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	for i, g := range p.PropertyGroups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return compiledPolicy{}, fmt.Errorf("invalid lint policy: property group %d has no name", i)
		}
		if len(g.Properties) == 0 {
			return compiledPolicy{}, fmt.Errorf("invalid lint policy: property group %q has no properties", name)
		}
		c.groupNames = append(c.groupNames, name)
		for _, prop := range g.Properties {
			prop = strings.ToLower(strings.TrimSpace(prop))
			if prop == "" {
				return compiledPolicy{}, fmt.Errorf("invalid lint policy: property group %q contains an empty property", name)
			}
			if prev, dup := c.groupOf[prop]; dup {
				return compiledPolicy{}, fmt.Errorf("invalid lint policy: property %q listed in both %q and %q",
					prop, c.groupNames[prev], name)
			}
			c.groupOf[prop] = i
		}
	}
	return c, nil
}
