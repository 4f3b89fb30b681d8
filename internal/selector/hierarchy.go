package selector

import (
	"fmt"

	"github.com/repeateval/repeat/internal/identity"
	"gopkg.in/yaml.v3"
)

// Hierarchy is an ordered mapping that selects registration identities:
// toolkit -> commands, or toolkit -> command -> versions.
type Hierarchy []ToolkitNode

// ToolkitNode is one toolkit entry. When ByCommand is non-empty it takes
// precedence over Commands.
type ToolkitNode struct {
	Toolkit   string
	Commands  Selector[string]
	ByCommand []CommandNode
}

// CommandNode selects versions of one toolkit command.
type CommandNode struct {
	Command  string
	Versions Selector[string]
}

// Expansion is one toolkit, or toolkit-command pair, of a flattened
// hierarchy with the selectors that remain to be resolved for it.
type Expansion struct {
	Toolkit string
	Command Selector[string]
	Version Selector[string]
}

// RegID returns the identity prefix the expansion is keyed by.
func (e Expansion) RegID() string {
	return identity.Compose(e.Toolkit, e.Command.Value(), "")
}

// ExpandHierarchy flattens h into one entry per toolkit, or per
// toolkit-command pair where the toolkit maps commands to versions.
// Order follows h.
func ExpandHierarchy(h Hierarchy) []Expansion {
	var out []Expansion
	for _, tk := range h {
		if len(tk.ByCommand) == 0 {
			out = append(out, Expansion{Toolkit: tk.Toolkit, Command: tk.Commands})
			continue
		}
		for _, cmd := range tk.ByCommand {
			out = append(out, Expansion{
				Toolkit: tk.Toolkit,
				Command: One(cmd.Command),
				Version: cmd.Versions,
			})
		}
	}
	return out
}

// ParseHierarchyYAML reads a hierarchy from YAML, keeping key order:
//
//	mirtk:
//	  ireg: [2.0.0, latest]
//	niftyreg: [aladin, f3d]
//	elastix:
func ParseHierarchyYAML(data []byte) (Hierarchy, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing hierarchy: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("hierarchy must be a mapping of toolkits (line %d)", root.Line)
	}

	var h Hierarchy
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		node := ToolkitNode{Toolkit: key.Value}

		switch val.Kind {
		case yaml.MappingNode:
			for j := 0; j+1 < len(val.Content); j += 2 {
				versions, err := scalarsOf(val.Content[j+1])
				if err != nil {
					return nil, err
				}
				node.ByCommand = append(node.ByCommand, CommandNode{
					Command:  val.Content[j].Value,
					Versions: versions,
				})
			}
		default:
			commands, err := scalarsOf(val)
			if err != nil {
				return nil, err
			}
			node.Commands = commands
		}
		h = append(h, node)
	}
	return h, nil
}

// scalarsOf turns a null, scalar or sequence node into a selector.
func scalarsOf(n *yaml.Node) (Selector[string], error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" || n.Value == "" {
			return Absent[string](), nil
		}
		return One(n.Value), nil
	case yaml.SequenceNode:
		values := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return Selector[string]{}, fmt.Errorf("nested collections are not supported (line %d)", c.Line)
			}
			values = append(values, c.Value)
		}
		return Many(values...), nil
	default:
		return Selector[string]{}, fmt.Errorf("unexpected node at line %d", n.Line)
	}
}
