package expert

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Role names an expert specialization and carries the instruction sent to a
// freshly launched agent. An empty Instruction is valid: the agent starts
// silent and waits for work.
type Role struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Instruction string `yaml:"instruction,omitempty"`
}

// Catalog is the set of roles available to the session, loaded from the
// project's roles file.
type Catalog struct {
	roles map[string]Role
}

type catalogFile struct {
	Roles []Role `yaml:"roles"`
}

// LoadCatalog reads a role catalog from a YAML file. A missing file yields
// an empty catalog rather than an error: roles are optional and unknown role
// names fall back to a silent launch.
func LoadCatalog(path string) (*Catalog, error) {
	c := &Catalog{roles: make(map[string]Role)}
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading role catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing role catalog %s: %w", path, err)
	}

	for _, role := range file.Roles {
		if role.Name == "" {
			return nil, fmt.Errorf("role catalog %s: role with empty name", path)
		}
		if _, dup := c.roles[role.Name]; dup {
			return nil, fmt.Errorf("role catalog %s: duplicate role %q", path, role.Name)
		}
		c.roles[role.Name] = role
	}
	return c, nil
}

// Lookup returns the role for a name. Unknown names return a role with no
// instruction, so the launch proceeds silently.
func (c *Catalog) Lookup(name string) Role {
	if role, ok := c.roles[name]; ok {
		return role
	}
	return Role{Name: name}
}

// Names returns all defined role names in no particular order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.roles))
	for name := range c.roles {
		names = append(names, name)
	}
	return names
}

// Len returns the number of defined roles.
func (c *Catalog) Len() int {
	return len(c.roles)
}
