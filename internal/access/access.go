// Package access holds the declarative route and action permission table
// and evaluates it for the router.
package access

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/atinyakov/staffonic/internal/models"
)

//go:embed permissions.yaml
var defaultTable []byte

// Decision is the router outcome for one navigation.
type Decision int

const (
	// Deny means the principal may not open the route.
	Deny Decision = iota
	// Allow renders the route.
	Allow
	// Wait shows the loading placeholder.
	Wait
	// Login redirects to the login page, remembering the requested location.
	Login
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Wait:
		return "wait"
	case Login:
		return "login"
	}
	return "deny"
}

// Principal is what the router knows about the viewer.
type Principal struct {
	Loading  bool
	SignedIn bool
	Role     models.Role
}

// Rule describes who may open a route.
type Rule struct {
	Public bool          `yaml:"public"`
	Roles  []models.Role `yaml:"roles"`
}

// Table is the parsed permission table.
type Table struct {
	Routes  map[string]Rule          `yaml:"routes"`
	Actions map[string][]models.Role `yaml:"actions"`
}

// Default returns the embedded table.
func Default() *Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded permission table: %v", err))
	}
	return t
}

// Load reads a table from path, or returns the embedded one when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permission table: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML permission table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse permission table: %w", err)
	}
	for pattern, rule := range t.Routes {
		if rule.Public && len(rule.Roles) > 0 {
			return nil, fmt.Errorf("route %s: public routes take no roles", pattern)
		}
		for _, r := range rule.Roles {
			if !r.Valid() {
				return nil, fmt.Errorf("route %s: unknown role %q", pattern, r)
			}
		}
	}
	for action, roles := range t.Actions {
		for _, r := range roles {
			if !r.Valid() {
				return nil, fmt.Errorf("action %s: unknown role %q", action, r)
			}
		}
	}
	return &t, nil
}

// Decide evaluates the rule of a route pattern for p. Unknown patterns are denied.
func (t *Table) Decide(pattern string, p Principal) Decision {
	rule, ok := t.Routes[pattern]
	if !ok {
		return Deny
	}
	if rule.Public {
		return Allow
	}
	if p.Loading {
		return Wait
	}
	if !p.SignedIn {
		return Login
	}
	if len(rule.Roles) == 0 || hasRole(rule.Roles, p.Role) {
		return Allow
	}
	return Deny
}

// Can reports whether role may perform action.
func (t *Table) Can(role models.Role, action string) bool {
	return hasRole(t.Actions[action], role)
}

// Public reports whether pattern is reachable without a session.
func (t *Table) Public(pattern string) bool {
	return t.Routes[pattern].Public
}

// Visible lists the route patterns role may open, sorted.
func (t *Table) Visible(role models.Role) []string {
	var out []string
	for pattern, rule := range t.Routes {
		if !rule.Public && (len(rule.Roles) == 0 || hasRole(rule.Roles, role)) {
			out = append(out, pattern)
		}
	}
	sort.Strings(out)
	return out
}

func hasRole(roles []models.Role, role models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
