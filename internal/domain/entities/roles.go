package entities

import (
	"fmt"
	"slices"
)

// DeclinedRoleKey is the reserved role key of the "declined" choice.
const DeclinedRoleKey = "declined"

// DefaultDeclinedGlyph is used when the configuration omits one.
const DefaultDeclinedGlyph = "❌"

// RoleDefinition is one signup category shown on the board.
type RoleDefinition struct {
	Key             string   `toml:"key" yaml:"key" json:"key"`
	Label           string   `toml:"label" yaml:"label" json:"label"`
	Glyph           string   `toml:"emoji" yaml:"emoji" json:"emoji"`
	AcceptedRoleIDs []string `toml:"role_ids_accepted" yaml:"role_ids_accepted" json:"role_ids_accepted"`
}

// RoleConfig is the ordered list of signup categories plus the declined
// choice. It is read-only once loaded.
type RoleConfig struct {
	Roles    []RoleDefinition `toml:"signup_roles" yaml:"signup_roles" json:"signup_roles"`
	Declined RoleDefinition   `toml:"declined" yaml:"declined" json:"declined"`
}

// Normalize fills in the declined definition defaults.
func (c *RoleConfig) Normalize() {
	c.Declined.Key = DeclinedRoleKey
	if c.Declined.Glyph == "" {
		c.Declined.Glyph = DefaultDeclinedGlyph
	}
	if c.Declined.Label == "" {
		c.Declined.Label = "Declined"
	}
	c.Declined.AcceptedRoleIDs = nil
}

// Validate checks that keys and glyphs are unique and that no signup role
// uses the reserved declined key.
func (c *RoleConfig) Validate() error {
	if len(c.Roles) == 0 {
		return fmt.Errorf("roles: at least one signup role is required")
	}
	keys := make(map[string]bool, len(c.Roles))
	glyphs := map[string]string{c.Declined.Glyph: DeclinedRoleKey}
	for i, r := range c.Roles {
		switch {
		case r.Key == "":
			return fmt.Errorf("roles: signup role #%d has no key", i+1)
		case r.Key == DeclinedRoleKey:
			return fmt.Errorf("roles: key %q is reserved", DeclinedRoleKey)
		case r.Glyph == "":
			return fmt.Errorf("roles: role %q has no emoji", r.Key)
		case keys[r.Key]:
			return fmt.Errorf("roles: duplicate key %q", r.Key)
		}
		if other, ok := glyphs[r.Glyph]; ok {
			return fmt.Errorf("roles: emoji %s used by both %q and %q", r.Glyph, other, r.Key)
		}
		keys[r.Key] = true
		glyphs[r.Glyph] = r.Key
	}
	return nil
}

// GlyphToRoleKey maps a reaction glyph to its role key.
func (c *RoleConfig) GlyphToRoleKey(glyph string) (string, bool) {
	for _, r := range c.Roles {
		if r.Glyph == glyph {
			return r.Key, true
		}
	}
	if c.Declined.Glyph == glyph {
		return DeclinedRoleKey, true
	}
	return "", false
}

// RoleKeyToGlyph maps a role key back to its glyph.
func (c *RoleConfig) RoleKeyToGlyph(key string) (string, bool) {
	if key == DeclinedRoleKey {
		return c.Declined.Glyph, true
	}
	for _, r := range c.Roles {
		if r.Key == key {
			return r.Glyph, true
		}
	}
	return "", false
}

// Role returns the definition for key, including the declined one.
func (c *RoleConfig) Role(key string) (RoleDefinition, bool) {
	if key == DeclinedRoleKey {
		return c.Declined, true
	}
	for _, r := range c.Roles {
		if r.Key == key {
			return r, true
		}
	}
	return RoleDefinition{}, false
}

// Glyphs lists every glyph to seed on a new post: signup roles in order,
// declined last.
func (c *RoleConfig) Glyphs() []string {
	out := make([]string, 0, len(c.Roles)+1)
	for _, r := range c.Roles {
		out = append(out, r.Glyph)
	}
	return append(out, c.Declined.Glyph)
}

// Eligible reports whether a member holding memberRoles may sign up under
// key. The declined choice and roles without accepted ids are open to
// everyone.
func (c *RoleConfig) Eligible(key string, memberRoles []string) bool {
	def, ok := c.Role(key)
	if !ok {
		return false
	}
	if len(def.AcceptedRoleIDs) == 0 {
		return true
	}
	for _, id := range def.AcceptedRoleIDs {
		if slices.Contains(memberRoles, id) {
			return true
		}
	}
	return false
}
