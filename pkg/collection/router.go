// Package collection maps memory levels and role or project identifiers to
// vector store collection names.
//
// Two families of collections exist:
//   - Global role collections, one per Role, named "<role>-patterns".
//   - Project collections, named "proj-<sanitized project name>".
//
// Resolution is a pure function of its inputs; it never touches the store.
package collection

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role identifies a global knowledge domain.
type Role string

const (
	RoleUniversal Role = "universal"
	RoleBackend   Role = "backend"
	RoleFrontend  Role = "frontend"
	RoleQuant     Role = "quant"
	RoleDevOps    Role = "devops"
	RoleML        Role = "ml"
	RoleSecurity  Role = "security"
	RoleMobile    Role = "mobile"
)

const (
	// LevelGlobal selects the role collections.
	LevelGlobal = "global"

	// LevelProject is reported for every collection that is not a role collection.
	LevelProject = "project"

	// ProjectPrefix marks an already resolved project collection name.
	ProjectPrefix = "proj-"

	roleSuffix = "-patterns"
)

// ErrEmptyName is returned when a project name sanitizes to nothing.
var ErrEmptyName = errors.New("project name sanitizes to an empty collection name")

var roles = []Role{
	RoleUniversal,
	RoleBackend,
	RoleFrontend,
	RoleQuant,
	RoleDevOps,
	RoleML,
	RoleSecurity,
	RoleMobile,
}

// Roles returns the fixed set of roles in declaration order.
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// ParseRole returns the Role named by s. Matching is case-insensitive and
// ignores surrounding whitespace.
func ParseRole(s string) (Role, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Valid reports whether r is one of the fixed roles.
func (r Role) Valid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

// CollectionName returns the global collection backing r.
func (r Role) CollectionName() string {
	return string(r) + roleSuffix
}

// RoleCollections returns the names of all global role collections.
func RoleCollections() []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.CollectionName()
	}
	return names
}

// Router resolves collection names. The zero value is usable; ProjectContext
// is only consulted for the legacy form where no level is given at all.
type Router struct {
	// ProjectContext names the project used when the level is empty.
	// When unset, the base name of the working directory is used.
	ProjectContext string
}

// Resolve returns the collection for level and roleOrProject using a zero Router.
func Resolve(level, roleOrProject string) (string, error) {
	var r Router
	return r.Resolve(level, roleOrProject)
}

// Resolve maps a memory level and role to a collection name:
//   - "global" selects "<role>-patterns"; unknown or empty roles select universal.
//   - a level starting with "proj-" is returned unchanged.
//   - any other level is a raw project name and is sanitized.
//
// The result is always a fixed point: Resolve(Resolve(x)) == Resolve(x).
func (r Router) Resolve(level, roleOrProject string) (string, error) {
	switch {
	case level == LevelGlobal:
		role, ok := ParseRole(roleOrProject)
		if !ok {
			role = RoleUniversal
		}
		return role.CollectionName(), nil
	case strings.HasPrefix(level, ProjectPrefix):
		return level, nil
	case level == "":
		return r.projectCollection(r.projectContext())
	default:
		return r.projectCollection(level)
	}
}

func (r Router) projectCollection(name string) (string, error) {
	sanitized := Sanitize(name)
	if sanitized == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptyName, name)
	}
	return ProjectPrefix + sanitized, nil
}

func (r Router) projectContext() string {
	if r.ProjectContext != "" {
		return r.ProjectContext
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Base(wd)
	}
	return ""
}

// Sanitize lowercases name and collapses every run of characters outside
// [a-z0-9] into a single '-'. Leading and trailing separators are removed.
// Accented letters are outside the set: "Café" becomes "caf".
func Sanitize(name string) string {
	lowered := cases.Lower(language.Und).String(name)

	var b strings.Builder
	b.Grow(len(lowered))
	pendingSep := false
	for _, c := range lowered {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(c)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Classify reports the level of a collection and, for role collections,
// the role it belongs to.
func Classify(name string) (string, *Role) {
	for _, r := range roles {
		if r.CollectionName() == name {
			role := r
			return LevelGlobal, &role
		}
	}
	return LevelProject, nil
}
