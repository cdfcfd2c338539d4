package migrate

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
)

// VersionFormat is the layout of migration versions. Versions sort
// lexicographically in creation order.
const VersionFormat = "20060102150405"

// Migration is a versioned, reversible unit of schema statements.
type Migration struct {
	Version string
	Name    string
	// Up holds the statements applying the migration, in order.
	Up []string
	// Down holds the statements reverting it, in order.
	Down []string
}

// NewVersion returns the version of a migration created at t.
func NewVersion(t time.Time) string {
	return t.UTC().Format(VersionFormat)
}

var nameRe = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeName turns a free-form name into a file name friendly one,
// e.g. "Add user email" → "add_user_email".
func NormalizeName(name string) string {
	name = strings.Trim(nameRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if name == "" {
		return "changes"
	}
	return name
}

// ID returns "<version>_<name>".
func (m *Migration) ID() string {
	return m.Version + "_" + m.Name
}

func (m *Migration) String() string {
	return fmt.Sprintf("%s (%d up, %d down)", m.ID(), len(m.Up), len(m.Down))
}

// Sort sorts migrations by ascending version.
func Sort(ms []*Migration) {
	slices.SortStableFunc(ms, func(a, b *Migration) int {
		return strings.Compare(a.Version, b.Version)
	})
}

var registry = struct {
	sync.Mutex
	m map[string]*Migration
}{m: make(map[string]*Migration)}

// Register makes a compiled-in migration available to Registered. It is
// called from the init functions of generated Go migrations and panics if
// a version is registered twice.
func Register(m *Migration) {
	registry.Lock()
	defer registry.Unlock()
	if m == nil {
		panic("migrate: Register migration is nil")
	}
	if _, dup := registry.m[m.Version]; dup {
		panic("migrate: Register called twice for version " + m.Version)
	}
	registry.m[m.Version] = m
}

// Registered returns the compiled-in migrations sorted by version.
func Registered() []*Migration {
	registry.Lock()
	defer registry.Unlock()
	ms := make([]*Migration, 0, len(registry.m))
	for _, m := range registry.m {
		ms = append(ms, m)
	}
	Sort(ms)
	return ms
}

// unregister is used by tests.
func unregister(version string) {
	registry.Lock()
	defer registry.Unlock()
	delete(registry.m, version)
}
