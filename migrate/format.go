package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Migration files are named "<version>_<name>.up.sql" and
// "<version>_<name>.down.sql" and hold one statement per line.
const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

var fileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.(up|down)\.sql$`)

// FileNames returns the names of the up and down files of m.
func FileNames(m *Migration) (up, down string) {
	return m.ID() + upSuffix, m.ID() + downSuffix
}

// ParseFileName splits a migration file name into its version, name and
// direction. ok is false for files that are not migration files.
func ParseFileName(file string) (version, name string, up, ok bool) {
	sm := fileRe.FindStringSubmatch(file)
	if sm == nil {
		return "", "", false, false
	}
	return sm[1], sm[2], sm[3] == "up", true
}

// Encode renders the statements of one direction of m as a migration
// file. The header identifies the unit; statements end with a semicolon.
func Encode(m *Migration, direction string, stmts []string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "-- %s %s: %s\n", direction, m.Version, m.Name)
	fmt.Fprintf(&b, "-- id: %s\n", uuid.NewString())
	for _, s := range stmts {
		s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
		b.WriteString(strings.TrimSuffix(s, ";"))
		b.WriteString(";\n")
	}
	return b.Bytes()
}

// Decode returns the statements of a migration file. Empty lines and
// comment lines are skipped.
func Decode(data []byte) ([]string, error) {
	var (
		stmts []string
		sc    = bufio.NewScanner(bytes.NewReader(data))
	)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		stmts = append(stmts, strings.TrimSuffix(line, ";"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("migrate: decode: %w", err)
	}
	return stmts, nil
}

// file is one migration file.
type file struct {
	name string
	data []byte
}

// assemble groups migration files into migrations. Unrelated files are
// ignored.
func assemble(files []file) ([]*Migration, error) {
	byID := make(map[string]*Migration)
	var ms []*Migration
	for _, f := range files {
		version, name, up, ok := ParseFileName(f.name)
		if !ok {
			continue
		}
		m, ok := byID[version+"_"+name]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byID[m.ID()] = m
			ms = append(ms, m)
		}
		stmts, err := Decode(f.data)
		if err != nil {
			return nil, fmt.Errorf("migrate: file %s: %w", f.name, err)
		}
		if up {
			m.Up = stmts
		} else {
			m.Down = stmts
		}
	}
	seen := make(map[string]string, len(ms))
	for _, m := range ms {
		if other, ok := seen[m.Version]; ok {
			return nil, fmt.Errorf("migrate: version %s used by %s and %s", m.Version, other, m.ID())
		}
		seen[m.Version] = m.ID()
	}
	Sort(ms)
	return ms, nil
}
