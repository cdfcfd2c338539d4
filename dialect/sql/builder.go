package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/syssam/schemasync/dialect"
)

// validIdentifierRe accepts plain identifiers, optionally schema qualified.
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// escapeStringValue doubles single quotes and escapes backslashes, which
// MySQL treats as escape characters inside string literals.
func escapeStringValue(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", "''")
}

// validTypeRe accepts column type expressions such as "VARCHAR(255)",
// "DECIMAL(10,2)", "DOUBLE PRECISION" or "ENUM('a','b')".
var validTypeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_ ]*(\([a-zA-Z0-9_, ']*\))?( [a-zA-Z]+)*$`)

// ValidType reports whether t is a column type expression the builder
// accepts.
func ValidType(t string) bool {
	return validTypeRe.MatchString(t) && !strings.Contains(t, "--")
}

// Builder is a low-level SQL string builder. Identifiers and type
// expressions are validated as they are written and violations are
// reported by Err.
type Builder struct {
	sb   strings.Builder
	errs []error
}

// WriteString writes a raw SQL fragment.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte writes a single byte.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Pad writes a space.
func (b *Builder) Pad() *Builder { return b.WriteByte(' ') }

// Ident writes a validated identifier.
func (b *Builder) Ident(s string) *Builder {
	if !isValidIdentifier(s) {
		b.AddError(fmt.Errorf("dialect/sql: invalid identifier %q", s))
	}
	return b.WriteString(s)
}

// IdentComma writes a comma separated list of identifiers.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(s[i])
	}
	return b
}

// Type writes a validated column type expression.
func (b *Builder) Type(t string) *Builder {
	if !ValidType(t) {
		b.AddError(fmt.Errorf("dialect/sql: invalid column type %q", t))
	}
	return b.WriteString(t)
}

// Quote writes s as an escaped string literal.
func (b *Builder) Quote(s string) *Builder {
	return b.WriteByte('\'').WriteString(escapeStringValue(s)).WriteByte('\'')
}

// Wrap writes "(", calls f and writes ")".
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.WriteByte('(')
	f(b)
	return b.WriteByte(')')
}

// AddError records an error on the builder.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns the errors recorded while building, joined.
func (b *Builder) Err() error { return errors.Join(b.errs...) }

// String returns the accumulated statement.
func (b *Builder) String() string { return b.sb.String() }

// Query returns the statement and the building error, if any.
func (b *Builder) Query() (string, error) {
	if err := b.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Placeholder returns the bind parameter marker for the i-th (1-based)
// argument of a statement in the given dialect.
func Placeholder(name string, i int) string {
	switch dialectOf(name) {
	case dialect.Postgres:
		return fmt.Sprintf("$%d", i)
	case dialect.SQLServer:
		return fmt.Sprintf("@p%d", i)
	default:
		return "?"
	}
}
