package schema

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/syssam/schemasync/schema/field"
)

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Registry holds the registered entities in registration order. Entities are
// validated and copied on registration; a Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entities []*Entity
	byName   map[string]*Entity
	byTable  map[string]*Entity
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*Entity),
		byTable: make(map[string]*Entity),
	}
}

// Register validates and adds entities to the registry. Either all the
// given entities are registered or none is.
func (r *Registry) Register(entities ...*Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		errs  []error
		added = make([]*Entity, 0, len(entities))
		names = make(map[string]bool)
		tabs  = make(map[string]bool)
	)
	for _, e := range entities {
		if e == nil {
			errs = append(errs, errors.New("schema: nil entity"))
			continue
		}
		c := e.clone()
		if c.Table == "" {
			c.Table = DefaultTable(c.Name)
		}
		if err := validate(c); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := r.byName[c.Name]; ok || names[c.Name] {
			errs = append(errs, &MetadataError{Entity: c.Name, Reason: "entity registered twice"})
			continue
		}
		if _, ok := r.byTable[c.Table]; ok || tabs[c.Table] {
			errs = append(errs, &MetadataError{Entity: c.Name, Reason: fmt.Sprintf("table %q is already mapped", c.Table)})
			continue
		}
		names[c.Name], tabs[c.Table] = true, true
		added = append(added, c)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	for _, c := range added {
		r.entities = append(r.entities, c)
		r.byName[c.Name] = c
		r.byTable[c.Table] = c
	}
	return nil
}

// Entities returns the registered entities in registration order.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Entity(nil), r.entities...)
}

// Entity returns the registered entity with the given name.
func (r *Registry) Entity(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// TargetTable returns the table of the target entity, or its default table
// name if the target is not registered.
func (r *Registry) TargetTable(target string) string {
	if e, ok := r.Entity(target); ok {
		return e.Table
	}
	return DefaultTable(target)
}

// ReferencedColumn returns the column a many-to-one reference points at.
func (r *Registry) ReferencedColumn(ref *field.ManyToOne) string {
	if ref.ReferencedColumn != "" {
		return ref.ReferencedColumn
	}
	return r.identityOf(ref.Target).Name
}

// ReferenceType returns the semantic type of a column referencing target.
func (r *Registry) ReferenceType(target string) field.Type {
	return r.identityOf(target).Type
}

// identityOf returns the identity of target, or an int64 "id" if the target
// is not registered.
func (r *Registry) identityOf(target string) *field.Identity {
	if e, ok := r.Entity(target); ok {
		if id := e.Identity(); id != nil {
			return id
		}
	}
	return &field.Identity{Name: "id", Type: field.TypeInt64}
}

// JoinTable is a resolved many-to-many join table.
type JoinTable struct {
	Name string
	// Owner is the entity declaring the relation and Target the other side.
	Owner, Target *Entity
	// Column references the owner and InverseColumn the target.
	Column, InverseColumn string
}

// JoinTables resolves the join tables of every many-to-many relation whose
// both sides are registered. A relation declared on both sides is returned
// once, for the side registered first; a join table named on either side
// names the relation. Two sides naming different join tables are distinct
// relations.
func (r *Registry) JoinTables() []*JoinTable {
	type side struct {
		jt    *JoinTable
		named bool
	}
	var (
		tables []*JoinTable
		seen   = make(map[string]bool)
		// open holds the relations still waiting for their mirror side,
		// keyed by owner and target entity names.
		open = make(map[[2]string][]*side)
	)
	for _, owner := range r.Entities() {
		for _, rel := range owner.ManyToMany() {
			target, ok := r.Entity(rel.Target)
			if !ok {
				continue
			}
			if owner.Name != target.Name {
				key := [2]string{target.Name, owner.Name}
				if i := slices.IndexFunc(open[key], func(s *side) bool {
					return !s.named || rel.JoinTable == "" || s.jt.Name == rel.JoinTable
				}); i >= 0 {
					s := open[key][i]
					open[key] = slices.Delete(open[key], i, i+1)
					if rel.JoinTable != "" && !s.named {
						delete(seen, s.jt.Name)
						s.jt.Name = rel.JoinTable
						seen[s.jt.Name] = true
					}
					// Columns named on the mirror side are seen from the target.
					if rel.JoinColumn != "" {
						s.jt.InverseColumn = rel.JoinColumn
					}
					if rel.InverseJoinColumn != "" {
						s.jt.Column = rel.InverseJoinColumn
					}
					continue
				}
			}
			jt := &JoinTable{
				Name:          rel.JoinTable,
				Owner:         owner,
				Target:        target,
				Column:        rel.JoinColumn,
				InverseColumn: rel.InverseJoinColumn,
			}
			if jt.Name == "" {
				jt.Name = owner.Table + "_" + target.Table
			}
			if jt.Column == "" {
				jt.Column = inflect.Underscore(owner.Name) + "_id"
			}
			if jt.InverseColumn == "" {
				jt.InverseColumn = inflect.Underscore(target.Name) + "_id"
				if jt.InverseColumn == jt.Column {
					// Self relation, e.g. "friends" → "friend_id".
					jt.InverseColumn = inflect.Underscore(inflect.Singularize(rel.Name)) + "_id"
				}
			}
			if seen[jt.Name] {
				continue
			}
			seen[jt.Name] = true
			tables = append(tables, jt)
			if owner.Name != target.Name {
				key := [2]string{owner.Name, target.Name}
				open[key] = append(open[key], &side{jt: jt, named: rel.JoinTable != ""})
			}
		}
	}
	return tables
}

// validate checks the invariants of a single entity.
func validate(e *Entity) error {
	if e.Name == "" {
		return &MetadataError{Entity: e.Name, Reason: "missing entity name"}
	}
	if !identRe.MatchString(e.Table) {
		return &MetadataError{Entity: e.Name, Reason: fmt.Sprintf("invalid table name %q", e.Table)}
	}
	var (
		ids     int
		columns = make(map[string]string)
	)
	column := func(f field.Descriptor, name string) error {
		if !identRe.MatchString(name) {
			return &MetadataError{Entity: e.Name, Field: f.FieldName(), Reason: fmt.Sprintf("invalid column name %q", name)}
		}
		if other, ok := columns[name]; ok {
			return &MetadataError{Entity: e.Name, Field: f.FieldName(), Reason: fmt.Sprintf("column %q already declared by field %q", name, other)}
		}
		columns[name] = f.FieldName()
		return nil
	}
	for i, f := range e.Fields {
		if f == nil {
			return &MetadataError{Entity: e.Name, Reason: fmt.Sprintf("nil field at position %d", i)}
		}
		var err error
		switch f := f.(type) {
		case *field.Identity:
			ids++
			if !f.Type.Valid() {
				return &MetadataError{Entity: e.Name, Field: f.Name, Reason: "invalid identity type"}
			}
			if f.AutoIncrement && !f.Type.Integer() {
				return &MetadataError{Entity: e.Name, Field: f.Name, Reason: fmt.Sprintf("auto-increment identity must be an integer, got %s", f.Type)}
			}
			err = column(f, f.Name)
		case *field.Column:
			if !f.Type.Valid() && f.RawType == "" {
				return &MetadataError{Entity: e.Name, Field: f.Name, Reason: "missing column type"}
			}
			if f.Size < 0 || f.Precision < 0 || f.Scale < 0 || f.Scale > f.Precision {
				return &MetadataError{Entity: e.Name, Field: f.Name, Reason: "invalid size, precision or scale"}
			}
			err = column(f, f.Name)
		case *field.ManyToOne:
			if f.Target == "" {
				return &MetadataError{Entity: e.Name, Field: f.Name, Reason: "missing target entity"}
			}
			if f.JoinColumn == "" {
				return &MetadataError{Entity: e.Name, Field: f.Name, Reason: "missing join column"}
			}
			err = column(f, f.JoinColumn)
		case *field.OneToMany:
			if f.Target == "" {
				return &MetadataError{Entity: e.Name, Field: f.Name, Reason: "missing target entity"}
			}
		case *field.ManyToMany:
			if f.Target == "" {
				return &MetadataError{Entity: e.Name, Field: f.Name, Reason: "missing target entity"}
			}
			for _, name := range []string{f.JoinTable, f.JoinColumn, f.InverseJoinColumn} {
				if name != "" && !identRe.MatchString(name) {
					return &MetadataError{Entity: e.Name, Field: f.Name, Reason: fmt.Sprintf("invalid join table name %q", name)}
				}
			}
		case *field.CreatedTimestamp:
			err = column(f, f.Name)
		case *field.UpdatedTimestamp:
			err = column(f, f.Name)
		}
		if err != nil {
			return err
		}
	}
	if ids != 1 {
		return &MetadataError{Entity: e.Name, Reason: fmt.Sprintf("expected exactly one identity field, got %d", ids)}
	}
	return nil
}
