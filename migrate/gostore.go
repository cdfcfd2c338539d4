package migrate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"
)

const pkgPath = "github.com/syssam/schemasync/migrate"

// GoDir stores migrations as Go source files that register themselves
// with Register when compiled into a program. Migrations lists the
// compiled-in migrations, not the files on disk.
type GoDir struct {
	path string
	pkg  string
}

// NewGoDir returns a store writing files of package pkg to path.
func NewGoDir(path, pkg string) *GoDir {
	return &GoDir{path: path, pkg: pkg}
}

// Write implements the Store interface.
func (d *GoDir) Write(_ context.Context, m *Migration) error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("migrate: create directory: %w", err)
	}
	var b bytes.Buffer
	if err := GoSource(d.pkg, m).Render(&b); err != nil {
		return fmt.Errorf("migrate: render %s: %w", m.ID(), err)
	}
	name := filepath.Join(d.path, m.ID()+".go")
	if err := os.WriteFile(name, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("migrate: write %s: %w", name, err)
	}
	return nil
}

// Migrations implements the Store interface.
func (d *GoDir) Migrations(context.Context) ([]*Migration, error) {
	return Registered(), nil
}

// GoSource returns the Go file registering m:
//
//	func init() {
//		migrate.Register(&migrate.Migration{Version: "...", Name: "...", Up: []string{...}, Down: []string{...}})
//	}
func GoSource(pkg string, m *Migration) *jen.File {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by schemasync. DO NOT EDIT.")
	f.Func().Id("init").Params().Block(
		jen.Qual(pkgPath, "Register").Call(
			jen.Op("&").Qual(pkgPath, "Migration").Values(jen.Dict{
				jen.Id("Version"): jen.Lit(m.Version),
				jen.Id("Name"):    jen.Lit(m.Name),
				jen.Id("Up"):      stmts(m.Up),
				jen.Id("Down"):    stmts(m.Down),
			}),
		),
	)
	return f
}

func stmts(ss []string) jen.Code {
	lits := make([]jen.Code, len(ss))
	for i, s := range ss {
		lits[i] = jen.Line().Lit(s)
	}
	if len(lits) > 0 {
		lits = append(lits, jen.Line())
	}
	return jen.Index().String().Values(lits...)
}
