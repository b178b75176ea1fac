package sqlinline

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"productstudio/internal/infra"
)

// Every statement constant in this package must carry a unique --sql marker
// so SQLRunner can execute it and its logs can be traced back.
func TestStatementsCarryUniqueMarkers(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}

	seen := map[string]string{}
	fset := token.NewFileSet()
	for _, path := range files {
		if strings.HasSuffix(path, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.CONST {
				continue
			}
			for _, spec := range gen.Specs {
				vs := spec.(*ast.ValueSpec)
				for i, name := range vs.Names {
					lit, ok := vs.Values[i].(*ast.BasicLit)
					if !ok || lit.Kind != token.STRING {
						continue
					}
					query, err := strconv.Unquote(lit.Value)
					if err != nil {
						t.Fatalf("%s: unquote: %v", name.Name, err)
					}
					marker, err := infra.QueryMarker(query)
					if err != nil {
						t.Errorf("%s (%s): %v", name.Name, path, err)
						continue
					}
					if prev, dup := seen[marker]; dup {
						t.Errorf("%s reuses marker %s from %s", name.Name, marker, prev)
					}
					seen[marker] = name.Name
				}
			}
		}
	}
	if len(seen) == 0 {
		t.Fatalf("no statements found")
	}
}
