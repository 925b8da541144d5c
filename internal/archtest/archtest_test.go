package archtest

import (
	"bufio"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const internalRoot = ".."

// Packages allowed to spawn goroutines: the pool implementation itself.
var goroutineExempt = []string{
	"pkg/worker",
}

// Fields a River job argument struct may carry.
var allowedJobArgFields = map[string]bool{
	"EventID": true,
}

func TestNoNakedGoroutines(t *testing.T) {
	var violations []string
	walkSources(t, internalRoot, func(path string, fset *token.FileSet, file *ast.File) {
		rel, _ := filepath.Rel(internalRoot, path)
		rel = filepath.ToSlash(rel)
		for _, exempt := range goroutineExempt {
			if strings.HasPrefix(rel, exempt+"/") {
				return
			}
		}
		if hasFileNolint(path, "naked-goroutine") {
			return
		}

		suppressed := nolintLines(fset, file, "naked-goroutine")
		ast.Inspect(file, func(n ast.Node) bool {
			stmt, ok := n.(*ast.GoStmt)
			if !ok {
				return true
			}
			line := fset.Position(stmt.Pos()).Line
			if !suppressed[line] {
				violations = append(violations, fmt.Sprintf("%s:%d: naked goroutine; submit to a worker pool instead", rel, line))
			}
			return true
		})
	})

	if len(violations) > 0 {
		t.Fatalf("naked goroutines found:\n%s", strings.Join(violations, "\n"))
	}
}

func TestJobArgsAreClaimChecks(t *testing.T) {
	var (
		violations []string
		argsSeen   int
	)
	walkSources(t, filepath.Join(internalRoot, "jobs"), func(path string, fset *token.FileSet, file *ast.File) {
		ast.Inspect(file, func(n ast.Node) bool {
			ts, ok := n.(*ast.TypeSpec)
			if !ok || !strings.HasSuffix(ts.Name.Name, "Args") {
				return true
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				return true
			}
			argsSeen++
			for _, field := range st.Fields.List {
				for _, ident := range field.Names {
					if !allowedJobArgFields[ident.Name] {
						violations = append(violations, fmt.Sprintf("%s:%d: %s carries %s; job args may only reference the stored event",
							filepath.Base(path), fset.Position(field.Pos()).Line, ts.Name.Name, ident.Name))
					}
				}
			}
			return true
		})
	})

	if argsSeen == 0 {
		t.Fatal("no job argument types found; has internal/jobs moved?")
	}
	if len(violations) > 0 {
		t.Fatalf("job args violate the claim-check rule:\n%s", strings.Join(violations, "\n"))
	}
}

// walkSources parses every non-test Go file under root.
func walkSources(t *testing.T, root string, fn func(path string, fset *token.FileSet, file *ast.File)) {
	t.Helper()
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		fn(path, fset, file)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
}

// nolintLines returns the lines covered by a nolint:<tag> comment: the
// comment line, the line after it, and the whole body of a function whose
// doc comment carries the tag.
func nolintLines(fset *token.FileSet, file *ast.File, tag string) map[int]bool {
	lines := make(map[int]bool)
	marker := "nolint:" + tag
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil || fn.Doc == nil {
			continue
		}
		for _, c := range fn.Doc.List {
			if strings.Contains(c.Text, marker) {
				for l := fset.Position(fn.Body.Pos()).Line; l <= fset.Position(fn.Body.End()).Line; l++ {
					lines[l] = true
				}
			}
		}
	}
	for _, cg := range file.Comments {
		for _, c := range cg.List {
			if strings.Contains(c.Text, marker) {
				l := fset.Position(c.Pos()).Line
				lines[l] = true
				lines[l+1] = true
			}
		}
	}
	return lines
}

// hasFileNolint scans the first 20 lines of a file for a file-level nolint comment.
func hasFileNolint(path, tag string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; i < 20 && scanner.Scan(); i++ {
		if strings.Contains(scanner.Text(), "nolint:"+tag) {
			return true
		}
	}
	return false
}
