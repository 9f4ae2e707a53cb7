package main

import (
	"bufio"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// finding is one missing doc comment.
type finding struct {
	pos token.Position
	msg string
}

// String formats the finding the way compilers do.
func (f finding) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", relativePath(f.pos.Filename), f.pos.Line, f.pos.Column, f.msg)
}

// filter decides which files are linted.
type filter struct {
	dirs  []string
	files []*regexp.Regexp
}

// newFilter builds a filter from the golangci exclude settings.
func newFilter(cfg golangciConfig) (filter, error) {
	f := filter{}
	for _, d := range cfg.Issues.ExcludeDirs {
		d = strings.TrimSpace(strings.TrimPrefix(d, "./"))
		if d != "" {
			f.dirs = append(f.dirs, filepath.ToSlash(d))
		}
	}
	for _, p := range cfg.Issues.ExcludeFiles {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		rx, err := regexp.Compile(p)
		if err != nil {
			return filter{}, fmt.Errorf("invalid exclude regex %q: %w", p, err)
		}
		f.files = append(f.files, rx)
	}
	return f, nil
}

// skip reports whether the slash-separated relative path is excluded.
func (f filter) skip(rel string) bool {
	for _, d := range f.dirs {
		if rel == d || strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	for _, rx := range f.files {
		if rx.MatchString(rel) {
			return true
		}
	}
	return false
}

// checkFile parses filename and reports functions with a body and exported
// types that carry no doc comment.
func checkFile(fset *token.FileSet, filename string) ([]finding, error) {
	f, err := parser.ParseFile(fset, filename, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	var out []finding
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Body != nil && !documented(d.Doc) {
				out = append(out, finding{pos: fset.Position(d.Pos()), msg: fmt.Sprintf("missing doc comment for function %q", d.Name.Name)})
			}
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts := spec.(*ast.TypeSpec)
				if !ts.Name.IsExported() || documented(ts.Doc) || (len(d.Specs) == 1 && documented(d.Doc)) {
					continue
				}
				out = append(out, finding{pos: fset.Position(ts.Pos()), msg: fmt.Sprintf("missing doc comment for type %q", ts.Name.Name)})
			}
		}
	}
	return out, nil
}

// documented reports whether a comment group has text.
func documented(doc *ast.CommentGroup) bool {
	return doc != nil && strings.TrimSpace(doc.Text()) != ""
}

// isGeneratedFile checks the first lines for the standard generated-code marker.
func isGeneratedFile(filename string) bool {
	f, err := os.Open(filename)
	if err != nil {
		return false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for i := 0; i < 10 && scanner.Scan(); i++ {
		line := scanner.Text()
		if strings.Contains(line, "Code generated") || strings.Contains(line, "DO NOT EDIT") {
			return true
		}
	}
	return false
}

// relativePath converts a path to one relative to the working directory when possible.
func relativePath(path string) string {
	if rel, err := filepath.Rel(".", path); err == nil {
		return rel
	}
	return path
}
