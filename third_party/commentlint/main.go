// Package main runs the commentlint CLI.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type pkgInfo struct {
	Dir         string   `json:"Dir"`
	GoFiles     []string `json:"GoFiles"`
	TestGoFiles []string `json:"TestGoFiles"`
}

type golangciConfig struct {
	Issues struct {
		MaxIssuesPerLinter int      `yaml:"max-issues-per-linter"`
		ExcludeDirs        []string `yaml:"exclude-dirs"`
		ExcludeFiles       []string `yaml:"exclude-files"`
	} `yaml:"issues"`
}

// main is the entrypoint for the comment linter CLI.
func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [packages]\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Ensures every function and exported type has a doc comment. Defaults to ./...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	patterns := flag.Args()
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	if err := run(patterns); err != nil {
		fmt.Fprintf(os.Stderr, "commentlint: %v\n", err)
		os.Exit(1)
	}
}

// errFindings signals that findings were printed.
var errFindings = errors.New("missing doc comments")

// run lints the packages matching patterns.
func run(patterns []string) error {
	cfg, err := loadConfig(".golangci.yml")
	if err != nil {
		return err
	}
	skip, err := newFilter(cfg)
	if err != nil {
		return err
	}
	pkgs, err := listPackages(patterns)
	if err != nil {
		return err
	}

	limit := cfg.Issues.MaxIssuesPerLinter
	fset := token.NewFileSet()
	var findings []finding
	for _, pkg := range pkgs {
		files := append(append([]string{}, pkg.GoFiles...), pkg.TestGoFiles...)
		for _, file := range files {
			filename := filepath.Join(pkg.Dir, file)
			if skip.skip(filepath.ToSlash(relativePath(filename))) || isGeneratedFile(filename) {
				continue
			}
			found, err := checkFile(fset, filename)
			if err != nil {
				return err
			}
			findings = append(findings, found...)
		}
	}
	if len(findings) == 0 {
		return nil
	}
	truncated := limit > 0 && len(findings) > limit
	if truncated {
		findings = findings[:limit]
	}
	for _, f := range findings {
		fmt.Fprintln(os.Stderr, f)
	}
	if truncated {
		fmt.Fprintf(os.Stderr, "commentlint: output truncated after %d issues (see .golangci.yml)\n", limit)
	}
	return errFindings
}

// loadConfig reads the golangci-lint settings; a missing file is empty.
func loadConfig(path string) (golangciConfig, error) {
	var cfg golangciConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// listPackages invokes `go list -json` for the provided patterns.
func listPackages(patterns []string) ([]pkgInfo, error) {
	args := append([]string{"list", "-json"}, patterns...)
	cmd := exec.Command("go", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bufio.NewReader(stdout))
	var pkgs []pkgInfo
	for dec.More() {
		var info pkgInfo
		if err := dec.Decode(&info); err != nil {
			_ = cmd.Wait()
			return nil, err
		}
		pkgs = append(pkgs, info)
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return pkgs, nil
}
