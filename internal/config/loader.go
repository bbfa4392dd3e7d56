// Project: Latent Health Discretization and Filtration

package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed specs/*.yaml
var builtinSpecs embed.FS

// ErrSpecNotFound is returned by a Provider that has no specification under
// the requested name.
var ErrSpecNotFound = errors.New("specification not found")

// Provider resolves a specification by name.
type Provider interface {
	Specification(name string) (*Specification, error)
}

// DirProvider reads <Dir>/<name>.yaml.
type DirProvider struct {
	Dir string
}

func (p DirProvider) Specification(name string) (*Specification, error) {
	data, err := os.ReadFile(filepath.Join(p.Dir, name+".yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s in %s: %w", name, p.Dir, ErrSpecNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read specification %s: %w", name, err)
	}
	return parse(name, data)
}

// EmbeddedProvider serves the specifications compiled into the binary.
type EmbeddedProvider struct{}

func (EmbeddedProvider) Specification(name string) (*Specification, error) {
	data, err := builtinSpecs.ReadFile("specs/" + name + ".yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s (built in): %w", name, ErrSpecNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read built-in specification %s: %w", name, err)
	}
	return parse(name, data)
}

// BuiltinNames lists the embedded specification names in sorted order.
func BuiltinNames() []string {
	entries, err := builtinSpecs.ReadDir("specs")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// ChainProvider asks each provider in turn and returns the first hit.
type ChainProvider []Provider

func (c ChainProvider) Specification(name string) (*Specification, error) {
	for _, p := range c {
		spec, err := p.Specification(name)
		if errors.Is(err, ErrSpecNotFound) {
			continue
		}
		return spec, err
	}
	return nil, fmt.Errorf("%s: %w", name, ErrSpecNotFound)
}

// NewProvider searches dir first, when set, then the built-in catalog.
func NewProvider(dir string) Provider {
	if dir == "" {
		return EmbeddedProvider{}
	}
	return ChainProvider{DirProvider{Dir: dir}, EmbeddedProvider{}}
}

func parse(name string, data []byte) (*Specification, error) {
	var spec Specification
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse specification %s: %w", name, err)
	}
	spec.Name = name
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}
