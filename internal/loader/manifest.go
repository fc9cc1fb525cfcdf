// Package loader reads declaration manifests and completes class and
// module symbols from them on demand.
//
// A manifest describes one module: its version, the modules it requires,
// and the packages and classes it declares. Classes are entered as stubs
// when a manifest is loaded; supertypes, members and permitted subclasses
// are resolved only when a class is first completed.
package loader

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orizon-lang/typecore/internal/errors"
	"github.com/orizon-lang/typecore/internal/position"
)

// Manifest is the decoded form of one declaration manifest.
type Manifest struct {
	Module   string        `yaml:"module" json:"module"`
	Version  string        `yaml:"version,omitempty" json:"version,omitempty"`
	Requires []Require     `yaml:"requires,omitempty" json:"requires,omitempty"`
	Exports  []string      `yaml:"exports,omitempty" json:"exports,omitempty"`
	Packages []PackageDecl `yaml:"packages" json:"packages"`

	// Source names where the manifest was read from.
	Source string `yaml:"-" json:"-"`
}

// Require is one requires directive. Version is a semver constraint.
type Require struct {
	Module     string `yaml:"module" json:"module"`
	Version    string `yaml:"version,omitempty" json:"version,omitempty"`
	Transitive bool   `yaml:"transitive,omitempty" json:"transitive,omitempty"`
}

// PackageDecl groups the classes of one package.
type PackageDecl struct {
	Name    string      `yaml:"name" json:"name"`
	Classes []ClassDecl `yaml:"classes" json:"classes"`
}

// ClassDecl declares a class or interface.
type ClassDecl struct {
	Name       string          `yaml:"name" json:"name"`
	Flags      []string        `yaml:"flags,omitempty" json:"flags,omitempty"`
	TypeParams []TypeParamDecl `yaml:"type_params,omitempty" json:"type_params,omitempty"`
	Extends    string          `yaml:"extends,omitempty" json:"extends,omitempty"`
	Implements []string        `yaml:"implements,omitempty" json:"implements,omitempty"`
	Permits    []string        `yaml:"permits,omitempty" json:"permits,omitempty"`
	Fields     []FieldDecl     `yaml:"fields,omitempty" json:"fields,omitempty"`
	Methods    []MethodDecl    `yaml:"methods,omitempty" json:"methods,omitempty"`
	Classes    []ClassDecl     `yaml:"classes,omitempty" json:"classes,omitempty"`

	Line   int `yaml:"-" json:"-"`
	Column int `yaml:"-" json:"-"`
}

// TypeParamDecl declares a type variable and its bounds.
type TypeParamDecl struct {
	Name   string   `yaml:"name" json:"name"`
	Bounds []string `yaml:"bounds,omitempty" json:"bounds,omitempty"`
}

// FieldDecl declares a field. Value is an optional constant.
type FieldDecl struct {
	Name  string   `yaml:"name" json:"name"`
	Type  string   `yaml:"type" json:"type"`
	Flags []string `yaml:"flags,omitempty" json:"flags,omitempty"`
	Value any      `yaml:"value,omitempty" json:"value,omitempty"`
}

// MethodDecl declares a method. An empty Returns means void.
type MethodDecl struct {
	Name       string          `yaml:"name" json:"name"`
	Flags      []string        `yaml:"flags,omitempty" json:"flags,omitempty"`
	TypeParams []TypeParamDecl `yaml:"type_params,omitempty" json:"type_params,omitempty"`
	Params     []ParamDecl     `yaml:"params,omitempty" json:"params,omitempty"`
	Returns    string          `yaml:"returns,omitempty" json:"returns,omitempty"`
	Throws     []string        `yaml:"throws,omitempty" json:"throws,omitempty"`
}

// ParamDecl declares a method parameter.
type ParamDecl struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// Span returns the declaration site of c within the manifest named source.
func (c *ClassDecl) Span(source string) position.Span {
	if c.Line == 0 {
		return position.Span{}
	}
	return position.Point(position.At(source, c.Line, c.Column))
}

// ParseManifest decodes data read from name. Files ending in .json are
// decoded as JSON; everything else is YAML, which also records the line of
// every class declaration.
func ParseManifest(name string, data []byte) (*Manifest, error) {
	var m Manifest
	if strings.EqualFold(filepath.Ext(name), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, errors.Wrap(errors.CategoryLoader, "manifest.parse", err, nil)
		}
	} else {
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, errors.Wrap(errors.CategoryLoader, "manifest.parse", err, nil)
		}
		if err := root.Decode(&m); err != nil {
			return nil, errors.Wrap(errors.CategoryLoader, "manifest.parse", err, nil)
		}
		if len(root.Content) > 0 {
			annotatePackages(m.Packages, mappingValue(root.Content[0], "packages"))
		}
	}
	m.Source = name
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	for _, p := range m.Packages {
		if p.Name == "" {
			return errors.Newf(errors.CategoryLoader, "manifest.invalid", m.Source, "package without a name")
		}
		if err := validateClasses(m.Source, p.Classes); err != nil {
			return err
		}
	}
	for _, r := range m.Requires {
		if r.Module == "" {
			return errors.Newf(errors.CategoryLoader, "manifest.invalid", m.Source, "requires without a module")
		}
	}
	return nil
}

func validateClasses(source string, classes []ClassDecl) error {
	seen := make(map[string]bool, len(classes))
	for _, c := range classes {
		if c.Name == "" || strings.ContainsAny(c.Name, ".<>[]$ ") {
			return errors.Newf(errors.CategoryLoader, "manifest.invalid", source, "bad class name "+c.Name)
		}
		if seen[c.Name] {
			return errors.Newf(errors.CategoryLoader, "manifest.invalid", source, "duplicate class "+c.Name)
		}
		seen[c.Name] = true
		if err := validateClasses(source, c.Classes); err != nil {
			return err
		}
	}
	return nil
}

// ====== Positions ======

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func annotatePackages(pkgs []PackageDecl, seq *yaml.Node) {
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return
	}
	for i := range pkgs {
		if i >= len(seq.Content) {
			return
		}
		annotateClasses(pkgs[i].Classes, mappingValue(seq.Content[i], "classes"))
	}
}

func annotateClasses(classes []ClassDecl, seq *yaml.Node) {
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return
	}
	for i := range classes {
		if i >= len(seq.Content) {
			return
		}
		n := seq.Content[i]
		classes[i].Line = n.Line
		classes[i].Column = n.Column
		annotateClasses(classes[i].Classes, mappingValue(n, "classes"))
	}
}
