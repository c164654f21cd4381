package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	nferrors "github.com/randalmurphal/nodeflow/pkg/nodeflow/errors"
)

// FlowFile describes a graph: its nodes, their settings and the wires
// between them.
type FlowFile struct {
	Name string `yaml:"name" json:"name"`

	// Pipeline is the default pipeline id for nodes that do not set one.
	Pipeline string `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`

	// MaxDepth bounds delivery paths. Zero keeps the node default.
	MaxDepth int `yaml:"max_depth,omitempty" json:"max_depth,omitempty"`

	Nodes []NodeSpec `yaml:"nodes" json:"nodes"`
	Wires []WireSpec `yaml:"wires,omitempty" json:"wires,omitempty"`
}

// NodeSpec declares one node.
type NodeSpec struct {
	ID       string         `yaml:"id" json:"id"`
	Type     string         `yaml:"type" json:"type"`
	Pipeline string         `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`
	Config   map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// Settings returns the node's config block.
func (s NodeSpec) Settings() Config {
	return New(s.Config)
}

// WireSpec connects an output of From to an input of To.
type WireSpec struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// PipelineFor returns the pipeline id of the node, falling back to the
// file's default.
func (f *FlowFile) PipelineFor(spec NodeSpec) string {
	if spec.Pipeline != "" {
		return spec.Pipeline
	}
	return f.Pipeline
}

// Validate checks that node ids are present and unique, every node has a
// type, and every wire names declared nodes. All problems are returned
// together as *errors.ConfigError values.
func (f *FlowFile) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &nferrors.ConfigError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if f.MaxDepth < 0 {
		add("max_depth", "must not be negative, got %d", f.MaxDepth)
	}
	if len(f.Nodes) == 0 {
		add("nodes", "at least one node is required")
	}

	seen := make(map[string]bool, len(f.Nodes))
	for i, n := range f.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		switch {
		case n.ID == "":
			add(field+".id", "is required")
		case strings.ContainsAny(n.ID, " \t\r\n"):
			add(field+".id", "%q contains whitespace", n.ID)
		case seen[n.ID]:
			add(field+".id", "duplicate id %q", n.ID)
		}
		if n.ID != "" {
			seen[n.ID] = true
		}
		if n.Type == "" {
			add(field+".type", "is required")
		}
	}

	for i, w := range f.Wires {
		field := fmt.Sprintf("wires[%d]", i)
		if !seen[w.From] {
			add(field+".from", "unknown node %q", w.From)
		}
		if !seen[w.To] {
			add(field+".to", "unknown node %q", w.To)
		}
	}
	return errors.Join(errs...)
}

// LoadFlowFile reads and validates a flow file. The format is chosen by
// extension: .yaml, .yml or .json.
func LoadFlowFile(path string) (*FlowFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ParseFlowYAML(data)
	case ".json":
		return ParseFlowJSON(data)
	default:
		return nil, &nferrors.ConfigError{Field: "path", Message: fmt.Sprintf("unsupported flow file extension %q", ext)}
	}
}

// ParseFlowYAML decodes and validates a YAML flow file. Unknown fields are
// rejected.
func ParseFlowYAML(data []byte) (*FlowFile, error) {
	var f FlowFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseFlowJSON decodes and validates a JSON flow file. Unknown fields are
// rejected.
func ParseFlowJSON(data []byte) (*FlowFile, error) {
	var f FlowFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
