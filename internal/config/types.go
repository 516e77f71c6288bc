package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Project is a kas project configuration file.
// Only the keys needed to identify and reproduce a build are modelled;
// merging of included files is not done here.
type Project struct {
	Header             Header            `yaml:"header" json:"header"`
	BuildSystem        string            `yaml:"build_system,omitempty" json:"build_system,omitempty"`
	Machine            string            `yaml:"machine,omitempty" json:"machine,omitempty"`
	Distro             string            `yaml:"distro,omitempty" json:"distro,omitempty"`
	Target             Targets           `yaml:"target,omitempty" json:"target,omitempty"`
	Task               string            `yaml:"task,omitempty" json:"task,omitempty"`
	Env                map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Repos              map[string]*Repo  `yaml:"repos,omitempty" json:"repos,omitempty"`
	LocalConfHeader    map[string]string `yaml:"local_conf_header,omitempty" json:"local_conf_header,omitempty"`
	BBLayersConfHeader map[string]string `yaml:"bblayers_conf_header,omitempty" json:"bblayers_conf_header,omitempty"`
}

// Header identifies the configuration format version and included files.
type Header struct {
	Version  int       `yaml:"version" json:"version"`
	Includes []Include `yaml:"includes,omitempty" json:"includes,omitempty"`
}

// Include references another configuration file, either by path relative
// to the including file (Repo empty) or inside a repository.
type Include struct {
	Repo string `yaml:"repo,omitempty" json:"repo,omitempty"`
	File string `yaml:"file" json:"file"`
}

// UnmarshalYAML accepts both the short form (a path) and the mapping form.
func (i *Include) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*i = Include{File: node.Value}
		return nil
	}
	type plain Include
	return node.Decode((*plain)(i))
}

// MarshalYAML writes local includes in the short form.
func (i Include) MarshalYAML() (any, error) {
	if i.Repo == "" {
		return i.File, nil
	}
	type plain Include
	return plain(i), nil
}

// MarshalJSON writes local includes in the short form.
func (i Include) MarshalJSON() ([]byte, error) {
	if i.Repo == "" {
		return json.Marshal(i.File)
	}
	type plain Include
	return json.Marshal(plain(i))
}

// Repo describes a layer repository.
// A nil *Repo in Project.Repos refers to the repository holding the
// configuration file itself.
type Repo struct {
	URL    string            `yaml:"url,omitempty" json:"url,omitempty"`
	Type   string            `yaml:"type,omitempty" json:"type,omitempty"`
	Branch string            `yaml:"branch,omitempty" json:"branch,omitempty"`
	Tag    string            `yaml:"tag,omitempty" json:"tag,omitempty"`
	Commit string            `yaml:"commit,omitempty" json:"commit,omitempty"`
	Path   string            `yaml:"path,omitempty" json:"path,omitempty"`
	Layers map[string]*Layer `yaml:"layers,omitempty" json:"layers,omitempty"`
}

// Layer is an entry of Repo.Layers. An empty value enables the layer;
// "disabled" or "excluded" removes it.
type Layer string

// Enabled reports whether the layer takes part in the build. A nil layer
// (written as `meta-foo:` without value) is enabled.
func (l *Layer) Enabled() bool {
	return l == nil || (*l != "disabled" && *l != "excluded")
}

// Targets holds the bitbake target(s); a single target may be written as a
// plain string.
type Targets []string

// UnmarshalYAML accepts a string or a sequence of strings.
func (t *Targets) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*t = Targets{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*t = list
		return nil
	default:
		return fmt.Errorf("line %d: target must be a string or a list of strings", node.Line)
	}
}
