package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"kas/internal/kaserr"
	"kas/internal/version"
)

// LoadProject reads and validates the project configuration file at path.
// Every failure is a user error: the file is missing, not valid YAML, uses
// unknown keys or declares an unsupported format version.
func LoadProject(path string) (*Project, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &kaserr.UserError{Msg: "reading configuration file", Err: err}
	}

	p, err := ParseProject(raw)
	if err != nil {
		return nil, &kaserr.UserError{Msg: fmt.Sprintf("loading %s", path), Err: err}
	}
	return p, nil
}

// ParseProject decodes a project file and checks its header.
func ParseProject(raw []byte) (*Project, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true) // unknown keys are configuration mistakes

	var p Project
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("configuration file is empty")
		}
		return nil, err
	}
	if err := CheckHeader(p.Header); err != nil {
		return nil, err
	}
	return &p, nil
}

// CheckHeader verifies that the header version lies within the range of
// configuration format versions this release reads.
func CheckHeader(h Header) error {
	switch {
	case h.Version == 0:
		return errors.New("header missing or version not set")
	case h.Version < version.CompatibleFileVersion:
		return fmt.Errorf("header version %d is no longer supported (earliest compatible version is %d)",
			h.Version, version.CompatibleFileVersion)
	case h.Version > version.FileVersion:
		return fmt.Errorf("header version %d is newer than the supported configuration format version %d, upgrade kas",
			h.Version, version.FileVersion)
	}
	return nil
}
