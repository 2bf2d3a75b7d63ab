package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadArtifact reads a model artifact; the format follows the extension
// (.yaml/.yml, .toml or .json).
func LoadArtifact(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read model artifact: %w", err)
	}
	return DecodeArtifact(data, filepath.Ext(path))
}

// DecodeArtifact decodes artifact bytes in the format named by ext
func DecodeArtifact(data []byte, ext string) (Artifact, error) {
	var a Artifact
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&a); err != nil {
			return Artifact{}, fmt.Errorf("decode yaml model: %w", err)
		}
	case "toml":
		md, err := toml.Decode(string(data), &a)
		if err != nil {
			return Artifact{}, fmt.Errorf("decode toml model: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Artifact{}, fmt.Errorf("decode toml model: unknown keys %v", undecoded)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&a); err != nil {
			return Artifact{}, fmt.Errorf("decode json model: %w", err)
		}
	default:
		return Artifact{}, fmt.Errorf("unsupported model format %q", ext)
	}
	return a, a.Validate()
}

// Load reads and builds a model
func Load(path string) (*LogisticModel, error) {
	a, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	m, err := NewLogisticModel(a)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	if m.version == "" {
		m.version = filepath.Base(path)
	}
	return m, nil
}
