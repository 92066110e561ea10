package precache

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest indicates a manifest that cannot be loaded.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is the ordered list of assets that make up a generation.
// Assets are paths relative to the origin or absolute URLs.
type Manifest struct {
	Assets []string `yaml:"assets"`
}

// DefaultManifest returns the application shell: the root, its document
// and the web app manifest.
func DefaultManifest() Manifest {
	return Manifest{Assets: []string{"/", "/index.html", "/manifest.json"}}
}

// LoadManifest reads a YAML manifest file. The file holds either a plain
// list of assets or a mapping with an "assets" list.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes YAML manifest content.
func ParseManifest(data []byte) (Manifest, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if len(root.Content) == 0 {
		return Manifest{}, fmt.Errorf("%w: empty document", ErrInvalidManifest)
	}

	var m Manifest
	switch doc := root.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&m.Assets); err != nil {
			return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
	case yaml.MappingNode:
		if err := doc.Decode(&m); err != nil {
			return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
	default:
		return Manifest{}, fmt.Errorf("%w: expected a list or an assets mapping", ErrInvalidManifest)
	}

	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks that the manifest is non-empty and has no blank entries.
func (m Manifest) Validate() error {
	if len(m.Assets) == 0 {
		return fmt.Errorf("%w: no assets", ErrInvalidManifest)
	}
	for i, asset := range m.Assets {
		if strings.TrimSpace(asset) == "" {
			return fmt.Errorf("%w: asset #%d is blank", ErrInvalidManifest, i)
		}
	}
	return nil
}
