package precache

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expected    []string
		expectError bool
	}{
		{
			name:     "plain list",
			content:  "- /\n- /index.html\n- /app.js\n",
			expected: []string{"/", "/index.html", "/app.js"},
		},
		{
			name:     "assets mapping",
			content:  "assets:\n  - /\n  - https://cdn.example.com/lib.js\n",
			expected: []string{"/", "https://cdn.example.com/lib.js"},
		},
		{
			name:        "empty document",
			content:     "",
			expectError: true,
		},
		{
			name:        "empty list",
			content:     "[]",
			expectError: true,
		},
		{
			name:        "scalar",
			content:     "index.html",
			expectError: true,
		},
		{
			name:        "blank entry",
			content:     "- /\n- ''\n",
			expectError: true,
		},
		{
			name:        "malformed",
			content:     "assets: [",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.content))
			if tt.expectError {
				if !errors.Is(err, ErrInvalidManifest) {
					t.Errorf("ParseManifest() error = %v, want ErrInvalidManifest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseManifest() error = %v", err)
			}
			if !reflect.DeepEqual(m.Assets, tt.expected) {
				t.Errorf("Assets = %v, want %v", m.Assets, tt.expected)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte("- /\n- /index.html\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if len(m.Assets) != 2 {
		t.Errorf("len(Assets) = %d, want 2", len(m.Assets))
	}

	if _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadManifest() should fail for a missing file")
	}
}

func TestDefaultManifest(t *testing.T) {
	m := DefaultManifest()
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if !reflect.DeepEqual(m.Assets, []string{"/", "/index.html", "/manifest.json"}) {
		t.Errorf("Assets = %v", m.Assets)
	}
}
