package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/Sternrassler/offline-cache/pkg/store"
)

func TestNewRegistry(t *testing.T) {
	if _, err := NewRegistry(""); err == nil {
		t.Error("NewRegistry(\"\") should fail")
	}
	if _, err := NewRegistry("   "); err == nil {
		t.Error("NewRegistry with blank id should fail")
	}

	r, err := NewRegistry("v3")
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if r.CurrentID() != "v3" {
		t.Errorf("CurrentID() = %q, want v3", r.CurrentID())
	}
	if r.State() != StateNone {
		t.Errorf("State() = %s, want %s", r.State(), StateNone)
	}
}

func TestRegistry_IsCurrent(t *testing.T) {
	r, _ := NewRegistry("v3")

	tests := []struct {
		name string
		want bool
	}{
		{"v3", true},
		{"v2", false},
		{"V3", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := r.IsCurrent(tt.name); got != tt.want {
			t.Errorf("IsCurrent(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRegistry_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		steps   []func(*Registry) error
		want    State
		wantErr bool
	}{
		{
			name:  "install and activate",
			steps: []func(*Registry) error{(*Registry).BeginInstall, (*Registry).CompleteInstall, (*Registry).Activate},
			want:  StateActive,
		},
		{
			name:  "failed install returns to none",
			steps: []func(*Registry) error{(*Registry).BeginInstall, (*Registry).FailInstall},
			want:  StateNone,
		},
		{
			name:  "install after failure",
			steps: []func(*Registry) error{(*Registry).BeginInstall, (*Registry).FailInstall, (*Registry).BeginInstall, (*Registry).CompleteInstall},
			want:  StateInstalled,
		},
		{
			name:    "activate before install",
			steps:   []func(*Registry) error{(*Registry).Activate},
			want:    StateNone,
			wantErr: true,
		},
		{
			name:    "activate while pending",
			steps:   []func(*Registry) error{(*Registry).BeginInstall, (*Registry).Activate},
			want:    StatePending,
			wantErr: true,
		},
		{
			name:    "install twice",
			steps:   []func(*Registry) error{(*Registry).BeginInstall, (*Registry).BeginInstall},
			want:    StatePending,
			wantErr: true,
		},
		{
			name:    "fail after complete",
			steps:   []func(*Registry) error{(*Registry).BeginInstall, (*Registry).CompleteInstall, (*Registry).FailInstall},
			want:    StateInstalled,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := NewRegistry("v1")

			var err error
			for _, step := range tt.steps {
				if err = step(r); err != nil {
					break
				}
			}

			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("error = %v, want ErrInvalidTransition", err)
			}
			if r.State() != tt.want {
				t.Errorf("State() = %s, want %s", r.State(), tt.want)
			}
		})
	}
}

func TestRegistry_Stale(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	for _, name := range []string{"v1", "v2", "v3"} {
		if _, err := backend.Open(ctx, name); err != nil {
			t.Fatalf("Open(%q) error = %v", name, err)
		}
	}

	r, _ := NewRegistry("v3")
	stale, err := r.Stale(ctx, backend)
	if err != nil {
		t.Fatalf("Stale() error = %v", err)
	}
	sort.Strings(stale)

	if want := []string{"v1", "v2"}; !reflect.DeepEqual(stale, want) {
		t.Errorf("Stale() = %v, want %v", stale, want)
	}
}
