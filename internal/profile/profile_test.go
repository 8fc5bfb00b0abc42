// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/google/renameio/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
pet:
  name: Rex
contacts:
  - id: c1
    name: Ana
    phone: "(555) 111-2222"
    email: ana@example.com
  - name: Bo
    phone: "+44 20 7946 0958"
care:
  foodType: kibble
  feedingTimes: ["08:00", "18:00"]
  medications:
    - name: Apoquel
      dosage: 16mg
`

func TestParse_Valid(t *testing.T) {
	p, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	assert.Equal(t, "Rex", p.Pet.Name)
	assert.Equal(t, []watch.Recipient{
		{Name: "Ana", Phone: "(555) 111-2222"},
		{Name: "Bo", Phone: "+44 20 7946 0958"},
	}, p.Recipients())
	assert.Equal(t, []string{"08:00", "18:00"}, p.Care.FeedingTimes)
	assert.Equal(t, "Apoquel", p.Care.Medications[0].Name)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown field", "pet:\n  name: Rex\n  colour: brown\n", "field colour not found"},
		{"missing contact phone", "pet:\n  name: Rex\ncontacts:\n  - name: Ana\n", "Phone"},
		{"short phone", "pet:\n  name: Rex\ncontacts:\n  - name: Ana\n    phone: \"123\"\n", "phone"},
		{"bad email", "pet:\n  name: Rex\ncontacts:\n  - name: Ana\n    phone: \"5551112222\"\n    email: nope\n", "email"},
		{"missing pet name", "contacts: []\n", "Pet.Name"},
		{"medication without name", "pet:\n  name: Rex\ncare:\n  medications:\n    - dosage: 1mg\n", "Medications"},
		{"empty", "", "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SnapshotIsDeepCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validDoc), 0o600))

	s, err := Open(path)
	require.NoError(t, err)

	p, ok := s.Snapshot()
	require.True(t, ok)
	p.Contacts[0].Phone = "mutated"
	p.Care.FeedingTimes[0] = "never"

	again, _ := s.Snapshot()
	assert.Equal(t, "(555) 111-2222", again.Contacts[0].Phone)
	assert.Equal(t, "08:00", again.Care.FeedingTimes[0])
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "profile.yaml"))
	require.NoError(t, err)
	p, ok := s.Snapshot()
	assert.False(t, ok)
	assert.Empty(t, p.Contacts)
}

func TestStore_InvalidFileFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pet: ["), 0o600))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestStore_ReloadKeepsPreviousOnInvalidEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validDoc), 0o600))
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("pet:\n  name: Rex\ncontacts:\n  - name: Ana\n"), 0o600))
	assert.Error(t, s.Reload())

	p, _ := s.Snapshot()
	assert.Len(t, p.Contacts, 2)
}

func TestStore_WatchPicksUpAtomicReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validDoc), 0o600))
	s, err := Open(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	next := "pet:\n  name: Luna\ncontacts:\n  - name: Cy\n    phone: \"5553334444\"\n"
	require.NoError(t, renameio.WriteFile(path, []byte(next), 0o600))

	select {
	case <-s.Reloaded():
	case <-time.After(5 * time.Second):
		t.Fatal("profile was not reloaded")
	}
	p, _ := s.Snapshot()
	assert.Equal(t, "Luna", p.Pet.Name)
	assert.Len(t, p.Contacts, 1)
}
