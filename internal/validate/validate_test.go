// SPDX-License-Identifier: MIT

package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(v *Validator) []string {
	var out []string
	for _, e := range v.errors {
		out = append(out, e.Field)
	}
	return out
}

func TestURL(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"http", "http://example.com", true},
		{"https with path", "https://sms.example.com/api", true},
		{"empty", "", false},
		{"no host", "http://", false},
		{"wrong scheme", "ftp://example.com", false},
		{"no scheme", "example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("Delivery.BackendURL", tt.value, []string{"http", "https"})
			assert.Equal(t, tt.ok, v.Valid(), v.Err())
		})
	}
}

func TestNumericRules(t *testing.T) {
	v := New()
	v.Range("Concurrency", 4, 1, 16)
	v.FloatRange("Rate", 0.5, 0, 100)
	v.Digits("CountryPrefix", "44")
	require.True(t, v.Valid(), v.Err())

	v.Range("Concurrency", 0, 1, 16)
	v.FloatRange("Rate", 101, 0, 100)
	v.Digits("CountryPrefix", "+1")
	v.Digits("CountryPrefix", "")
	assert.Equal(t, []string{"Concurrency", "Rate", "CountryPrefix", "CountryPrefix"}, fields(v))
}

func TestOneOf_QuotesValue(t *testing.T) {
	v := New()
	v.OneOf("Backend", "sqlite", []string{"sqlite", "memory"})
	v.OneOf("Backend", "bolt", []string{"sqlite", "memory"})
	require.Len(t, v.errors, 1)
	assert.Contains(t, v.errors[0].Message, `"bolt"`)
	assert.Contains(t, v.errors[0].Message, "sqlite|memory")
}

func TestDirectory(t *testing.T) {
	tmp := t.TempDir()

	v := New()
	created := filepath.Join(tmp, "data")
	v.Directory("DataDir", created, false)
	require.True(t, v.Valid(), v.Err())
	info, err := os.Stat(created)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	file := filepath.Join(tmp, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	v.Directory("DataDir", file, false)
	v.Directory("DataDir", filepath.Join(tmp, "missing"), true)
	v.Directory("DataDir", "../escape", false)
	v.Directory("DataDir", "", false)
	assert.Len(t, v.errors, 4, v.Err())
}

func TestFieldRules(t *testing.T) {
	v := New()
	v.LogLevel("LogLevel", "debug")
	v.PositiveDuration("Timeout", time.Second)
	v.Location("Timezone", "Europe/Berlin")
	v.HostPort("ListenAddr", "127.0.0.1:8080")
	v.HostPort("ListenAddr", ":0")
	require.True(t, v.Valid(), v.Err())

	v.LogLevel("LogLevel", "loud")
	v.LogLevel("LogLevel", "")
	v.PositiveDuration("Timeout", 0)
	v.Location("Timezone", "Mars/Olympus")
	v.HostPort("ListenAddr", "localhost")
	v.HostPort("ListenAddr", "localhost:99999")
	assert.Equal(t, []string{"LogLevel", "LogLevel", "Timeout", "Timezone", "ListenAddr", "ListenAddr"}, fields(v))
}

func TestValidationError(t *testing.T) {
	v := New()
	assert.NoError(t, v.Err())

	v.NotEmpty("A", " ")
	assert.EqualError(t, v.Err(), "invalid configuration: A: must not be empty")

	v.Range("B", 3, 0, 1)
	err := v.Err()
	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors(), 2)
	assert.Contains(t, err.Error(), "; B: ")

	v.NotEmpty("C", "")
	assert.Len(t, ve.Errors(), 2, "Err returns a snapshot")
}
