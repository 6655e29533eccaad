package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModulePrefix = "animevote/contexts/anime-voting/voting-engine"

func writeSource(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.go")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDomainAllowsOwnPackagesAndAllowlist(t *testing.T) {
	path := writeSource(t, `package entities

import (
	"strings"

	"animevote/contexts/anime-voting/voting-engine/domain/errors"
	"golang.org/x/text/unicode/norm"
)
`)
	assert.Empty(t, validateFile(path, path, "domain", testModulePrefix))
}

func TestDomainRejectsAdaptersAndInfrastructure(t *testing.T) {
	path := writeSource(t, `package entities

import (
	"animevote/contexts/anime-voting/voting-engine/adapters/memory"
	"animevote/internal/platform/config"
	"gorm.io/gorm"
)
`)
	violations := validateFile(path, path, "domain", testModulePrefix)
	rules := make([]string, 0, len(violations))
	for _, v := range violations {
		rules = append(rules, v.Rule)
	}
	assert.Contains(t, rules, "domain must not import adapters")
	assert.Contains(t, rules, "domain must not import runtime infrastructure")
	assert.Contains(t, rules, "domain import is outside explicit allowlist")
}

func TestApplicationAllowlist(t *testing.T) {
	path := writeSource(t, `package commands

import (
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"animevote/contexts/anime-voting/voting-engine/ports"
)
`)
	assert.Empty(t, validateFile(path, path, "application", testModulePrefix))

	path = writeSource(t, `package commands

import "github.com/prometheus/client_golang/prometheus"
`)
	violations := validateFile(path, path, "application", testModulePrefix)
	require.Len(t, violations, 1)
	assert.Equal(t, "application import is outside explicit allowlist", violations[0].Rule)
}

func TestCrossModuleImportsAreFlagged(t *testing.T) {
	path := writeSource(t, `package httpadapter

import "animevote/contexts/other/service/ports"
`)
	violations := validateFile(path, path, "adapters", testModulePrefix)
	require.Len(t, violations, 1)
	assert.Equal(t, "cross-module imports are forbidden", violations[0].Rule)
}

func TestIsStdlib(t *testing.T) {
	assert.True(t, isStdlib("net/http"))
	assert.False(t, isStdlib("animevote/internal/platform/db"))
	assert.False(t, isStdlib("github.com/spf13/cobra"))
}
