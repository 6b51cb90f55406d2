// pkg/registry/registry_test.go
package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalog_Valid(t *testing.T) {
	path := writeSeed(t, `{
		"version": "1",
		"lastUpdated": "2026-08-01",
		"questions": [
			{"stepId": "name", "position": 1, "prompt": "Your name?", "inputKind": "free_text", "active": true},
			{"stepId": "city", "position": 2, "prompt": "Which city?", "inputKind": "single_choice",
			 "options": ["Berlin", {"token": "muc", "label": "Munich"}], "active": true}
		]
	}`)

	doc, err := LoadCatalog(path)
	require.NoError(t, err)

	require.Len(t, doc.Questions, 2)
	assert.Equal(t, "name", doc.Questions[0].StepID)
	assert.Equal(t, "single_choice", doc.Questions[1].InputKind)

	options, err := SeedOptions(doc.Questions[1].Options)
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "berlin", options[0].Token)
	assert.Equal(t, "Berlin", options[0].Label)
	assert.Equal(t, "muc", options[1].Token)
}

func TestLoadCatalog_RejectsUnknownInputKind(t *testing.T) {
	path := writeSeed(t, `{
		"version": "1",
		"questions": [
			{"stepId": "name", "position": 1, "prompt": "Your name?", "inputKind": "dropdown", "active": true}
		]
	}`)

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inputKind")
}

func TestLoadCatalog_RejectsMissingQuestions(t *testing.T) {
	path := writeSeed(t, `{"version": "1"}`)

	_, err := LoadCatalog(path)
	require.Error(t, err)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestSeedOptions_Empty(t *testing.T) {
	options, err := SeedOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, options)
}
