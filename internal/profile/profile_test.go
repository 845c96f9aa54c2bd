// ABOUTME: Tests for the builtin profile registry and system prompt rendering.
// ABOUTME: Verifies lookup, ordering, and prompt composition.

package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinOrdering(t *testing.T) {
	profiles := Builtin()
	require.NotEmpty(t, profiles)

	// Researcher is the default agent and must stay first.
	assert.Equal(t, "Researcher", profiles[0].ID)

	seen := make(map[string]bool)
	for _, p := range profiles {
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Description)
		assert.NotEmpty(t, p.RolePrompt)
		assert.False(t, seen[p.ID], "duplicate profile id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestSystemPrompt(t *testing.T) {
	p := Profile{
		ID:          "Researcher",
		DisplayName: "Researcher",
		Description: "Specializes in gathering and analyzing information",
		RolePrompt:  "Research things.",
	}

	prompt := p.SystemPrompt()
	assert.Contains(t, prompt, "You are Researcher.")
	assert.Contains(t, prompt, "Specializes in gathering and analyzing information")
	assert.Contains(t, prompt, "Research things.")
	assert.Contains(t, prompt, "Important guidelines:")
}

func TestFind(t *testing.T) {
	profiles := Builtin()

	p, err := Find(profiles, "Writer")
	require.NoError(t, err)
	assert.Equal(t, "Writer", p.ID)

	_, err = Find(profiles, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadPacks(t *testing.T) {
	dir := t.TempDir()
	pack := `
[[profiles]]
id = "Translator"
description = "Translates text between languages"
role_prompt = "Translate the user's text, preserving tone and register."

[[profiles]]
id = "Summarizer"
display_name = "Summarizer"
short_name = "Sum"
description = "Condenses long content"
role_prompt = "Summarize the user's text in a few sentences."
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extras.toml"), []byte(pack), 0644))

	profiles, err := LoadPacks(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "Translator", profiles[0].ID)
	assert.Equal(t, "Translator", profiles[0].DisplayName, "display name defaults to id")
	assert.Equal(t, "Sum", profiles[1].ShortName)
}

func TestLoadPacksMissingDir(t *testing.T) {
	profiles, err := LoadPacks(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestLoadPacksRejectsProfileWithoutID(t *testing.T) {
	dir := t.TempDir()
	pack := `
[[profiles]]
description = "no id here"
role_prompt = "whatever"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.toml"), []byte(pack), 0644))

	_, err := LoadPacks(dir)
	assert.Error(t, err)
}
