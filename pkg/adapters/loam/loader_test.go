package loam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/turnstile/internal/testutils"
)

func seed(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for filename, content := range files {
		err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644)
		require.NoError(t, err)
	}
}

func TestLoader_LoadsByFilename(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	seed(t, tmpDir, map[string]string{
		"gathering.md": `---
description: ask questions
---
Ask the user about the task.
`,
		"generating.md": `---
description: write the prompt
---
Write a prompt for {{.Objective}}.
`,
		"README.md": `---
id: readme
---
Not an instruction.`,
	})

	loader := New(loam.NewTypedRepository[InstructionMetadata](repo))
	got, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Ask the user about the task.", got.Gathering)
	assert.Equal(t, "Write a prompt for {{.Objective}}.", got.Generating)
}

func TestLoader_ModeFrontmatterWins(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	seed(t, tmpDir, map[string]string{
		"interview.md": `---
mode: gathering
---
Interview the user.`,
	})

	loader := New(loam.NewTypedRepository[InstructionMetadata](repo))
	got, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Interview the user.", got.Gathering)
	assert.Empty(t, got.Generating, "missing documents leave the field empty")
}

func TestLoader_DetectsCollisions(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	seed(t, tmpDir, map[string]string{
		"gathering.md": `---
id: gathering
---
One.`,
		"ask.md": `---
mode: gathering
---
Two.`,
	})

	loader := New(loam.NewTypedRepository[InstructionMetadata](repo))
	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestModeOf(t *testing.T) {
	cases := []struct {
		docID string
		meta  InstructionMetadata
		want  string
		ok    bool
	}{
		{"gathering.md", InstructionMetadata{}, "gathering", true},
		{"prompts/Generating.md", InstructionMetadata{}, "generating", true},
		{"x.md", InstructionMetadata{Mode: "generating"}, "generating", true},
		{"x.md", InstructionMetadata{ID: "gathering"}, "gathering", true},
		{"awaiting_input.md", InstructionMetadata{}, "", false},
		{"notes.md", InstructionMetadata{}, "", false},
	}
	for _, tc := range cases {
		mode, ok := modeOf(tc.docID, tc.meta)
		assert.Equal(t, tc.ok, ok, tc.docID)
		assert.Equal(t, tc.want, string(mode), tc.docID)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, map[string]string{"generating.md": "---\nid: generating\n---\nGenerate."})

	loader, err := Open(dir)
	require.NoError(t, err)

	got, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Generate.", got.Generating)
}
