package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *cobra.Command {
	root := &cobra.Command{Use: "tieplm"}
	root.PersistentFlags().String("api-url", "", "API base URL")
	AddHelpJSONFlag(root)
	BindEnv(root, "api-url", "TIEPLM_API_URL")

	ask := &cobra.Command{Use: "ask <query>", Short: "Ask a question", Run: func(*cobra.Command, []string) {}}
	ask.Flags().StringP("task", "t", "qa", "Task type")

	ingest := &cobra.Command{Use: "ingest", Run: func(*cobra.Command, []string) {}}
	ingest.Flags().String("manifest", "", "Manifest path")
	_ = ingest.MarkFlagRequired("manifest")

	hidden := &cobra.Command{Use: "debug", Hidden: true, Run: func(*cobra.Command, []string) {}}

	root.AddCommand(ask, ingest, hidden)
	return root
}

func flagNamed(flags []FlagSchema, name string) (FlagSchema, bool) {
	for _, f := range flags {
		if f.Name == name {
			return f, true
		}
	}
	return FlagSchema{}, false
}

func TestGenerateSchema_WalksVisibleCommands(t *testing.T) {
	schema := GenerateSchema(testTree())

	assert.Equal(t, "tieplm", schema.Name)
	require.Len(t, schema.Subcommands, 2)
	assert.Equal(t, "ask", schema.Subcommands[0].Name)
	assert.Equal(t, "ingest", schema.Subcommands[1].Name)

	apiURL, ok := flagNamed(schema.Flags, "api-url")
	require.True(t, ok)
	assert.Equal(t, "TIEPLM_API_URL", apiURL.Env)
	_, ok = flagNamed(schema.Flags, "help-json")
	assert.False(t, ok)
}

func TestGenerateSchema_FlagDetails(t *testing.T) {
	root := testTree()
	root.InitDefaultHelpFlag()
	schema := GenerateSchema(root)

	task, ok := flagNamed(schema.Subcommands[0].Flags, "task")
	require.True(t, ok)
	assert.Equal(t, "t", task.Shorthand)
	assert.Equal(t, "qa", task.Default)
	assert.False(t, task.Required)

	inherited, ok := flagNamed(schema.Subcommands[0].Flags, "api-url")
	require.True(t, ok)
	assert.True(t, inherited.Inherited)

	manifest, ok := flagNamed(schema.Subcommands[1].Flags, "manifest")
	require.True(t, ok)
	assert.True(t, manifest.Required)
}

func TestWriteSchema_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, testTree()))

	var decoded CommandSchema
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "tieplm", decoded.Name)
}

func TestFindTargetCommand(t *testing.T) {
	root := testTree()

	assert.Equal(t, "ask", findTargetCommand(root, []string{"ask"}).Name())
	assert.Equal(t, "tieplm", findTargetCommand(root, nil).Name())
	assert.Equal(t, "tieplm", findTargetCommand(root, []string{"unknown"}).Name())
}
