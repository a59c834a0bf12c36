package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func branch(name string) *string {
	return &name
}

func TestParse_JSON(t *testing.T) {
	m, err := Parse([]byte(`{"plugins":[{"user":"alice","repo":"foo"},{"user":"bob","repo":"bar","branch":"dev"}]}`), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, []Plugin{
		{User: "alice", Repo: "foo"},
		{User: "bob", Repo: "bar", Branch: branch("dev")},
	}, m.Plugins)
}

func TestParse_YAMLMatchesJSON(t *testing.T) {
	fromJSON, err := Parse([]byte(`{"plugins":[{"user":"alice","repo":"foo"},{"user":"bob","repo":"bar","branch":"dev"}]}`), FormatJSON)
	require.NoError(t, err)

	fromYAML, err := Parse([]byte(`
plugins:
  - user: alice
    repo: foo
  - user: bob
    repo: bar
    branch: dev
`), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
}

func TestParse_EmptyBranchIsKept(t *testing.T) {
	m, err := Parse([]byte(`{"plugins":[{"user":"a","repo":"b","branch":""},{"user":"c","repo":"d"}]}`), FormatJSON)
	require.NoError(t, err)

	require.NotNil(t, m.Plugins[0].Branch)
	assert.Equal(t, "", *m.Plugins[0].Branch)
	assert.Nil(t, m.Plugins[1].Branch)
}

func TestParse_IgnoresUnknownKeys(t *testing.T) {
	m, err := Parse([]byte(`{"version":2,"plugins":[{"user":"a","repo":"b","comment":"x"}]}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []Plugin{{User: "a", Repo: "b"}}, m.Plugins)
}

func TestParse_EmptyPluginList(t *testing.T) {
	m, err := Parse([]byte(`{"plugins":[]}`), FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, m.Plugins)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantKey *MissingKeyError
	}{
		{
			name:    "missing_plugins",
			data:    `{"modules":[]}`,
			wantKey: &MissingKeyError{Index: -1, Key: "plugins"},
		},
		{
			name:    "missing_user",
			data:    `{"plugins":[{"user":"a","repo":"b"},{"repo":"c"}]}`,
			wantKey: &MissingKeyError{Index: 1, Key: "user"},
		},
		{
			name:    "missing_repo",
			data:    `{"plugins":[{"user":"a"}]}`,
			wantKey: &MissingKeyError{Index: 0, Key: "repo"},
		},
		{
			name: "malformed_json",
			data: `{"plugins":[`,
		},
		{
			name: "wrong_type",
			data: `{"plugins":[{"user":1,"repo":"b"}]}`,
		},
		{
			name: "trailing_data",
			data: `{"plugins":[]} junk`,
		},
		{
			name: "second_value",
			data: `{"plugins":[]}{"plugins":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), FormatJSON)
			require.Error(t, err)

			if tt.wantKey != nil {
				var keyErr MissingKeyError
				require.ErrorAs(t, err, &keyErr)
				assert.Equal(t, *tt.wantKey, keyErr)
			}
		})
	}
}

func TestParse_YAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "multiple_documents", data: "plugins: []\n---\nplugins: []\n"},
		{name: "malformed", data: "plugins: [\n"},
		{name: "empty", data: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), FormatYAML)
			assert.Error(t, err)
		})
	}
}

func TestMissingKeyError_Message(t *testing.T) {
	assert.Equal(t, "manifest is missing the key plugins", MissingKeyError{Index: -1, Key: "plugins"}.Error())
	assert.Equal(t, "plugin entry 3 is missing the key repo", MissingKeyError{Index: 3, Key: "repo"}.Error())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, "modules.json", `{"plugins":[{"user":"alice","repo":"foo"}]}`)
	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice/foo", m.Plugins[0].Slug())

	path = writeFile(t, dir, "modules.yml", "plugins:\n  - {user: bob, repo: bar, branch: v2}\n")
	m, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, Plugin{User: "bob", Repo: "bar", Branch: branch("v2")}, m.Plugins[0])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "modules.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modules.json")
}

func TestLoad_Malformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "modules.json", `not json`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to parse")
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFor("modules.json"))
	assert.Equal(t, FormatYAML, FormatFor("modules.yml"))
	assert.Equal(t, FormatYAML, FormatFor("/tmp/Modules.YAML"))
	assert.Equal(t, FormatJSON, FormatFor("modules"))
}

func TestDuplicateRepos(t *testing.T) {
	m := &Manifest{Plugins: []Plugin{
		{User: "a", Repo: "foo"},
		{User: "b", Repo: "foo"},
		{User: "c", Repo: "bar"},
		{User: "d", Repo: "foo"},
	}}

	assert.Equal(t, []string{"foo"}, m.DuplicateRepos())

	found, ok := m.Find("bar")
	assert.True(t, ok)
	assert.Equal(t, "c", found.User)

	_, ok = m.Find("baz")
	assert.False(t, ok)
}

func TestReadPluginVersion(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadPluginVersion(dir)
	assert.Error(t, err)

	writeFile(t, dir, "plugin.json", `{"slug":"Fundamental","name":"VCV Fundamental","version":"2.6.1"}`)
	version, err := ReadPluginVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "2.6.1", version.String())
	assert.Equal(t, uint64(2), version.Major())

	writeFile(t, dir, "plugin.json", `{"slug":"Fundamental"}`)
	_, err = ReadPluginVersion(dir)
	assert.Error(t, err)

	writeFile(t, dir, "plugin.json", `{"slug":"Fundamental","version":"banana"}`)
	_, err = ReadPluginVersion(dir)
	assert.Error(t, err)
}
