// Package manifest loads the list of plugin repositories that should be built.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the manifest name looked up in the working directory
const DefaultFile = "modules.json"

// Plugin describes a single plugin repository
type Plugin struct {
	User   string `json:"user" yaml:"user"`
	Repo   string `json:"repo" yaml:"repo"`
	// Branch is nil if the entry has no branch key. An empty branch is still
	// checked out.
	Branch *string `json:"branch,omitempty" yaml:"branch,omitempty"`
}

// Slug returns user/repo
func (p Plugin) Slug() string {
	return p.User + "/" + p.Repo
}

// Manifest lists the plugins in the order they should be built
type Manifest struct {
	Plugins []Plugin `json:"plugins" yaml:"plugins"`
}

// Format identifies the encoding of a manifest file
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the decoder based on the file extension. Anything that isn't
// .yml or .yaml is treated as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	}

	return FormatJSON
}

// MissingKeyError reports a required key that is absent from the manifest
type MissingKeyError struct {
	// Index is the position of the plugin entry or -1 for the top level
	Index int
	Key   string
}

var _ error = (*MissingKeyError)(nil)

func (e MissingKeyError) Error() string {
	if e.Index < 0 {
		return "manifest is missing the key " + e.Key
	}

	return fmt.Sprintf("plugin entry %d is missing the key %s", e.Index, e.Key)
}

type rawPlugin struct {
	User   *string `json:"user" yaml:"user"`
	Repo   *string `json:"repo" yaml:"repo"`
	Branch *string `json:"branch" yaml:"branch"`
}

type rawManifest struct {
	Plugins *[]rawPlugin `json:"plugins" yaml:"plugins"`
}

// Load reads and parses the manifest at path
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "Could not open file %s.", path)
	}

	m, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse %s.", path)
	}

	return m, nil
}

// Parse decodes a manifest and checks that every required key is present
func Parse(data []byte, format Format) (*Manifest, error) {
	var raw rawManifest
	var err error

	switch format {
	case FormatYAML:
		err = decodeYAML(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, err
	}

	if raw.Plugins == nil {
		return nil, MissingKeyError{Index: -1, Key: "plugins"}
	}

	result := &Manifest{
		Plugins: make([]Plugin, 0, len(*raw.Plugins)),
	}
	for idx, item := range *raw.Plugins {
		if item.User == nil {
			return nil, MissingKeyError{Index: idx, Key: "user"}
		}
		if item.Repo == nil {
			return nil, MissingKeyError{Index: idx, Key: "repo"}
		}

		plugin := Plugin{
			User:   *item.User,
			Repo:   *item.Repo,
			Branch: item.Branch,
		}
		result.Plugins = append(result.Plugins, plugin)
	}

	return result, nil
}

// decodeYAML decodes a single YAML document. Additional documents are rejected.
func decodeYAML(data []byte, out *rawManifest) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	err := decoder.Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	var extra yaml.Node
	err = decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	return eris.New("manifest contains more than one YAML document")
}

// DuplicateRepos returns the repository names that appear more than once.
// Such entries are cloned into the same directory.
func (m *Manifest) DuplicateRepos() []string {
	seen := make(map[string]int, len(m.Plugins))
	result := []string{}

	for _, plugin := range m.Plugins {
		seen[plugin.Repo]++
		if seen[plugin.Repo] == 2 {
			result = append(result, plugin.Repo)
		}
	}

	return result
}

// Find returns the first plugin with the given repository name
func (m *Manifest) Find(repo string) (Plugin, bool) {
	for _, plugin := range m.Plugins {
		if plugin.Repo == repo {
			return plugin, true
		}
	}

	return Plugin{}, false
}
