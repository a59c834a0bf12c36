package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"
)

// PluginInfo holds the fields of a plugin's plugin.json we care about
type PluginInfo struct {
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ReadPluginInfo parses plugin.json in the given plugin directory
func ReadPluginInfo(dir string) (*PluginInfo, error) {
	path := filepath.Join(dir, "plugin.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "Could not open file %s.", path)
	}

	info := new(PluginInfo)
	err = json.Unmarshal(data, info)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse JSON file %s.", path)
	}

	return info, nil
}

// ReadPluginVersion returns the version declared in the plugin's plugin.json
func ReadPluginVersion(dir string) (*semver.Version, error) {
	info, err := ReadPluginInfo(dir)
	if err != nil {
		return nil, err
	}

	if info.Version == "" {
		return nil, eris.Errorf("%s does not declare a version", filepath.Join(dir, "plugin.json"))
	}

	version, err := semver.NewVersion(info.Version)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid version %s", info.Version)
	}

	return version, nil
}
