package buildsys

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/syntax"
)

// Profile selects the flavour of the make invocations.
type Profile string

const (
	ProfileRelease Profile = "release"
	// ProfileASan instruments host and plugins with the address sanitizer
	ProfileASan Profile = "asan"
)

// ParseProfile converts a config value into a Profile
func ParseProfile(value string) (Profile, error) {
	switch Profile(strings.ToLower(value)) {
	case ProfileRelease, "":
		return ProfileRelease, nil
	case ProfileASan:
		return ProfileASan, nil
	}

	return "", eris.Errorf("unknown build profile %s (must be release or asan)", value)
}

// ErrorPolicy decides what happens after a command exits with a non-zero status.
type ErrorPolicy string

const (
	// PolicyContinue records the failure and moves on to the next command
	PolicyContinue ErrorPolicy = "continue"
	// PolicyFailFast aborts the run on the first failed command
	PolicyFailFast ErrorPolicy = "fail-fast"
)

// ParsePolicy converts a config value into an ErrorPolicy
func ParsePolicy(value string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(value)) {
	case PolicyContinue, "":
		return PolicyContinue, nil
	case PolicyFailFast, "failfast":
		return PolicyFailFast, nil
	}

	return "", eris.Errorf("unknown error policy %s (must be continue or fail-fast)", value)
}

// Command is the argument list of a single process invocation.
type Command []string

// String renders the command the way a shell would have to type it
func (c Command) String() string {
	buffer := strings.Builder{}
	printer := syntax.NewPrinter(syntax.Minify(true))
	err := printer.Print(&buffer, callExpr(c))
	if err != nil {
		return strings.Join(c, " ")
	}

	return strings.TrimSpace(buffer.String())
}

// TargetKind distinguishes the host build from plugin builds
type TargetKind string

const (
	KindHost   TargetKind = "host"
	KindPlugin TargetKind = "plugin"
)

// Options holds everything a run needs. It is computed once before the run
// starts and never modified afterwards.
type Options struct {
	// Root is the directory rackbuild was invoked in. It is the host root
	// unless CloneHost is set.
	Root      string
	Jobs      int
	Profile   Profile
	Policy    ErrorPolicy
	Remote    string
	CloneHost bool
	HostUser  string
	HostRepo  string
	DryRun    bool
}

// HostDir returns the directory the host build runs in
func (o Options) HostDir() string {
	if o.CloneHost {
		return filepath.Join(o.Root, o.HostRepo)
	}

	return o.Root
}

// PluginsDir returns the directory plugins are cloned into
func (o Options) PluginsDir() string {
	return filepath.Join(o.HostDir(), "plugins")
}
