package config

import (
	"path/filepath"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/ngld/rackbuild/pkg/buildsys"
	"github.com/ngld/rackbuild/pkg/ledger"
	"github.com/ngld/rackbuild/pkg/manifest"
)

// Config describes all configuration options
type Config struct {
	Root     string `usage:"Host application root (defaults to the current directory)"`
	Manifest string `default:"modules.json" usage:"Plugin manifest (JSON, or YAML if it ends in .yml/.yaml)"`
	Jobs     int    `default:"0" usage:"Parallel make jobs; 0 uses the number of CPUs"`
	Profile  string `default:"release" usage:"Build profile (release or asan)"`
	OnError  string `default:"continue" usage:"What to do when a command fails (continue or fail-fast)"`
	Remote   string `default:"https://github.com" usage:"Base URL repositories are cloned from"`
	DryRun   bool   `default:"false" usage:"Only print the commands, don't execute anything"`
	Debug    bool   `default:"false" usage:"Print every log field and full error stacks"`
	Host     struct {
		Clone bool   `default:"false" usage:"Clone the host application before building it"`
		User  string `default:"VCVRack"`
		Repo  string `default:"Rack"`
	}
	Ledger struct {
		Enabled bool   `default:"true" usage:"Record every run in the state database"`
		Path    string `default:".rackbuild/state.db" usage:"State database, relative to the host root"`
	}
	Metrics struct {
		File string `usage:"Write Prometheus metrics to this file after the run"`
	}
	Log struct {
		Level string `default:"info"`
		JSON  bool   `default:"false" usage:"Output JSONND instead of pretty console messages"`
	}
}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object.
// Flags are handled by cobra so the loader only looks at defaults, rackbuild.toml and
// RACKBUILD_* environment variables.
func Loader(files ...string) (*Config, *aconfig.Loader) {
	if len(files) == 0 {
		files = []string{"rackbuild.toml"}
	}

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "RACKBUILD",
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if _, err := buildsys.ParseProfile(cfg.Profile); err != nil {
		return eris.Wrap(err, "Invalid value for profile")
	}

	if _, err := buildsys.ParsePolicy(cfg.OnError); err != nil {
		return eris.Wrap(err, "Invalid value for on_error")
	}

	if cfg.Jobs < 0 {
		return eris.Errorf("Invalid value for jobs: %d (must be 0 or positive)", cfg.Jobs)
	}

	if cfg.Host.Clone && (cfg.Host.User == "" || cfg.Host.Repo == "") {
		return eris.New("host.user and host.repo are required when host.clone is enabled")
	}

	if _, ok := logLevels[cfg.Log.Level]; !ok {
		return eris.Errorf("Invalid value for log.level: %s", cfg.Log.Level)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}

// ResolvePath makes path absolute relative to base unless it already is
func ResolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(base, path)
}

// Options turns the config into the immutable options used by the build.
// invocationDir is used when Root is empty.
func (cfg *Config) Options(invocationDir string) (buildsys.Options, error) {
	profile, err := buildsys.ParseProfile(cfg.Profile)
	if err != nil {
		return buildsys.Options{}, err
	}

	policy, err := buildsys.ParsePolicy(cfg.OnError)
	if err != nil {
		return buildsys.Options{}, err
	}

	jobs := cfg.Jobs
	if jobs == 0 {
		jobs = buildsys.DetectJobs()
	}

	root := invocationDir
	if cfg.Root != "" {
		root = ResolvePath(invocationDir, cfg.Root)
	}

	return buildsys.Options{
		Root:      root,
		Jobs:      jobs,
		Profile:   profile,
		Policy:    policy,
		Remote:    cfg.Remote,
		CloneHost: cfg.Host.Clone,
		HostUser:  cfg.Host.User,
		HostRepo:  cfg.Host.Repo,
		DryRun:    cfg.DryRun,
	}, nil
}

// ManifestPath returns the manifest location. Relative paths are resolved
// against the invocation directory, not the host root.
func (cfg *Config) ManifestPath(invocationDir string) string {
	path := cfg.Manifest
	if path == "" {
		path = manifest.DefaultFile
	}

	return ResolvePath(invocationDir, path)
}

// LedgerPath returns the location of the state database for the given host root
func (cfg *Config) LedgerPath(hostDir string) string {
	path := cfg.Ledger.Path
	if path == "" {
		path = ledger.DefaultPath
	}

	return ResolvePath(hostDir, path)
}
