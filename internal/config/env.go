package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"kas/internal/kaserr"
)

// EnvPrefix is the prefix of the environment variables read by kas.
const EnvPrefix = "KAS"

// DefaultDrainTimeout is the shutdown grace period used when
// KAS_DRAIN_TIMEOUT is not set.
const DefaultDrainTimeout = 30 * time.Second

// Environment is the tool configuration taken from KAS_* variables.
type Environment struct {
	// WorkDir is where plugins place downloads and sources (KAS_WORK_DIR).
	WorkDir string
	// BuildDir is the build directory (KAS_BUILD_DIR), WorkDir/build by default.
	BuildDir string
	// Jobs limits concurrently running background tasks (KAS_JOBS); 0 is unbounded.
	Jobs int
	// DrainTimeout is the grace period of the shutdown drain (KAS_DRAIN_TIMEOUT).
	DrainTimeout time.Duration
}

// LoadEnvironment reads the KAS_* environment variables.
// Malformed values are user errors.
func LoadEnvironment() (Environment, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cwd, err := os.Getwd()
	if err != nil {
		return Environment{}, fmt.Errorf("determining working directory: %w", err)
	}
	v.SetDefault("work_dir", cwd)
	v.SetDefault("jobs", "0")
	v.SetDefault("drain_timeout", DefaultDrainTimeout.String())

	env := Environment{}
	if env.WorkDir, err = filepath.Abs(v.GetString("work_dir")); err != nil {
		return Environment{}, &kaserr.UserError{Msg: "invalid KAS_WORK_DIR", Err: err}
	}
	env.BuildDir = v.GetString("build_dir")
	if env.BuildDir == "" {
		env.BuildDir = filepath.Join(env.WorkDir, "build")
	} else if env.BuildDir, err = filepath.Abs(env.BuildDir); err != nil {
		return Environment{}, &kaserr.UserError{Msg: "invalid KAS_BUILD_DIR", Err: err}
	}

	jobs, err := strconv.Atoi(strings.TrimSpace(v.GetString("jobs")))
	if err != nil || jobs < 0 {
		return Environment{}, kaserr.NewUserError("invalid KAS_JOBS %q: expected a non-negative integer", v.GetString("jobs"))
	}
	env.Jobs = jobs

	timeout, err := time.ParseDuration(strings.TrimSpace(v.GetString("drain_timeout")))
	if err != nil || timeout < 0 {
		return Environment{}, kaserr.NewUserError("invalid KAS_DRAIN_TIMEOUT %q: expected a duration such as 30s", v.GetString("drain_timeout"))
	}
	env.DrainTimeout = timeout
	return env, nil
}

// Vars returns the environment exported to child processes in addition to
// the inherited one.
func (e Environment) Vars() []string {
	return []string{
		"KAS_WORK_DIR=" + e.WorkDir,
		"KAS_BUILD_DIR=" + e.BuildDir,
		"BUILDDIR=" + e.BuildDir,
	}
}
