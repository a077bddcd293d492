package buildenv

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Target selects which GPU toolchain the extensions are compiled against.
type Target string

const (
	// TargetAuto resolves to rocm when the HIP compiler is present.
	TargetAuto Target = "auto"
	TargetROCm Target = "rocm"
	TargetCUDA Target = "cuda"
)

const (
	buildTargetKey     = "BUILD_TARGET"
	gpuArchsKey        = "GPU_ARCHS"
	ckDirKey           = "CK_DIR"
	maxJobsKey         = "MAX_JOBS"
	prebuildKernelsKey = "PREBUILD_KERNELS"

	defaultGPUArch       = "native"
	defaultRequestedJobs = 1

	hipCompiler = "hipcc"
)

var ErrUnsupportedTarget = errors.New("only the rocm build target is supported")

// Config is the resolved build environment. All values are explicit: the
// computed job limit is handed to the runner as a return value rather than
// being written back into the process environment.
type Config struct {
	// BuildTarget is the resolved toolchain, never TargetAuto after Load.
	BuildTarget Target `mapstructure:"BUILD_TARGET"`

	// GPUArchs is the requested offload architecture list, semicolon
	// separated in the environment.
	GPUArchs []string `mapstructure:"GPU_ARCHS"`

	// CKDir is the composable_kernel checkout the kernels compile against.
	CKDir string `mapstructure:"CK_DIR"`

	// RequestedJobs is the parallelism the caller asked for, before
	// throttling. Unset or non-positive values fall back to 1.
	RequestedJobs int `mapstructure:"MAX_JOBS"`

	// PrebuildKernels adds the full-operator prebuild module to the plan.
	PrebuildKernels bool `mapstructure:"PREBUILD_KERNELS"`

	// Paths derived from the project root.
	RootDir  string
	BuildDir string
	BlobDir  string
	MetaDir  string
}

// Load reads the build environment for the project rooted at rootDir and
// validates it. The zero values of all knobs reproduce a plain
// single-threaded rocm build for the native architecture.
func Load(rootDir string) (Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault(buildTargetKey, string(TargetAuto))
	v.SetDefault(gpuArchsKey, defaultGPUArch)
	v.SetDefault(ckDirKey, filepath.Join(rootDir, "3rdparty", "composable_kernel"))
	v.SetDefault(maxJobsKey, defaultRequestedJobs)
	v.SetDefault(prebuildKernelsKey, false)
	for _, key := range []string{buildTargetKey, gpuArchsKey, ckDirKey, maxJobsKey, prebuildKernelsKey} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, errors.Wrapf(err, "failed to bind %s", key)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(";"),
	))); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse build environment")
	}

	cfg.RootDir = rootDir
	cfg.BuildDir = filepath.Join(rootDir, "build")
	cfg.BlobDir = filepath.Join(cfg.BuildDir, "blob")
	cfg.MetaDir = filepath.Join(rootDir, "aiter_meta")

	if cfg.RequestedJobs < 1 {
		cfg.RequestedJobs = defaultRequestedJobs
	}

	target, err := resolveTarget(cfg.BuildTarget)
	if err != nil {
		return Config{}, err
	}
	cfg.BuildTarget = target

	if _, err := os.Stat(cfg.CKDir); err != nil {
		return Config{}, errors.Wrapf(err,
			"composable_kernel not found at %s, clone the repository with --recursive "+
				"or run: git submodule sync && git submodule update --init --recursive",
			cfg.CKDir)
	}

	return cfg, nil
}

func resolveTarget(target Target) (Target, error) {
	switch target {
	case TargetROCm:
		return TargetROCm, nil
	case TargetCUDA:
		return "", ErrUnsupportedTarget
	case TargetAuto:
		if _, err := exec.LookPath(hipCompiler); err != nil {
			return "", errors.Wrapf(ErrUnsupportedTarget, "%s not found in PATH", hipCompiler)
		}
		return TargetROCm, nil
	default:
		return "", errors.Errorf("unknown build target %q", target)
	}
}
