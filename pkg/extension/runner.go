package extension

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const defaultCompiler = "hipcc"

type RunnerParams struct {
	// Compiler is the device compiler binary, hipcc when empty.
	Compiler string

	// OutputDir receives the objects and linked shared objects.
	OutputDir string
}

// Runner executes a Plan: it compiles every module source with at most
// Plan.JobLimit concurrent compiler processes, then links each module into
// a shared object. The job limit is advisory for the compile phase only,
// linking is sequential.
type Runner struct {
	compiler  string
	outputDir string
}

func NewRunner(params RunnerParams) *Runner {
	compiler := params.Compiler
	if compiler == "" {
		compiler = defaultCompiler
	}
	return &Runner{
		compiler:  compiler,
		outputDir: params.OutputDir,
	}
}

func (r *Runner) Run(ctx context.Context, plan *Plan) error {
	for _, module := range plan.Modules {
		objects, err := r.compileModule(ctx, module, plan.JobLimit)
		if err != nil {
			return errors.Wrapf(err, "failed to compile %s", module.Name)
		}
		if err := r.linkModule(ctx, module, objects); err != nil {
			return errors.Wrapf(err, "failed to link %s", module.Name)
		}
	}
	return nil
}

func (r *Runner) compileModule(ctx context.Context, module Module, jobLimit int) ([]string, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(jobLimit)

	objects := make([]string, len(module.Sources))
	for i, source := range module.Sources {
		i, source := i, source
		object := filepath.Join(r.outputDir, objectName(module.Name, source))
		objects[i] = object

		group.Go(func() error {
			args := append([]string{}, module.DeviceFlags...)
			for _, include := range module.IncludeDirs {
				args = append(args, "-I"+include)
			}
			args = append(args, "-fPIC", "-c", source, "-o", object)
			return r.runCompiler(groupCtx, args)
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return objects, nil
}

func (r *Runner) linkModule(ctx context.Context, module Module, objects []string) error {
	args := []string{"-shared", "-o", filepath.Join(r.outputDir, module.Name+".so")}
	args = append(args, objects...)
	args = append(args, lo.Map(module.Libraries, func(library string, _ int) string {
		return "-l" + library
	})...)
	return r.runCompiler(ctx, args)
}

func (r *Runner) runCompiler(ctx context.Context, args []string) error {
	log.Ctx(ctx).Debug().
		Str("Compiler", r.compiler).
		Str("Args", strings.Join(args, " ")).
		Msg("Running compiler")

	cmd := exec.CommandContext(ctx, r.compiler, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s %s: %s", r.compiler, strings.Join(args, " "), string(output))
	}
	return nil
}

// objectName keeps objects from same-named sources in different modules
// from colliding in the shared output dir.
func objectName(moduleName, source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_%s.o", moduleName, base)
}
