package stage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.ptx.dk/multierrgroup"

	"github.com/Vivicai1005/aiter/pkg/compute/capacity/system"
)

// MetaTreeDirs are the source trees shipped alongside the compiled
// extensions so the jit path can rebuild kernels at runtime.
var MetaTreeDirs = []string{"3rdparty", "hsa", "csrc"}

// lowDiskWatermark is the free-space level below which staging logs a
// warning. Kernel objects plus the staged trees comfortably fit above it.
const lowDiskWatermark = 10 * datasize.GB

// StageMetaTree copies the meta source trees from rootDir into metaDir,
// replacing any stale tree from a previous run. The trees are independent
// and are copied in parallel. The staged directory is left world-writable
// so the downstream packaging step can prune it.
func StageMetaTree(ctx context.Context, rootDir, metaDir string) error {
	if _, err := os.Stat(metaDir); err == nil {
		if err := os.RemoveAll(metaDir); err != nil {
			return errors.Wrapf(err, "failed to remove stale meta tree %s", metaDir)
		}
	}

	warnIfLowDiskSpace(ctx, rootDir)

	wg := multierrgroup.Group{}
	for _, dir := range MetaTreeDirs {
		dir := dir // https://golang.org/doc/faq#closures_and_goroutines
		wg.Go(func() error {
			source := filepath.Join(rootDir, dir)
			destination := filepath.Join(metaDir, dir)
			log.Ctx(ctx).Debug().
				Str("Source", source).
				Str("Destination", destination).
				Msg("Staging meta tree")
			return copyTree(source, destination)
		})
	}
	if err := wg.Wait(); err != nil {
		return err
	}

	return os.Chmod(metaDir, os.ModePerm)
}

// RemoveMetaTree deletes a previously staged meta tree, if any.
func RemoveMetaTree(metaDir string) error {
	return os.RemoveAll(metaDir)
}

// RenameCppToCu stages C++ solver sources into buildDir under a .cu
// extension so the device compiler treats them as HIP sources. Each path
// may be a single source file or a directory that is searched recursively.
// Returns the staged file paths.
func RenameCppToCu(ctx context.Context, paths []string, buildDir string) ([]string, error) {
	if err := os.MkdirAll(buildDir, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "failed to create build dir %s", buildDir)
	}

	var sources []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat source path %s", path)
		}
		if !info.IsDir() {
			sources = append(sources, path)
			continue
		}

		matches, err := doublestar.FilepathGlob(filepath.Join(path, "**", "*.cpp"))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to glob sources under %s", path)
		}
		sources = append(sources, matches...)
	}

	staged := make([]string, 0, len(sources))
	for _, source := range sources {
		base := filepath.Base(source)
		base = strings.TrimSuffix(base, ".cpp") + ".cu"
		destination := filepath.Join(buildDir, base)

		if err := copyFile(source, destination); err != nil {
			return nil, errors.Wrapf(err, "failed to stage %s", source)
		}
		log.Ctx(ctx).Debug().
			Str("Source", source).
			Str("Destination", destination).
			Msg("Staged kernel source")
		staged = append(staged, destination)
	}

	return staged, nil
}

func warnIfLowDiskSpace(ctx context.Context, path string) {
	free, err := system.GetFreeDiskSpace(path)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Cannot check free disk space before staging")
		return
	}
	if datasize.ByteSize(free) < lowDiskWatermark {
		log.Ctx(ctx).Warn().
			Str("Free", datasize.ByteSize(free).HumanReadable()).
			Str("Watermark", lowDiskWatermark.HumanReadable()).
			Msg("Low disk space, staging kernel sources may fail")
	}
}

func copyTree(source, destination string) error {
	return filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relative, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destination, relative)

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target)
	})
}

func copyFile(source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destination), os.ModePerm); err != nil {
		return err
	}

	out, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return out.Close()
}
