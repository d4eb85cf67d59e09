//go:build cgo

package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// ONNXRuntimeVersion is the runtime release matching onnxruntime_go.
const ONNXRuntimeVersion = "1.23.0"

const onnxReleaseURL = "https://github.com/microsoft/onnxruntime/releases/download/v%s/onnxruntime-%s-%s.tgz"

// ErrUnsupportedPlatform indicates the current OS/arch has no runtime build.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

var onnxPlatforms = map[string]string{
	"linux/amd64":  "linux-x64",
	"linux/arm64":  "linux-aarch64",
	"darwin/amd64": "osx-x86_64",
	"darwin/arm64": "osx-arm64",
}

func onnxLibraryName(goos string) string {
	if goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

// onnxInstallDir is where a downloaded runtime is kept.
func onnxInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "specrag", "lib")
}

// ONNXLibraryPath returns ONNX_PATH if set, else the managed install if it
// exists, else "".
func ONNXLibraryPath() string {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p
	}
	managed := filepath.Join(onnxInstallDir(), onnxLibraryName(runtime.GOOS))
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

// setONNXPathEnv points fastembed-go at the runtime library.
var setONNXPathEnv = func(path string) error {
	return os.Setenv("ONNX_PATH", path)
}

// EnsureONNXRuntime locates the ONNX runtime, downloading it into the
// managed directory when missing, and exports ONNX_PATH.
func EnsureONNXRuntime(ctx context.Context, logger *zap.Logger) (string, error) {
	if path := ONNXLibraryPath(); path != "" {
		return path, setONNXPathEnv(path)
	}

	platform, ok := onnxPlatforms[runtime.GOOS+"/"+runtime.GOARCH]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH)
	}

	logger.Info("ONNX runtime not found, downloading",
		zap.String("version", ONNXRuntimeVersion),
		zap.String("platform", platform))

	dir := onnxInstallDir()
	if err := downloadONNXRuntime(ctx, fmt.Sprintf(onnxReleaseURL, ONNXRuntimeVersion, platform, ONNXRuntimeVersion), dir,
		fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, ONNXRuntimeVersion)); err != nil {
		return "", fmt.Errorf("installing ONNX runtime (set ONNX_PATH to use an existing one): %w", err)
	}

	path := filepath.Join(dir, onnxLibraryName(runtime.GOOS))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("ONNX runtime installed but %s is missing", path)
	}
	logger.Info("ONNX runtime installed", zap.String("path", path))
	return path, setONNXPathEnv(path)
}

func downloadONNXRuntime(ctx context.Context, url, destDir, libPrefix string) error {
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return extractLibraries(resp.Body, destDir, libPrefix)
}

// extractLibraries copies the files and symlinks under libPrefix out of a
// release tarball into destDir.
func extractLibraries(r io.Reader, destDir, libPrefix string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	extracted := 0
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if !strings.HasPrefix(name, libPrefix) || header.Typeflag == tar.TypeDir {
			continue
		}
		dest := filepath.Join(destDir, filepath.Base(name))

		if header.Typeflag == tar.TypeSymlink {
			_ = os.Remove(dest)
			if err := os.Symlink(header.Linkname, dest); err == nil {
				extracted++
			}
			continue
		}

		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("creating %s: %w", dest, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("writing %s: %w", dest, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", dest, err)
		}
		extracted++
	}

	if extracted == 0 {
		return fmt.Errorf("no files under %s in archive", libPrefix)
	}
	return nil
}
