package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FormatVersion is bumped when the on-disk layout changes incompatibly.
const FormatVersion = 1

// CurrentFile names the live generation. It is replaced atomically, so
// watching it for writes and renames detects every completed build.
const CurrentFile = "CURRENT"

const (
	manifestFile = "manifest.json"
	dbDir        = "db"
	genPrefix    = "gen-"
)

// Manifest describes one index generation.
type Manifest struct {
	Collection    string    `json:"collection"`
	Model         string    `json:"model"`
	Dimension     int       `json:"dimension"`
	Count         int       `json:"count"`
	BuiltAt       time.Time `json:"built_at"`
	FormatVersion int       `json:"format_version"`

	// Generation is the directory name; it is not stored.
	Generation string `json:"-"`
}

// Check returns ErrModelMismatch if fp differs from the model the
// generation was built with.
func (m Manifest) Check(fp Fingerprint) error {
	if m.Model != fp.Model() {
		return fmt.Errorf("%w: index built with %q, embedder is %q", ErrModelMismatch, m.Model, fp.Model())
	}
	if m.Dimension != fp.Dimension() {
		return fmt.Errorf("%w: index dimension %d, embedder dimension %d", ErrModelMismatch, m.Dimension, fp.Dimension())
	}
	return nil
}

func newGenerationName(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", genPrefix, now.UnixNano(), uuid.NewString()[:8])
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func writeManifest(genDir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return writeFileAtomic(filepath.Join(genDir, manifestFile), append(data, '\n'))
}

func readManifest(genDir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(genDir, manifestFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: decoding manifest: %v", ErrCorruptIndex, err)
	}
	if m.FormatVersion != FormatVersion {
		return m, fmt.Errorf("%w: format version %d, want %d", ErrCorruptIndex, m.FormatVersion, FormatVersion)
	}
	m.Generation = filepath.Base(genDir)
	return m, nil
}

// currentGeneration reads the CURRENT pointer. It returns ErrIndexNotFound
// when no build has completed.
func currentGeneration(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, CurrentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: no %s in %s", ErrIndexNotFound, CurrentFile, root)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", CurrentFile, err)
	}
	name := strings.TrimSpace(string(data))
	if !strings.HasPrefix(name, genPrefix) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %s names %q", ErrCorruptIndex, CurrentFile, name)
	}
	return name, nil
}

func setCurrentGeneration(root, name string) error {
	return writeFileAtomic(filepath.Join(root, CurrentFile), []byte(name+"\n"))
}

// ReadManifest returns the manifest of the live generation under root.
func ReadManifest(root string) (Manifest, error) {
	root, err := expandPath(root)
	if err != nil {
		return Manifest{}, fmt.Errorf("expanding path: %w", err)
	}
	gen, err := currentGeneration(root)
	if err != nil {
		return Manifest{}, err
	}
	m, err := readManifest(filepath.Join(root, gen))
	if errors.Is(err, fs.ErrNotExist) {
		return m, fmt.Errorf("%w: generation %s has no manifest", ErrCorruptIndex, gen)
	}
	return m, err
}

// Prune removes completed generations other than the live one, keeping the
// keep-1 most recent. Directories without a manifest belong to builds in
// progress and are left alone.
func Prune(root string, keep int, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keep < 1 {
		keep = 1
	}
	root, err := expandPath(root)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	current, err := currentGeneration(root)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}

	var older []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, genPrefix) || name == current {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, name, manifestFile)); err != nil {
			continue
		}
		older = append(older, name)
	}

	// Names embed a nanosecond timestamp, so lexical order is build order.
	sort.Sort(sort.Reverse(sort.StringSlice(older)))

	var removed []string
	for i, name := range older {
		if i < keep-1 {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, name)); err != nil {
			logger.Warn("failed to prune generation", zap.String("generation", name), zap.Error(err))
			continue
		}
		removed = append(removed, name)
	}

	if len(removed) > 0 {
		logger.Info("pruned index generations", zap.Strings("generations", removed))
	}
	return removed, nil
}
