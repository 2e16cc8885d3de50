package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/stwalsh4118/houseprice/internal/models"
)

// Artifact source names.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrInvalidArtifact  = errors.New("invalid artifact")
)

// Bundle is the immutable prediction context built once at startup.
// Nothing mutates it after Load returns, so it is safe to share across
// request goroutines.
type Bundle struct {
	LoadedAt time.Time
	Model    Regressor
	Version  string
	Source   string
	Params   models.ParameterDescriptor
}

// Source loads a Bundle from persisted storage.
type Source interface {
	Load(ctx context.Context) (*Bundle, error)
}

// NewBundle checks that model and params agree on the feature vector width.
func NewBundle(model Regressor, params models.ParameterDescriptor, source, version string) (*Bundle, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: params: %v", ErrInvalidArtifact, err)
	}
	if model.NumFeatures() != params.Width() {
		return nil, fmt.Errorf("%w: model expects %d features, params describe %d",
			ErrInvalidArtifact, model.NumFeatures(), params.Width())
	}

	cols := make([]string, len(params.Columns))
	copy(cols, params.Columns)

	return &Bundle{
		LoadedAt: time.Now(),
		Model:    model,
		Version:  version,
		Source:   source,
		Params:   models.ParameterDescriptor{Columns: cols, Prefix: params.Prefix},
	}, nil
}

// DecodeParams parses a serialized parameter descriptor.
func DecodeParams(data []byte) (models.ParameterDescriptor, error) {
	var p models.ParameterDescriptor
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("%w: params is not valid JSON: %v", ErrInvalidArtifact, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%w: params: %v", ErrInvalidArtifact, err)
	}
	return p, nil
}

// FileSource reads model and params artifacts from a directory.
type FileSource struct {
	Dir        string
	ModelFile  string
	ParamsFile string
}

// NewFileSource creates a FileSource. An empty dir resolves to the
// directory holding the running executable.
func NewFileSource(dir, modelFile, paramsFile string) (*FileSource, error) {
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable path: %w", err)
		}
		dir = filepath.Dir(exe)
	}

	return &FileSource{
		Dir:        dir,
		ModelFile:  modelFile,
		ParamsFile: paramsFile,
	}, nil
}

// ModelPath returns the absolute location of the model artifact.
func (s *FileSource) ModelPath() string {
	return filepath.Join(s.Dir, s.ModelFile)
}

// ParamsPath returns the absolute location of the params artifact.
func (s *FileSource) ParamsPath() string {
	return filepath.Join(s.Dir, s.ParamsFile)
}

// Load reads and validates both artifacts.
func (s *FileSource) Load(ctx context.Context) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	modelData, err := readArtifact(s.ModelPath())
	if err != nil {
		return nil, err
	}
	paramsData, err := readArtifact(s.ParamsPath())
	if err != nil {
		return nil, err
	}

	model, err := DecodeModel(modelData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.ModelPath(), err)
	}
	params, err := DecodeParams(paramsData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.ParamsPath(), err)
	}

	info, err := os.Stat(s.ModelPath())
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", s.ModelPath(), err)
	}
	version := info.ModTime().UTC().Format(time.RFC3339)

	return NewBundle(model, params, SourceFile, version)
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// SnapshotFinder looks up the active snapshot for a model key.
// It returns nil, nil when no snapshot is active.
type SnapshotFinder interface {
	FindActive(ctx context.Context, modelKey string) (*models.ModelSnapshot, error)
}

// SnapshotSource loads artifacts from the model snapshot store.
type SnapshotSource struct {
	finder   SnapshotFinder
	modelKey string
}

// NewSnapshotSource creates a SnapshotSource for the given model key.
func NewSnapshotSource(finder SnapshotFinder, modelKey string) *SnapshotSource {
	return &SnapshotSource{
		finder:   finder,
		modelKey: modelKey,
	}
}

// Load reads the active snapshot and validates it.
func (s *SnapshotSource) Load(ctx context.Context) (*Bundle, error) {
	snap, err := s.finder.FindActive(ctx, s.modelKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot %q: %w", s.modelKey, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: no active snapshot for %q", ErrArtifactNotFound, s.modelKey)
	}

	model, err := DecodeModel(snap.ModelJSON)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s v%d: %w", snap.ModelKey, snap.Version, err)
	}

	return NewBundle(model, snap.Params, SourcePostgres, fmt.Sprintf("%s@v%d", snap.ModelKey, snap.Version))
}
