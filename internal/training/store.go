package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/yourusername/edge-finder/internal/models"
)

// DiskStore persists model bundles as versioned JSON files in one directory.
// Each bundle gets a sibling metadata file and a feature importance dump.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the store directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) bundlePath(target string, version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_v%d.json", target, version))
}

func (s *DiskStore) metaPath(target string, version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_v%d_meta.json", target, version))
}

func (s *DiskStore) importancePath(target string, version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("feature_importance_v%d_%s.json", version, target))
}

// NextVersion returns one past the highest version currently on disk for the
// target, starting at 1.
func (s *DiskStore) NextVersion(target string) (int, error) {
	latest, err := s.latestVersion(target)
	if err != nil {
		return 0, err
	}
	return latest + 1, nil
}

func (s *DiskStore) latestVersion(target string) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read model directory: %w", err)
	}

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(target) + `_v(\d+)\.json$`)
	latest := 0
	for _, entry := range entries {
		m := pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err == nil && v > latest {
			latest = v
		}
	}
	return latest, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalise %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Save persists the bundle, its metadata and its feature importance dump.
// Returns the bundle file path.
func (s *DiskStore) Save(bundle *Bundle, meta *models.ModelMeta) (string, error) {
	path := s.bundlePath(bundle.Target, bundle.Version)
	if err := writeJSON(path, bundle); err != nil {
		return "", err
	}
	meta.ModelFile = filepath.Base(path)
	if err := writeJSON(s.metaPath(bundle.Target, bundle.Version), meta); err != nil {
		return "", err
	}
	if err := writeJSON(s.importancePath(bundle.Target, bundle.Version), bundle.ImportanceByFeature()); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads one specific bundle version.
func (s *DiskStore) Load(target string, version int) (*Bundle, error) {
	data, err := os.ReadFile(s.bundlePath(target, version))
	if os.IsNotExist(err) {
		return nil, models.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model bundle: %w", err)
	}

	bundle := &Bundle{}
	if err := json.Unmarshal(data, bundle); err != nil {
		return nil, fmt.Errorf("failed to decode model bundle: %w", err)
	}
	if bundle.Booster == nil || len(bundle.Classes) == 0 {
		return nil, fmt.Errorf("model bundle %s_v%d is incomplete", target, version)
	}
	return bundle, nil
}

// LoadLatest reads the highest persisted version for a target.
// models.ErrModelNotFound when the target has never been trained.
func (s *DiskStore) LoadLatest(target string) (*Bundle, error) {
	latest, err := s.latestVersion(target)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, models.ErrModelNotFound
	}
	return s.Load(target, latest)
}

// HasModel reports whether any trained version exists for the target.
func (s *DiskStore) HasModel(target string) bool {
	latest, err := s.latestVersion(target)
	return err == nil && latest > 0
}

// LoadMeta reads the metadata sidecar for one version.
func (s *DiskStore) LoadMeta(target string, version int) (*models.ModelMeta, error) {
	data, err := os.ReadFile(s.metaPath(target, version))
	if os.IsNotExist(err) {
		return nil, models.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}
	meta := &models.ModelMeta{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("failed to decode model metadata: %w", err)
	}
	return meta, nil
}
