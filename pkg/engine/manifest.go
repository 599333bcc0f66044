package engine

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/model"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage"
)

// manifestName is written last; its presence marks a completed job.
const manifestName = "manifest.json"

// ManifestFile locates one persisted artifact.
type ManifestFile struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

// Manifest is the completion record of a job. Readers load exactly the
// files it names and nothing else.
type Manifest struct {
	SchemaVersion string                  `json:"schema_version"`
	ModelType     string                  `json:"model_type"`
	CreatedAt     string                  `json:"created_at"`
	Files         map[string]ManifestFile `json:"files"`
}

func newManifest(modelType string) *Manifest {
	return &Manifest{
		SchemaVersion: model.SchemaVersion,
		ModelType:     modelType,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Files:         map[string]ManifestFile{},
	}
}

// add records a persisted file under its logical key.
func (m *Manifest) add(key, name, format string) {
	m.Files[key] = ManifestFile{Path: name, Format: format}
}

func (m *Manifest) write(ctx context.Context, store *storage.JobStore) error {
	if err := store.WriteJSON(ctx, manifestName, m); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "writing manifest")
	}
	return nil
}

// majorVersion extracts the leading component of a schema version
// string.
func majorVersion(version string) (int, error) {
	head, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, errors.Newf(errors.ErrorTypeValidation, "malformed schema version %q", version)
	}
	return n, nil
}
