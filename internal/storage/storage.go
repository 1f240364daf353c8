package storage

import (
	"context"
	"errors"

	"github.com/silentwatch/case-engine/pkg/progress"
	"github.com/silentwatch/case-engine/pkg/script"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("storage: not found")

// Storage is the persistence boundary for the engine: case progress
// documents, the scenario document, investigator profiles, and the
// provider API keys.
type Storage interface {
	// Ping checks connectivity for health reporting.
	Ping(ctx context.Context) error
	Close() error

	// LoadProgress returns ErrNotFound when the user has not accepted
	// the case yet.
	LoadProgress(ctx context.Context, userID, caseID string) (*progress.CaseProgress, error)
	SaveProgress(ctx context.Context, doc *progress.CaseProgress) error

	LoadScenario(ctx context.Context, userID string) (*script.Progress, error)
	SaveScenario(ctx context.Context, doc *script.Progress) error

	LoadProfile(ctx context.Context, userID string) (*progress.Profile, error)
	SaveProfile(ctx context.Context, p *progress.Profile) error

	// GetAPIKeys returns the provider key map (provider name -> key).
	GetAPIKeys(ctx context.Context) (map[string]string, error)
}
