package progress

import (
	"fmt"
	"log"
	"time"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
)

// Reconciler folds now-playing reports from whichever device is active for a
// title into the local resume cache.
//
// The merge policy is last-writer-wins-by-progress, not by timestamp: wall
// clocks across devices are unreliable, but "how far into the content" only
// moves forward during a viewing, so the further-along report wins and a
// stale remote report can never regress a local position.
type Reconciler struct {
	repo    *Repository
	logger  *log.Logger
	nowFunc func() time.Time
}

// Progress outside this window is noise: the first moments of a load and the
// credits roll-off are not meaningful resume points.
const (
	minProgressFraction = 0.005
	maxProgressFraction = 0.98
)

// NewReconciler creates a reconciler over the resume repository.
func NewReconciler(repo *Repository, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{repo: repo, logger: logger, nowFunc: time.Now}
}

// ContentKey derives the resume key for a report: imdbId alone for movies,
// imdbId:season:episode for show episodes.
func ContentKey(imdbID string, season, episode int) string {
	if season > 0 || episode > 0 {
		return fmt.Sprintf("%s:%d:%d", imdbID, season, episode)
	}
	return imdbID
}

// Apply merges one now-playing report. Returns whether the stored position
// changed. Reports without identity or duration, or with progress outside the
// noise window, are ignored.
func (rc *Reconciler) Apply(deviceID string, np *protocol.NowPlayingInfo) (bool, error) {
	if np == nil || np.ImdbID == "" || np.DurationSeconds <= 0 {
		return false, nil
	}
	fraction := np.ProgressSeconds / np.DurationSeconds
	if fraction <= minProgressFraction || fraction >= maxProgressFraction {
		return false, nil
	}

	key := ContentKey(np.ImdbID, np.Season, np.Episode)
	existing, err := rc.repo.Get(key)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.ProgressSeconds >= np.ProgressSeconds {
		return false, nil
	}

	pos := ResumePosition{
		ContentKey:      key,
		ImdbID:          np.ImdbID,
		Season:          np.Season,
		Episode:         np.Episode,
		Title:           np.Title,
		ProgressSeconds: np.ProgressSeconds,
		DurationSeconds: np.DurationSeconds,
		ReportedBy:      deviceID,
		UpdatedAt:       rc.nowFunc(),
	}
	if err := rc.repo.Upsert(pos); err != nil {
		return false, err
	}
	return true, nil
}
