package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"watchtrack/internal/models"
)

const defaultSyncWorkers = 4

// SyncRequest asks the engine to propagate a series-level finished status
// down to every episode of the series.
type SyncRequest struct {
	UserID string
	TMDBID int64
	Status models.Status
	Rating *float64
}

// EpisodeRef names one episode of a series.
type EpisodeRef struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

// SyncReport summarizes one sync run. Failures stay server-side; the user
// session that triggered the sync never sees them.
type SyncReport struct {
	JobID     string       `json:"job_id"`
	Completed int          `json:"completed"`
	Failed    []EpisodeRef `json:"failed"`
}

// SyncEngine runs series syncs detached from the request that triggered them.
// Jobs run on a bounded worker pool with their own context and the engine's
// own store and gateway handles; the triggering request may be long gone by
// the time a job finishes.
type SyncEngine struct {
	tracker *Tracker
	gateway CatalogGateway
	logger  *logrus.Logger
	workers *pool.Pool
}

func NewSyncEngine(tracker *Tracker, gateway CatalogGateway, logger *logrus.Logger, workers int) *SyncEngine {
	if workers <= 0 {
		workers = defaultSyncWorkers
	}
	return &SyncEngine{
		tracker: tracker,
		gateway: gateway,
		logger:  logger,
		workers: pool.New().WithMaxGoroutines(workers),
	}
}

// Submit enqueues a sync job and returns immediately.
func (e *SyncEngine) Submit(req SyncRequest) {
	e.workers.Go(func() {
		jobID := uuid.NewString()
		log := e.logger.WithFields(logrus.Fields{
			"job_id":  jobID,
			"user_id": req.UserID,
			"tmdb_id": req.TMDBID,
			"status":  req.Status,
		})
		log.Info("Starting series sync")

		report := e.SyncSeries(context.Background(), req.UserID, req.TMDBID, req.Status, req.Rating)
		report.JobID = jobID

		log.WithFields(logrus.Fields{
			"completed": report.Completed,
			"failed":    len(report.Failed),
		}).Info("Series sync finished")
	})
}

// Close stops accepting work and waits for in-flight jobs to drain.
func (e *SyncEngine) Close() {
	e.workers.Wait()
}

// SyncSeries walks every season and episode of a series and marks each
// watched (and rated, when a rating was given). Per-season and per-episode
// failures are logged, recorded in the report and skipped; the walk never
// aborts. Re-running an already-synced series re-applies the same idempotent
// upserts and changes nothing.
func (e *SyncEngine) SyncSeries(ctx context.Context, userID string, tmdbID int64, status models.Status, rating *float64) SyncReport {
	var report SyncReport

	if !status.Finished() {
		return report
	}

	details, err := e.gateway.GetDetails(ctx, models.MediaTypeTV, tmdbID)
	if err != nil {
		e.logger.WithError(err).WithField("tmdb_id", tmdbID).Error("Series sync aborted: details fetch failed")
		return report
	}

	for _, season := range details.Seasons {
		detail, err := e.gateway.GetSeasonDetails(ctx, tmdbID, season.SeasonNumber)
		if err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"tmdb_id": tmdbID,
				"season":  season.SeasonNumber,
			}).Error("Season fetch failed, skipping")
			// the season listing still tells us how many episodes we missed
			for ep := 1; ep <= season.EpisodeCount; ep++ {
				report.Failed = append(report.Failed, EpisodeRef{Season: season.SeasonNumber, Episode: ep})
			}
			continue
		}

		for _, episode := range detail.Episodes {
			ref := EpisodeRef{Season: season.SeasonNumber, Episode: episode.EpisodeNumber}

			_, err := e.tracker.ApplyEpisodeAction(ctx, userID, tmdbID, models.MediaTypeTV,
				ref.Season, ref.Episode, models.ActionWatch, nil, nil)
			if err != nil {
				e.logger.WithError(err).WithFields(logrus.Fields{
					"tmdb_id": tmdbID,
					"season":  ref.Season,
					"episode": ref.Episode,
				}).Error("Failed to sync episode")
				report.Failed = append(report.Failed, ref)
				continue
			}

			if rating != nil {
				_, err := e.tracker.ApplyEpisodeAction(ctx, userID, tmdbID, models.MediaTypeTV,
					ref.Season, ref.Episode, models.ActionRate, rating, nil)
				if err != nil {
					e.logger.WithError(err).WithFields(logrus.Fields{
						"tmdb_id": tmdbID,
						"season":  ref.Season,
						"episode": ref.Episode,
					}).Error("Failed to sync episode rating")
					report.Failed = append(report.Failed, ref)
					continue
				}
			}

			report.Completed++
		}
	}

	return report
}
