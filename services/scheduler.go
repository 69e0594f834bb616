// services/scheduler.go
package services

import (
	"time"

	"doin-challenge/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Jobs bundles the periodic maintenance tasks.
type Jobs struct {
	Challenges    *ChallengeService
	Invitations   *InvitationService
	Collaborators *CollaboratorService
	Stats         *StatsService
	Now           func() time.Time
}

func (j *Jobs) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// TransitionAndExpire runs every minute.
func (j *Jobs) TransitionAndExpire() {
	now := j.now()
	activated, ended, err := j.Challenges.TransitionStatuses(now)
	if err != nil {
		logger.Error("[SCHEDULER] status transition failed", zap.Error(err))
	} else if activated+ended > 0 {
		logger.Info("✅ [SCHEDULER] challenge statuses updated", zap.Int64("activated", activated), zap.Int64("ended", ended))
	}

	if n, err := j.Invitations.ExpireInvitations(now); err != nil {
		logger.Error("[SCHEDULER] invitation expiry failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("[SCHEDULER] invitations expired", zap.Int64("count", n))
	}

	if n, err := j.Collaborators.ExpireInvitations(now); err != nil {
		logger.Error("[SCHEDULER] collaborator invitation expiry failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("[SCHEDULER] collaborator invitations expired", zap.Int64("count", n))
	}
}

// SnapshotStats runs every hour.
func (j *Jobs) SnapshotStats() {
	n, err := j.Stats.Snapshot(j.now())
	if err != nil {
		logger.Error("[SCHEDULER] stats snapshot failed", zap.Error(err))
		return
	}
	logger.Info("📊 [SCHEDULER] stats snapshots recorded", zap.Int("challenges", n))
}

// StartScheduler registers the jobs and starts the scheduler. Callers Shutdown it on exit.
func (j *Jobs) StartScheduler() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(jst))
	if err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(j.TransitionAndExpire),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(j.SnapshotStats),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	sched.Start()
	logger.Info("[SCHEDULER] started", zap.Int("jobs", len(sched.Jobs())))
	return sched, nil
}
