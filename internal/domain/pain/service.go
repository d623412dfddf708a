package pain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/events"
	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/pkg/clock"
)

// Service handles episode reporting and resolution; the Escalator owns the
// timed transitions.
type Service struct {
	repo   Repository
	sink   EventSink
	clock  clock.Clock
	logger *zap.Logger
}

// NewService creates the episode service.
func NewService(repo Repository, sink EventSink, clk clock.Clock, logger *zap.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, sink: sink, clock: clk, logger: logger}
}

// ReportInput carries a new pain report.
type ReportInput struct {
	BodyPartName  string
	BodyPartIndex []int
	Description   i18n.LocalizedText
	ScreenshotURL string
	StartTime     *time.Time
	DeviceToken   string
}

// Report creates an active episode. The check timer starts immediately.
func (s *Service) Report(ctx context.Context, userID string, in ReportInput) (*Episode, error) {
	now := s.clock.Now()
	ep := &Episode{
		ID:            uuid.New().String(),
		UserID:        userID,
		BodyPartName:  in.BodyPartName,
		BodyPartIndex: in.BodyPartIndex,
		Description:   in.Description,
		ScreenshotURL: in.ScreenshotURL,
		StartTime:     in.StartTime,
		IsActive:      true,
		LastCheckTime: now,
		DeviceToken:   in.DeviceToken,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, ep); err != nil {
		return nil, fmt.Errorf("insert episode: %w", err)
	}

	s.logger.Info("pain episode reported",
		zap.String("episode_id", ep.ID),
		zap.String("user_id", userID),
		zap.String("body_part", in.BodyPartName))
	s.publishAudit(ctx, ep, "pain.reported", now)
	return ep, nil
}

// Resolve records the user's answer to a pain check. stillHurting refreshes
// the check timer and keeps the episode active; otherwise the episode ends.
// Either way the over-24h nag is silenced.
func (s *Service) Resolve(ctx context.Context, id, userID string, stillHurting bool) (*Episode, error) {
	ep, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ep.NeedsPainCheck = false
	ep.WasOver24h = false
	ep.UpdatedAt = now

	if stillHurting {
		ep.IsActive = true
		ep.LastCheckTime = now
		ep.EndTime = nil
	} else {
		ep.IsActive = false
		endTime := now
		ep.EndTime = &endTime
	}

	if err := s.repo.Update(ctx, ep); err != nil {
		return nil, fmt.Errorf("update episode: %w", err)
	}

	s.logger.Info("pain episode resolved",
		zap.String("episode_id", ep.ID),
		zap.Bool("still_hurting", stillHurting))
	s.publishAudit(ctx, ep, "pain.resolved", now)
	return ep, nil
}

// UpdateDeviceToken replaces the fallback token recorded on the episode.
func (s *Service) UpdateDeviceToken(ctx context.Context, id, userID, token string) error {
	ep, err := s.owned(ctx, id, userID)
	if err != nil {
		return err
	}
	ep.DeviceToken = token
	ep.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, ep); err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	return nil
}

// ListByUser returns the user's episodes, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Episode, error) {
	return s.repo.FindByUser(ctx, userID)
}

// NeedingCheck returns the user's episodes awaiting a pain check answer.
func (s *Service) NeedingCheck(ctx context.Context, userID string) ([]*Episode, error) {
	return s.repo.FindNeedingCheck(ctx, userID)
}

func (s *Service) owned(ctx context.Context, id, userID string) (*Episode, error) {
	ep, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ep.UserID != userID {
		return nil, ErrNotFound
	}
	return ep, nil
}

func (s *Service) publishAudit(ctx context.Context, ep *Episode, action string, at time.Time) {
	if s.sink == nil {
		return
	}
	err := s.sink.PublishJSON(ctx, events.TopicAuditTrail, ep.ID, events.AuditEntry{
		Action: action, EntityType: "pain_episode", EntityID: ep.ID,
		UserID: ep.UserID, At: at,
	})
	if err != nil {
		s.logger.Warn("audit publish failed", zap.String("episode_id", ep.ID), zap.Error(err))
	}
}
