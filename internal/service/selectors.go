// internal/service/selectors.go
package service

import (
	"context"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/model"
	"github.com/unclebandit/autoinvite/internal/repository"
)

// Selectors decides which recipients are due for each message category.
// Calendar arithmetic happens here; the store only runs the queries.
type Selectors struct {
	Store    repository.SelectorRepositoryInterface
	Now      func() time.Time
	Location *time.Location
	// GraceDays widens the thank-you and morning-reminder gates from the
	// trigger day alone to [trigger, trigger+GraceDays].
	GraceDays int
}

func (s *Selectors) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Today is the current calendar date at midnight in the configured zone.
func (s *Selectors) Today() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return dateIn(now(), s.loc())
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// calendarDate reinterprets a stored event date (a bare date) in loc.
func calendarDate(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

func (s *Selectors) InitialInvitations(ctx context.Context, campaignID int) ([]model.Candidate, error) {
	return s.Store.PendingInvitations(ctx, campaignID)
}

// Reminders returns recipients whose last invitation is at least
// intervalDays calendar days old and who have reminder rounds left.
func (s *Selectors) Reminders(ctx context.Context, campaignID, intervalDays, reminderCount int) ([]model.Candidate, error) {
	if reminderCount <= 0 {
		return []model.Candidate{}, nil
	}
	if intervalDays < model.MinMessageIntervalDays {
		return nil, fmt.Errorf("%w: interval of %d days", appErrors.ErrInvalidConfig, intervalDays)
	}
	// sent on or before today-intervalDays means sent before the start of
	// the following day
	sentBefore := s.Today().AddDate(0, 0, -intervalDays+1)
	return s.Store.DueReminders(ctx, campaignID, sentBefore, reminderCount+1)
}

// ThankYou is only active on the day after the event.
func (s *Selectors) ThankYou(ctx context.Context, campaignID int, eventDate time.Time) ([]model.Candidate, error) {
	trigger := calendarDate(eventDate, s.loc()).AddDate(0, 0, 1)
	if !s.withinGate(trigger) {
		return []model.Candidate{}, nil
	}
	return s.Store.AttendingWithout(ctx, campaignID, model.KindThankYou)
}

// MorningReminders is only active on the event day itself.
func (s *Selectors) MorningReminders(ctx context.Context, campaignID int, eventDate time.Time) ([]model.Candidate, error) {
	trigger := calendarDate(eventDate, s.loc())
	if !s.withinGate(trigger) {
		return []model.Candidate{}, nil
	}
	return s.Store.AttendingWithout(ctx, campaignID, model.KindMorningReminder)
}

func (s *Selectors) withinGate(trigger time.Time) bool {
	today := s.Today()
	last := trigger.AddDate(0, 0, s.GraceDays)
	return !today.Before(trigger) && !today.After(last)
}
