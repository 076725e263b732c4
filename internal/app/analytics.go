package app

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"feedbackhub/pkg/domain"
)

const (
	analyticsWindowDays = 30
	topActivityLimit    = 10
)

// Analytics builds the admin analytics report. The five aggregations
// are independent, so they run concurrently against the store.
func (a *App) Analytics(ident domain.Identity) (domain.AnalyticsReport, error) {
	if !CanAccessAdmin(&ident) {
		return domain.AnalyticsReport{}, ErrForbidden
	}
	since := time.Now().UTC().AddDate(0, 0, -analyticsWindowDays)

	var report domain.AnalyticsReport
	var g errgroup.Group
	g.Go(func() error {
		daily, err := a.store.DailyFeedbackCounts(since)
		if err != nil {
			return fmt.Errorf("daily counts: %w", err)
		}
		report.DailyCreated = daily
		return nil
	})
	g.Go(func() error {
		categories, err := a.store.CategoryCounts()
		if err != nil {
			return fmt.Errorf("category counts: %w", err)
		}
		report.Categories = categories
		return nil
	})
	g.Go(func() error {
		statuses, err := a.store.StatusCounts()
		if err != nil {
			return fmt.Errorf("status counts: %w", err)
		}
		report.Statuses = statuses
		return nil
	})
	g.Go(func() error {
		authors, err := a.store.TopAuthors(topActivityLimit)
		if err != nil {
			return fmt.Errorf("top authors: %w", err)
		}
		report.TopAuthors = authors
		return nil
	})
	g.Go(func() error {
		commenters, err := a.store.TopCommenters(topActivityLimit)
		if err != nil {
			return fmt.Errorf("top commenters: %w", err)
		}
		report.TopCommenters = commenters
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.AnalyticsReport{}, err
	}

	for i := range report.TopAuthors {
		report.TopAuthors[i].Name = a.userName(report.TopAuthors[i].UserID)
	}
	for i := range report.TopCommenters {
		report.TopCommenters[i].Name = a.userName(report.TopCommenters[i].UserID)
	}
	return report, nil
}
