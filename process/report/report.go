// Package report summarises one month of site activity for operators.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"profilehub/models"
)

// Summary holds counts for rows created inside [Start, End).
type Summary struct {
	Start, End time.Time

	Profiles map[models.ProfileStatus]int64
	Photos   map[models.PhotoStatus]int64
	Comments map[models.CommentStatus]int64
	Reports  map[models.ReportStatus]int64
	Views    int64

	Open []models.Report
}

type statusCount struct {
	Status string
	Cnt    int64
}

// MonthBounds parses YYYY-MM into a UTC half-open range.
func MonthBounds(month string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month format, expected YYYY-MM: %w", err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

// Collect counts rows by status. With listOpen the month's unreviewed
// reports are loaded too.
func Collect(ctx context.Context, db *gorm.DB, month string, listOpen bool) (*Summary, error) {
	start, end, err := MonthBounds(month)
	if err != nil {
		return nil, err
	}
	db = db.WithContext(ctx)
	s := &Summary{Start: start, End: end}

	counts := func(model interface{}) (map[string]int64, error) {
		var rows []statusCount
		err := db.Model(model).
			Select("status, COUNT(*) AS cnt").
			Where("created_at >= ? AND created_at < ?", start, end).
			Group("status").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		out := make(map[string]int64, len(rows))
		for _, r := range rows {
			out[r.Status] = r.Cnt
		}
		return out, nil
	}

	profiles, err := counts(&models.Profile{})
	if err != nil {
		return nil, fmt.Errorf("count profiles: %w", err)
	}
	s.Profiles = make(map[models.ProfileStatus]int64, len(profiles))
	for k, v := range profiles {
		s.Profiles[models.ProfileStatus(k)] = v
	}
	photos, err := counts(&models.ProfilePhoto{})
	if err != nil {
		return nil, fmt.Errorf("count photos: %w", err)
	}
	s.Photos = make(map[models.PhotoStatus]int64, len(photos))
	for k, v := range photos {
		s.Photos[models.PhotoStatus(k)] = v
	}
	comments, err := counts(&models.Comment{})
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	s.Comments = make(map[models.CommentStatus]int64, len(comments))
	for k, v := range comments {
		s.Comments[models.CommentStatus(k)] = v
	}
	reports, err := counts(&models.Report{})
	if err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}
	s.Reports = make(map[models.ReportStatus]int64, len(reports))
	for k, v := range reports {
		s.Reports[models.ReportStatus(k)] = v
	}

	if err := db.Model(&models.Profile{}).
		Select("COALESCE(SUM(view_count), 0)").
		Where("status = ? AND created_at >= ? AND created_at < ?", models.ProfileActive, start, end).
		Scan(&s.Views).Error; err != nil {
		return nil, fmt.Errorf("sum views: %w", err)
	}

	if listOpen {
		if err := db.Where("status = ? AND created_at >= ? AND created_at < ?", models.ReportNew, start, end).
			Order("created_at").Find(&s.Open).Error; err != nil {
			return nil, fmt.Errorf("fetch reports: %w", err)
		}
	}
	return s, nil
}

// Write prints the summary in the plain format the operators grep.
func Write(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "Report for %s (UTC):\n", s.Start.Format("2006-01"))
	fmt.Fprintf(w, "  profiles active=%d draft=%d deleted=%d views=%d\n",
		s.Profiles[models.ProfileActive], s.Profiles[models.ProfileDraft], s.Profiles[models.ProfileDeleted], s.Views)
	fmt.Fprintf(w, "  photos active=%d deleted=%d\n", s.Photos[models.PhotoActive], s.Photos[models.PhotoDeleted])
	fmt.Fprintf(w, "  comments approved=%d in_review=%d removed=%d\n",
		s.Comments[models.CommentApproved], s.Comments[models.CommentInReview], s.Comments[models.CommentRemoved])
	fmt.Fprintf(w, "  reports new=%d reviewed=%d\n", s.Reports[models.ReportNew], s.Reports[models.ReportReviewed])
	for _, r := range s.Open {
		profile := "-"
		if r.ProfileID != nil {
			profile = r.ProfileID.String()
		}
		fmt.Fprintf(w, "%s|%s|%s|%q\n", r.ID, r.CreatedAt.Format(time.RFC3339), profile, r.Text)
	}
}
