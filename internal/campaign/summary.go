package campaign

import "insta-outreach/internal/core/domain"

// Summarize reduces per-user records into the campaign summary. It is pure:
// the same input always yields the same summary.
func Summarize(results []domain.ResultRecord, totalUsers int) domain.CampaignSummary {
	s := domain.CampaignSummary{
		TotalUsers:   totalUsers,
		PerUserLines: make([]string, 0, len(results)),
	}
	for _, r := range results {
		switch r.Status {
		case domain.StatusSuccess:
			s.SuccessCount++
		case domain.StatusFail:
			s.FailCount++
		}
		s.PerUserLines = append(s.PerUserLines, r.Line())
	}

	if totalUsers > 0 {
		s.SuccessRate = float64(s.SuccessCount) / float64(totalUsers)
		if s.SuccessRate > 1 {
			s.SuccessRate = 1
		}
	}

	s.OverallStatus = domain.OverallNeedsReview
	if s.SuccessCount > 0 {
		s.OverallStatus = domain.OverallSuccess
	}
	return s
}
