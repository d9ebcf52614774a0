package domain

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFail    Status = "FAIL"
)

type OverallStatus string

const (
	OverallSuccess     OverallStatus = "SUCCESS"
	OverallNeedsReview OverallStatus = "NEEDS_REVIEW"
)

// ResultRecord is the outcome of one per-user pipeline. Exactly one is
// produced per discovered user.
type ResultRecord struct {
	Username string `json:"username"`
	Status   Status `json:"status"`
	Detail   string `json:"detail"` // message excerpt or failure reason
}

func Success(username, excerpt string) ResultRecord {
	return ResultRecord{Username: username, Status: StatusSuccess, Detail: excerpt}
}

func Failure(username, reason string) ResultRecord {
	return ResultRecord{Username: username, Status: StatusFail, Detail: reason}
}

// Line renders the record the way it appears in the campaign report.
func (r ResultRecord) Line() string {
	return fmt.Sprintf("%s: @%s: %s", r.Status, r.Username, r.Detail)
}

// CampaignSummary is computed once at campaign end.
type CampaignSummary struct {
	TotalUsers    int           `json:"total_users"`
	SuccessCount  int           `json:"success_count"`
	FailCount     int           `json:"fail_count"`
	SuccessRate   float64       `json:"success_rate"`
	PerUserLines  []string      `json:"per_user_lines"`
	OverallStatus OverallStatus `json:"overall_status"`
}

// Render produces the human readable campaign report.
func (s CampaignSummary) Render() string {
	var b strings.Builder
	b.WriteString("Instagram Campaign Complete!\n\n")
	b.WriteString("Results Summary:\n")
	fmt.Fprintf(&b, "• Total Users Discovered: %d\n", s.TotalUsers)
	fmt.Fprintf(&b, "• Successful DMs: %d\n", s.SuccessCount)
	fmt.Fprintf(&b, "• Failed DM Attempts: %d\n", s.FailCount)
	fmt.Fprintf(&b, "• Success Rate: %.1f%%\n", s.SuccessRate*100)
	if len(s.PerUserLines) > 0 {
		b.WriteString("\nIndividual Results:\n")
		b.WriteString(strings.Join(s.PerUserLines, "\n"))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nCampaign Status: %s", s.OverallStatus)
	return b.String()
}
