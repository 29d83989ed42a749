// Package reminders nudges applicants whose vetting application is still pending.
package reminders

import (
	"time"

	"guildhall/internal/models"
)

const (
	day = 24 * time.Hour

	// Applications older than this never get reminders.
	cutoffAge = 30 * day

	firstReminderAge  = 3 * day
	secondReminderAge = 7 * day
	repeatInterval    = 7 * day
)

// Reminder step labels.
const (
	StepUploadDocuments = "Upload verification documents"
	StepAcceptTerms     = "Accept Terms of Service"
	StepAcceptPrivacy   = "Accept Privacy Policy"
	StepGeneric         = "Complete and submit your application"
)

// ShouldSendReminder decides whether a pending application is due a reminder.
func ShouldSendReminder(createdAt time.Time, lastReminderSent *time.Time, reminderCount int, now time.Time) bool {
	age := now.Sub(createdAt)
	if age > cutoffAge {
		return false
	}
	switch {
	case reminderCount <= 0:
		return age >= firstReminderAge
	case reminderCount == 1:
		return age >= secondReminderAge
	default:
		return lastReminderSent != nil && now.Sub(*lastReminderSent) >= repeatInterval
	}
}

// IncompleteSteps lists what the applicant still has to do, in display order.
func IncompleteSteps(app *models.Application) []string {
	var steps []string
	if app.DocumentsUntouched() {
		steps = append(steps, StepUploadDocuments)
	}
	if !app.TosAccepted {
		steps = append(steps, StepAcceptTerms)
	}
	if !app.PrivacyAccepted {
		steps = append(steps, StepAcceptPrivacy)
	}
	if len(steps) == 0 {
		steps = []string{StepGeneric}
	}
	return steps
}
