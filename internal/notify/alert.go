// Package notify delivers operational alerts. Crisis alerts carry only
// anonymized metadata so the on-call inbox never holds message content.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/globalmind/support-platform/pkg/logging"
)

// CrisisAlerter emails the crisis-response contact when a request crosses
// the crisis threshold.
type CrisisAlerter struct {
	sender  EmailSender
	toEmail string
	logger  *logging.Logger
}

// NewCrisisAlerter creates an alerter. With no sender or recipient configured
// alerts are logged and dropped.
func NewCrisisAlerter(sender EmailSender, toEmail string, logger *logging.Logger) *CrisisAlerter {
	if logger == nil {
		logger = logging.Default()
	}
	return &CrisisAlerter{sender: sender, toEmail: toEmail, logger: logger}
}

// CrisisAlert is the metadata sent to the on-call contact.
type CrisisAlert struct {
	AnonID   string
	Score    float64
	Urgency  string
	Region   string
	Language string
	At       time.Time
}

// Alert sends the crisis notification. Failures are logged but never block
// the user-facing response, so the error is advisory.
func (a *CrisisAlerter) Alert(ctx context.Context, alert CrisisAlert) error {
	if a == nil || a.sender == nil || a.toEmail == "" {
		a.log().Warn("crisis alert dropped, no alert channel configured",
			"anon_id", alert.AnonID, "urgency", alert.Urgency)
		return nil
	}
	if alert.At.IsZero() {
		alert.At = time.Now().UTC()
	}

	body := fmt.Sprintf(
		"A support request crossed the crisis threshold.\n\n"+
			"User: %s\nScore: %.2f\nUrgency: %s\nRegion: %s\nLanguage: %s\nTime: %s\n\n"+
			"The user has been shown crisis resources. Message content is not included.",
		alert.AnonID, alert.Score, alert.Urgency, alert.Region, alert.Language,
		alert.At.Format(time.RFC3339),
	)

	err := a.sender.Send(ctx, EmailMessage{
		To:      a.toEmail,
		Subject: fmt.Sprintf("[GlobalMind] Crisis detected (%s urgency)", alert.Urgency),
		Body:    body,
	})
	if err != nil {
		a.log().Error("crisis alert send failed", "error", err, "anon_id", alert.AnonID)
		return err
	}
	return nil
}

func (a *CrisisAlerter) log() *logging.Logger {
	if a == nil || a.logger == nil {
		return logging.Default()
	}
	return a.logger
}
