package advisory

import (
	"bytes"
	"context"
	"strings"
	"text/template"
	"time"

	"arena-ace/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	NoFollowUpNeeded = "No follow-up needed yet."
	Apology          = "Sorry, a follow-up message could not be generated right now. Please review this request manually."

	followUpAfter = 24 * time.Hour
)

var promptTemplate = template.Must(template.New("followup").Parse(
	`You are a support agent for Arena Ace, a gaming tournament platform.
A user submitted a UPI deposit that is still waiting for verification.

Request ID: {{.RequestID}}
User: {{.User}}
Amount: Rs {{.Amount}}
UTR: {{.UTR}}
Hours pending: {{.HoursPending}}

Write a short, polite message to the user asking them to double-check the UTR
and, if needed, share a payment screenshot so the deposit can be verified.`))

// TextGenerator turns a prompt into free text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Request struct {
	RequestID   string
	UserID      string
	UserName    string
	Amount      decimal.Decimal
	UTR         string
	SubmittedAt time.Time
}

type promptData struct {
	RequestID    string
	User         string
	Amount       string
	UTR          string
	HoursPending int
}

type Service struct {
	gen TextGenerator
	now func() time.Time
}

func NewService(gen TextGenerator) *Service {
	return &Service{gen: gen, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// FollowUpMessage never fails. Requests pending for 24 hours or less get the fixed
// no-follow-up sentence; generator errors or empty output get the apology.
func (s *Service) FollowUpMessage(ctx context.Context, req Request) string {
	elapsed := s.now().Sub(req.SubmittedAt)
	if elapsed <= followUpAfter {
		return NoFollowUpNeeded
	}
	if s.gen == nil {
		return Apology
	}

	user := req.UserName
	if user == "" {
		user = req.UserID
	}
	var prompt bytes.Buffer
	if err := promptTemplate.Execute(&prompt, promptData{
		RequestID:    req.RequestID,
		User:         user,
		Amount:       req.Amount.StringFixed(2),
		UTR:          req.UTR,
		HoursPending: int(elapsed.Hours()),
	}); err != nil {
		logger.Log.Error("follow-up prompt render failed", zap.Error(err))
		return Apology
	}

	text, err := s.gen.Generate(ctx, prompt.String())
	if err != nil {
		logger.Log.Warn("follow-up generation failed",
			zap.String("requestID", req.RequestID),
			zap.Error(err))
		return Apology
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Apology
	}
	return text
}
