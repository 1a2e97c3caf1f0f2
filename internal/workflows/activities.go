package workflows

import (
	"context"
	"fmt"

	"github.com/glimmerchat/engine/internal/titles"
)

// TitleActivities hosts the worker-side title generation activity.
type TitleActivities struct {
	Titles *titles.Service
}

func NewTitleActivities(svc *titles.Service) *TitleActivities {
	return &TitleActivities{Titles: svc}
}

// GenerateTitle wraps the title service for workflow execution. Skipped and
// persisted outcomes are activity successes; generation and persist failures
// are errors so the retry policy applies.
func (a *TitleActivities) GenerateTitle(ctx context.Context, input TitleInput) (TitleResult, error) {
	result := a.Titles.Generate(ctx, titles.GenerateInput{
		SessionID: input.SessionID,
		UserID:    input.UserID,
		Content:   input.Content,
	})
	if result.Status == titles.StatusFailed {
		return TitleResult{}, fmt.Errorf("title %s failed for session %s", result.Op, input.SessionID)
	}
	return TitleResult{
		Status: result.Status,
		Title:  result.Title,
		Reason: result.Reason,
	}, nil
}
