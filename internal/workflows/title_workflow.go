package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

type TitleInput struct {
	SessionID string
	Content   string
	UserID    string
}

type TitleResult struct {
	Status string `json:"status"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// TitleWorkflow runs a single generation activity with one retry. Skips are
// successful completions; only hard failures are retried.
func TitleWorkflow(ctx workflow.Context, input TitleInput) (TitleResult, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)
	logger := workflow.GetLogger(ctx)

	result := TitleResult{}
	if err := workflow.ExecuteActivity(ctx, "GenerateTitle", input).Get(ctx, &result); err != nil {
		logger.Error("title activity failed", "session_id", input.SessionID, "error", err)
		return TitleResult{}, err
	}
	if result.Reason != "" {
		logger.Info("title generation skipped", "session_id", input.SessionID, "reason", result.Reason)
	}
	return result, nil
}
