package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/glimmerchat/engine/internal/titles"
)

type Service struct {
	client    client.Client
	taskQueue string
}

func NewService(client client.Client, taskQueue string) *Service {
	if taskQueue == "" {
		taskQueue = "glimmer-titles"
	}
	return &Service{client: client, taskQueue: taskQueue}
}

// TriggerTitle starts a title workflow for the session. A racing duplicate
// start is a no-op: the second run is absorbed by the eligibility check, and
// an already-started workflow id is not an error.
func (s *Service) TriggerTitle(ctx context.Context, sessionID string, content string, userID string) error {
	options := client.StartWorkflowOptions{
		ID:        workflowID(sessionID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, TitleWorkflow, TitleInput{
		SessionID: sessionID,
		Content:   content,
		UserID:    userID,
	})
	var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &alreadyStarted) {
		return nil
	}
	return err
}

func workflowID(sessionID string) string {
	return fmt.Sprintf("title:%s", sessionID)
}

// DirectTrigger runs title generation in-process. It backs deployments with
// no Temporal server configured.
type DirectTrigger struct {
	titles *titles.Service
}

func NewDirectTrigger(svc *titles.Service) *DirectTrigger {
	return &DirectTrigger{titles: svc}
}

func (d *DirectTrigger) TriggerTitle(ctx context.Context, sessionID string, content string, userID string) error {
	result := d.titles.Generate(ctx, titles.GenerateInput{
		SessionID: sessionID,
		UserID:    userID,
		Content:   content,
	})
	if result.Status == titles.StatusFailed {
		return fmt.Errorf("title generation failed during %s", result.Op)
	}
	return nil
}
