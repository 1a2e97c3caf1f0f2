package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	tests "go.temporal.io/sdk/testsuite"
)

type TitleWorkflowTestSuite struct {
	suite.Suite
	testSuite *tests.WorkflowTestSuite
	env       *tests.TestWorkflowEnvironment
}

func (s *TitleWorkflowTestSuite) SetupTest() {
	s.testSuite = &tests.WorkflowTestSuite{}
	s.env = s.testSuite.NewTestWorkflowEnvironment()
	s.env.RegisterWorkflow(TitleWorkflow)
	s.env.RegisterActivityWithOptions(func(ctx context.Context, input TitleInput) (TitleResult, error) {
		return TitleResult{Status: "persisted", Title: "A Title"}, nil
	}, activity.RegisterOptions{Name: "GenerateTitle"})
}

func (s *TitleWorkflowTestSuite) TearDownTest() {
	s.env.AssertExpectations(s.T())
}

func (s *TitleWorkflowTestSuite) TestTitleWorkflow_Persisted() {
	input := TitleInput{SessionID: "s1", Content: "hello", UserID: "user-1"}

	s.env.OnActivity("GenerateTitle", mock.Anything, input).
		Return(TitleResult{Status: "persisted", Title: "Greetings"}, nil).Once()

	s.env.ExecuteWorkflow(TitleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())

	var result TitleResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal("persisted", result.Status)
	s.Equal("Greetings", result.Title)
}

func (s *TitleWorkflowTestSuite) TestTitleWorkflow_SkipIsSuccess() {
	input := TitleInput{SessionID: "s2", Content: "hello", UserID: "user-1"}

	s.env.OnActivity("GenerateTitle", mock.Anything, input).
		Return(TitleResult{Status: "skipped", Reason: "already_titled"}, nil).Once()

	s.env.ExecuteWorkflow(TitleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *TitleWorkflowTestSuite) TestTitleWorkflow_RetriesOnce() {
	input := TitleInput{SessionID: "s3", Content: "hello", UserID: "user-1"}
	activityErr := errors.New("model offline")

	s.env.OnActivity("GenerateTitle", mock.Anything, input).
		Return(TitleResult{}, activityErr).Once()
	s.env.OnActivity("GenerateTitle", mock.Anything, input).
		Return(TitleResult{Status: "persisted", Title: "Recovered"}, nil).Once()

	s.env.ExecuteWorkflow(TitleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())

	var result TitleResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal("Recovered", result.Title)
}

func (s *TitleWorkflowTestSuite) TestTitleWorkflow_FailureAfterRetry() {
	input := TitleInput{SessionID: "s4", Content: "hello", UserID: "user-1"}

	s.env.OnActivity("GenerateTitle", mock.Anything, input).
		Return(TitleResult{}, errors.New("model offline")).Twice()

	s.env.ExecuteWorkflow(TitleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestTitleWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(TitleWorkflowTestSuite))
}
