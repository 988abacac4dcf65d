package marketplace

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	ActAs(name string)
	GET(path string) error
	POST(path string, body any) error
	ResponseField(path string) (any, error)
	Remember(key, value string)
	Recall(key string) (string, error)
	LastStatus() int
	LastBody() []byte
}

const projectKey = "project"

// RegisterSteps registers project, investment and withdrawal step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &marketplaceSteps{tc: tc}

	ctx.Step(`^"([^"]*)" creates an? (equity|royalty) project "([^"]*)" with goal "([^"]*)"$`, steps.createProject)
	ctx.Step(`^"([^"]*)" publishes the project$`, steps.publishProject)
	ctx.Step(`^"([^"]*)" invests "([^"]*)" in the project$`, steps.invest)
	ctx.Step(`^"([^"]*)" withdraws "([^"]*)" from the project$`, steps.withdraw)
	ctx.Step(`^"([^"]*)" views the project$`, steps.viewProject)
}

type marketplaceSteps struct {
	tc TestContext
}

func (s *marketplaceSteps) createProject(ctx context.Context, name, model, title, goal string) error {
	s.tc.ActAs(name)
	err := s.tc.POST("/projects", map[string]string{
		"title":         title,
		"summary":       "A project created by the end-to-end suite.",
		"funding_model": model,
		"goal":          goal,
	})
	if err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return fmt.Errorf("create project: expected 201, got %d: %s", s.tc.LastStatus(), s.tc.LastBody())
	}
	projectID, err := s.tc.ResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Remember(projectKey, fmt.Sprint(projectID))
	return nil
}

func (s *marketplaceSteps) publishProject(ctx context.Context, name string) error {
	return s.postToProject(name, "/publish", nil)
}

func (s *marketplaceSteps) invest(ctx context.Context, name, amount string) error {
	return s.postToProject(name, "/investments", map[string]string{"amount": amount})
}

func (s *marketplaceSteps) withdraw(ctx context.Context, name, amount string) error {
	return s.postToProject(name, "/withdrawals", map[string]string{"amount": amount})
}

func (s *marketplaceSteps) viewProject(ctx context.Context, name string) error {
	projectID, err := s.tc.Recall(projectKey)
	if err != nil {
		return err
	}
	s.tc.ActAs(name)
	return s.tc.GET("/projects/" + projectID)
}

func (s *marketplaceSteps) postToProject(name, suffix string, body any) error {
	projectID, err := s.tc.Recall(projectKey)
	if err != nil {
		return err
	}
	s.tc.ActAs(name)
	if body == nil {
		body = map[string]any{}
	}
	return s.tc.POST("/projects/"+projectID+suffix, body)
}
