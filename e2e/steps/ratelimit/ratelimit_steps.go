package ratelimit

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	ActAs(name string)
	POST(path string, body any) error
	Recall(key string) (string, error)
	LastStatus() int
	LastHeader(name string) string
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^"([^"]*)" invests "([^"]*)" in the project (\d+) times$`, steps.investRepeatedly)
	ctx.Step(`^at least one attempt should be rate limited$`, steps.someAttemptLimited)
	ctx.Step(`^the limited response should carry a Retry-After header$`, steps.limitedHasRetryAfter)
}

type ratelimitSteps struct {
	tc TestContext

	statuses   []int
	retryAfter string
}

func (s *ratelimitSteps) investRepeatedly(ctx context.Context, name, amount string, times int) error {
	projectID, err := s.tc.Recall("project")
	if err != nil {
		return err
	}
	s.tc.ActAs(name)
	s.statuses = s.statuses[:0]
	s.retryAfter = ""
	for range times {
		if err := s.tc.POST("/projects/"+projectID+"/investments", map[string]string{"amount": amount}); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.LastStatus())
		if s.tc.LastStatus() == 429 && s.retryAfter == "" {
			s.retryAfter = s.tc.LastHeader("Retry-After")
		}
	}
	return nil
}

func (s *ratelimitSteps) someAttemptLimited(ctx context.Context) error {
	for _, status := range s.statuses {
		if status == 429 {
			return nil
		}
	}
	return fmt.Errorf("no attempt was rate limited: %v", s.statuses)
}

func (s *ratelimitSteps) limitedHasRetryAfter(ctx context.Context) error {
	if s.retryAfter == "" {
		return fmt.Errorf("limited response had no Retry-After header")
	}
	return nil
}
