package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	LastStatus() int
	LastBody() []byte
	ResponseField(path string) (any, error)
}

// RegisterSteps registers health checks and generic response assertions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the service is healthy$`, steps.serviceIsHealthy)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.fieldShouldBeBool)
	ctx.Step(`^the response field "([^"]*)" should contain "([^"]*)"$`, steps.fieldShouldContain)
	ctx.Step(`^the response field "([^"]*)" should not contain "([^"]*)"$`, steps.fieldShouldNotContain)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsHealthy(ctx context.Context) error {
	if err := s.tc.GET("/health"); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("health check returned %d: %s", s.tc.LastStatus(), s.tc.LastBody())
	}
	return nil
}

func (s *commonSteps) statusShouldBe(ctx context.Context, want int) error {
	if got := s.tc.LastStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.LastBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(ctx context.Context, field, want string) error {
	v, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s to be %q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeBool(ctx context.Context, field, want string) error {
	v, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	got, ok := v.(bool)
	if !ok {
		return fmt.Errorf("%s is not a boolean: %v", field, v)
	}
	if strconv.FormatBool(got) != want {
		return fmt.Errorf("expected %s to be %s, got %t", field, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldContain(ctx context.Context, field, want string) error {
	found, err := s.listContains(field, want)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("expected %s to contain %q: %s", field, want, s.tc.LastBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldNotContain(ctx context.Context, field, want string) error {
	found, err := s.listContains(field, want)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("expected %s not to contain %q: %s", field, want, s.tc.LastBody())
	}
	return nil
}

// listContains treats an absent field as an empty list, since the API omits
// empty requirement lists.
func (s *commonSteps) listContains(field, want string) (bool, error) {
	v, err := s.tc.ResponseField(field)
	if err != nil {
		return false, nil
	}
	items, ok := v.([]any)
	if !ok {
		return false, fmt.Errorf("%s is not a list: %v", field, v)
	}
	for _, item := range items {
		if fmt.Sprint(item) == want {
			return true, nil
		}
	}
	return false, nil
}
