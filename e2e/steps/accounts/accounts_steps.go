package accounts

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	ActAs(name string)
	UserID(name string) (string, error)
	POST(path string, body any) error
	AdminPOST(path string, body any) error
	LastStatus() int
	LastBody() []byte
}

// RegisterSteps registers account and verification step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &accountSteps{tc: tc}

	ctx.Step(`^"([^"]*)" registers as an? (investor|owner) in "([^"]*)"$`, steps.register)
	ctx.Step(`^an administrator records KYC "([^"]*)" for "([^"]*)"$`, steps.recordKYC)
	ctx.Step(`^an administrator sets the risk of "([^"]*)" to (\d+) "([^"]*)"$`, steps.setRisk)
	ctx.Step(`^"([^"]*)" uploads a "([^"]*)" document$`, steps.uploadDocument)
	ctx.Step(`^"([^"]*)" asks the gatekeeper whether they may "([^"]*)"$`, steps.askGatekeeper)
}

type accountSteps struct {
	tc TestContext
}

func (s *accountSteps) register(ctx context.Context, name, role, country string) error {
	s.tc.ActAs(name)
	userID, err := s.tc.UserID(name)
	if err != nil {
		return err
	}
	err = s.tc.POST("/accounts", map[string]string{
		"email":   fmt.Sprintf("%s+%s@example.test", name, userID[:8]),
		"role":    role,
		"country": country,
	})
	if err != nil {
		return err
	}
	return s.expect(201, "register "+name)
}

func (s *accountSteps) recordKYC(ctx context.Context, status, name string) error {
	userID, err := s.tc.UserID(name)
	if err != nil {
		return err
	}
	if err := s.tc.AdminPOST("/admin/accounts/"+userID+"/kyc", map[string]string{"status": status}); err != nil {
		return err
	}
	return s.expect(200, "record kyc for "+name)
}

func (s *accountSteps) setRisk(ctx context.Context, name string, score int, tier string) error {
	userID, err := s.tc.UserID(name)
	if err != nil {
		return err
	}
	err = s.tc.AdminPOST("/admin/accounts/"+userID+"/risk", map[string]any{
		"risk_score": score,
		"risk_tier":  tier,
	})
	if err != nil {
		return err
	}
	return s.expect(200, "set risk for "+name)
}

func (s *accountSteps) uploadDocument(ctx context.Context, name, kind string) error {
	s.tc.ActAs(name)
	if err := s.tc.POST("/accounts/me/documents", map[string]string{"kind": kind}); err != nil {
		return err
	}
	return s.expect(200, "upload "+kind)
}

func (s *accountSteps) askGatekeeper(ctx context.Context, name, action string) error {
	s.tc.ActAs(name)
	return s.tc.POST("/compliance/gatekeeper", map[string]string{"action": action})
}

func (s *accountSteps) expect(status int, what string) error {
	if s.tc.LastStatus() != status {
		return fmt.Errorf("%s: expected %d, got %d: %s", what, status, s.tc.LastStatus(), s.tc.LastBody())
	}
	return nil
}
