package e2e

import (
	"github.com/cucumber/godog"

	"crowdfund/e2e/steps/accounts"
	"crowdfund/e2e/steps/common"
	"crowdfund/e2e/steps/marketplace"
	"crowdfund/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Health and generic response assertions
	common.RegisterSteps(ctx, tc)

	// Account registration, verification and gatekeeper checks
	accounts.RegisterSteps(ctx, tc)

	// Projects, investments and withdrawals
	marketplace.RegisterSteps(ctx, tc)

	ratelimit.RegisterSteps(ctx, tc)
}
