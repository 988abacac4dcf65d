//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"crowdfund/internal/accounts/models"
	"crowdfund/internal/accounts/store"
	"crowdfund/internal/compliance"
	id "crowdfund/pkg/domain"
	"crowdfund/pkg/platform/sentinel"
	"crowdfund/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "payouts", "investments", "projects", "accounts"))
}

func (s *PostgresStoreSuite) newAccount(country models.Country) *models.Account {
	a, err := models.NewAccount(id.NewUserID(), uuid.NewString()+"@example.com", compliance.RoleOwner, country,
		time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return a
}

var fallbackCountry = models.Country{Code: "NG", RiskTier: compliance.CountryTier3}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	a := s.newAccount(fallbackCountry)
	s.Require().NoError(a.ApplyRisk(models.RiskUpdate{Score: 42.5, Tier: compliance.RiskMedium, Flags: []string{"pep", "adverse_media"}}, a.CreatedAt))
	s.Require().NoError(s.store.Create(ctx, a))

	found, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.Email, found.Email)
	s.Equal(compliance.FallbackRequired, found.FallbackKYCStatus)
	s.True(found.PayoutBlocked)
	s.Equal([]string{"adverse_media", "pep"}, found.RiskFlags)
	s.Equal(42.5, found.RiskScore)
	s.True(a.CreatedAt.Equal(found.CreatedAt))

	byEmail, err := s.store.FindByEmail(ctx, a.Email)
	s.Require().NoError(err)
	s.Equal(a.ID, byEmail.ID)
}

func (s *PostgresStoreSuite) TestDuplicateEmailConflicts() {
	ctx := context.Background()
	a := s.newAccount(fallbackCountry)
	s.Require().NoError(s.store.Create(ctx, a))

	b := s.newAccount(fallbackCountry)
	b.Email = a.Email
	s.ErrorIs(s.store.Create(ctx, b), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestNotFound() {
	_, err := s.store.FindByID(context.Background(), id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentDocumentUploads verifies FOR UPDATE serialises the two uploads
// so the required to pending transition is never lost.
func (s *PostgresStoreSuite) TestConcurrentDocumentUploads() {
	ctx := context.Background()
	a := s.newAccount(fallbackCountry)
	s.Require().NoError(s.store.Create(ctx, a))

	var wg sync.WaitGroup
	for _, kind := range []models.DocumentKind{models.DocumentBankStatement, models.DocumentProofOfAddress} {
		wg.Add(1)
		go func(k models.DocumentKind) {
			defer wg.Done()
			_, err := s.store.Execute(ctx, a.ID,
				func(acc *models.Account) error { return acc.CanUploadDocument() },
				func(acc *models.Account) { acc.ApplyDocumentUploaded(k, time.Now()) },
			)
			s.NoError(err)
		}(kind)
	}
	wg.Wait()

	found, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.True(found.BankDocumentUploaded)
	s.True(found.ProofOfAddressUploaded)
	s.Equal(compliance.FallbackPending, found.FallbackKYCStatus)
}

func (s *PostgresStoreSuite) TestExecuteValidationRollsBack() {
	ctx := context.Background()
	a := s.newAccount(models.Country{Code: "US", Support: compliance.CountryPaymentSupport{StripeSupported: true, PlaidSupported: true}, RiskTier: compliance.CountryTier1})
	s.Require().NoError(s.store.Create(ctx, a))

	_, err := s.store.Execute(ctx, a.ID,
		func(acc *models.Account) error { return acc.CanUploadDocument() },
		func(acc *models.Account) { acc.ApplyDocumentUploaded(models.DocumentBankStatement, time.Now()) },
	)
	s.Require().Error(err)

	found, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.False(found.BankDocumentUploaded)
}
