// Package domain holds identifier primitives shared across modules. Each ID is a
// distinct type over uuid.UUID so a ProjectID can never be passed where a UserID
// is expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "crowdfund/pkg/domain-errors"
)

type (
	UserID       uuid.UUID
	ProjectID    uuid.UUID
	InvestmentID uuid.UUID
	PayoutID     uuid.UUID
	ReviewID     uuid.UUID
)

// maxIDLength bounds input before handing it to uuid.Parse.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

func ParseProjectID(s string) (ProjectID, error) {
	u, err := parseUUID("project id", s)
	return ProjectID(u), err
}

func ParseInvestmentID(s string) (InvestmentID, error) {
	u, err := parseUUID("investment id", s)
	return InvestmentID(u), err
}

func ParsePayoutID(s string) (PayoutID, error) {
	u, err := parseUUID("payout id", s)
	return PayoutID(u), err
}

func ParseReviewID(s string) (ReviewID, error) {
	u, err := parseUUID("review id", s)
	return ReviewID(u), err
}

func NewUserID() UserID             { return UserID(uuid.New()) }
func NewProjectID() ProjectID       { return ProjectID(uuid.New()) }
func NewInvestmentID() InvestmentID { return InvestmentID(uuid.New()) }
func NewPayoutID() PayoutID         { return PayoutID(uuid.New()) }
func NewReviewID() ReviewID         { return ReviewID(uuid.New()) }

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id ProjectID) String() string    { return uuid.UUID(id).String() }
func (id InvestmentID) String() string { return uuid.UUID(id).String() }
func (id PayoutID) String() string     { return uuid.UUID(id).String() }
func (id ReviewID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProjectID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ReviewID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// MarshalText keeps IDs readable in JSON bodies and log attributes.
func (id UserID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id ProjectID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id InvestmentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id PayoutID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id ReviewID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ProjectID) UnmarshalText(b []byte) error {
	parsed, err := ParseProjectID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ReviewID) UnmarshalText(b []byte) error {
	parsed, err := ParseReviewID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *InvestmentID) UnmarshalText(b []byte) error {
	parsed, err := ParseInvestmentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PayoutID) UnmarshalText(b []byte) error {
	parsed, err := ParsePayoutID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
