// Package identity maps inbound channel identifiers (email, phone,
// secondary channel ids) to canonical Customer records. The resolver is the
// only component that creates customers; everything downstream works with
// the canonical id it returns.
//
// Concurrency: Resolve is safe under concurrent calls for the same new
// identifier. The identifiers table carries a (type, value) unique index,
// so when two inbound events race, exactly one insert commits; the loser
// detects the violation and re-reads the winner's customer. Races are never
// surfaced to the caller as errors.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/techcorp/taskflow-support/internal/domain"
	"github.com/techcorp/taskflow-support/internal/repo"
)

// Resolver-level errors.
var (
	// ErrEmptyIdentifier is returned when the identifier value is blank.
	ErrEmptyIdentifier = errors.New("identifier value is empty")

	// ErrUnknownIdentifierType is returned for types outside
	// email/phone/channel.
	ErrUnknownIdentifierType = errors.New("unknown identifier type")
)

// Contact is a related identifier supplied alongside the primary one, e.g.
// a web form that carries both an email and a phone number.
type Contact struct {
	Type  string
	Value string
}

// Resolver resolves identifiers to canonical customers.
type Resolver struct {
	DB *gorm.DB
}

// Resolve maps (idType, value) to a Customer, creating customer and
// identifier atomically when both are new. When the identifier is new but a
// related Contact already resolves to a customer, the new identifier is
// linked to that customer instead of minting a duplicate identity.
// LastContactAt is stamped on every call.
func (r *Resolver) Resolve(ctx context.Context, idType, value, displayName, plan string, related ...Contact) (*domain.Customer, error) {
	tr := otel.Tracer("identity/Resolver")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("identifier.type", idType)),
	)
	defer span.End()

	idType, value, err := normalize(idType, value)
	if err != nil {
		return nil, err
	}
	displayName = normalizeName(displayName)
	plan = normalizePlan(plan)

	// Fast path: known identifier.
	if c, err := repo.FindCustomerByIdentifier(ctx, r.DB, idType, value); err == nil {
		return r.touch(ctx, c, idType, value)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	// New identifier, but a related contact may already resolve.
	for _, rc := range related {
		rcType, rcValue, err := normalize(rc.Type, rc.Value)
		if err != nil {
			continue
		}
		c, err := repo.FindCustomerByIdentifier(ctx, r.DB, rcType, rcValue)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if _, err := repo.CreateIdentifier(ctx, r.DB, idType, value, c.ID); err != nil {
			if repo.IsDuplicate(err) {
				// lost a race for this identifier; whoever won decides
				return r.reresolve(ctx, idType, value)
			}
			return nil, err
		}
		return r.touch(ctx, c, idType, value)
	}

	// Brand new identity: customer + identifier in one transaction so a
	// failed identifier insert leaves no orphan customer behind.
	var created *domain.Customer
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var email, phone *string
		switch idType {
		case domain.IdentifierEmail:
			email = &value
		case domain.IdentifierPhone:
			phone = &value
		}
		c, err := repo.CreateCustomer(ctx, tx, displayName, plan, email, phone)
		if err != nil {
			return err
		}
		if _, err := repo.CreateIdentifier(ctx, tx, idType, value, c.ID); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		if repo.IsDuplicate(err) {
			// first committed wins, second reuses
			return r.reresolve(ctx, idType, value)
		}
		return nil, err
	}
	return r.touch(ctx, created, idType, value)
}

// reresolve re-reads the winner after a lost uniqueness race.
func (r *Resolver) reresolve(ctx context.Context, idType, value string) (*domain.Customer, error) {
	c, err := repo.FindCustomerByIdentifier(ctx, r.DB, idType, value)
	if err != nil {
		return nil, err
	}
	return r.touch(ctx, c, idType, value)
}

// touch stamps last contact and backfills the denormalized contact columns.
func (r *Resolver) touch(ctx context.Context, c *domain.Customer, idType, value string) (*domain.Customer, error) {
	now := time.Now().UTC()
	if err := repo.TouchCustomerContact(ctx, r.DB, c.ID, now); err != nil {
		return nil, err
	}
	c.LastContactAt = &now

	var email, phone *string
	switch idType {
	case domain.IdentifierEmail:
		email = &value
	case domain.IdentifierPhone:
		phone = &value
	}
	if err := repo.FillCustomerContact(ctx, r.DB, c.ID, email, phone); err != nil {
		return nil, err
	}
	if c.Email == nil && email != nil {
		c.Email = email
	}
	if c.Phone == nil && phone != nil {
		c.Phone = phone
	}
	return c, nil
}

func normalize(idType, value string) (string, string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", ErrEmptyIdentifier
	}
	switch idType {
	case domain.IdentifierEmail:
		value = strings.ToLower(value)
	case domain.IdentifierPhone, domain.IdentifierChannel:
	default:
		return "", "", ErrUnknownIdentifierType
	}
	return idType, value, nil
}

var nameCaser = cases.Title(language.English)

// normalizeName trims the display name and re-cases names shouted in all
// caps, which web forms produce constantly. Mixed-case names pass through
// untouched so spellings like "McDonald" survive.
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name != "" && name == strings.ToUpper(name) && name != strings.ToLower(name) {
		return nameCaser.String(strings.ToLower(name))
	}
	return name
}

func normalizePlan(plan string) string {
	switch plan {
	case domain.PlanPro, domain.PlanEnterprise:
		return plan
	}
	return domain.PlanFree
}
