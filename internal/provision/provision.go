// Package provision applies organization/user/membership groups to the
// store. Provisioning only ever creates: an existing membership keeps its
// role, and running the same groups twice changes nothing the second time.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aliuyar1234/taskhub/internal/audit"
	"github.com/aliuyar1234/taskhub/internal/auth"
	"github.com/aliuyar1234/taskhub/internal/metrics"
	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/aliuyar1234/taskhub/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store is the persistence provisioning needs
type Store interface {
	FindOrgByName(ctx context.Context, name string) (*types.Organization, error)
	CreateOrg(ctx context.Context, name string) (*types.Organization, error)
	FindUserByEmail(ctx context.Context, email string) (*types.User, error)
	CreateUser(ctx context.Context, email, fullName, passwordHash string) (*types.User, error)
	FindMembership(ctx context.Context, userID, orgID uuid.UUID) (*types.Membership, error)
	CreateMembership(ctx context.Context, userID, orgID uuid.UUID, role rbac.Role) (*types.Membership, error)
}

// UserResult is the outcome for one user entry of a group
type UserResult struct {
	Organization      string
	Email             string
	Role              rbac.Role
	UserCreated       bool
	MembershipCreated bool
	// ExistingRole is set when the membership already existed; it is left
	// untouched even if it differs from Role
	ExistingRole rbac.Role
	Err          error
}

// Report summarizes one provisioning run
type Report struct {
	Results            []UserResult
	OrgsCreated        int
	UsersCreated       int
	MembershipsCreated int
	Failed             int
	Duration           time.Duration
}

// HasFailures reports whether any user entry failed
func (r *Report) HasFailures() bool {
	return r.Failed > 0
}

// Provisioner applies groups to the store
type Provisioner struct {
	store           Store
	hasher          auth.PasswordHasher
	auditor         audit.Sink
	metrics         *metrics.Metrics
	defaultPassword string
}

func NewProvisioner(s Store, hasher auth.PasswordHasher, auditor audit.Sink, m *metrics.Metrics, defaultPassword string) *Provisioner {
	return &Provisioner{store: s, hasher: hasher, auditor: auditor, metrics: m, defaultPassword: defaultPassword}
}

// Run provisions every group in order. A failing user entry, or a group
// whose organization cannot be resolved, is recorded in the report and the
// run continues. Run only returns early when ctx is done.
func (p *Provisioner) Run(ctx context.Context, groups []Group) *Report {
	start := time.Now()
	report := &Report{}

	log.Info().Int("groups", len(groups)).Msg("Starting provisioning")

	for _, g := range groups {
		if ctx.Err() != nil {
			break
		}
		p.runGroup(ctx, g, report)
	}

	report.Duration = time.Since(start)

	p.metrics.Provisioned("organization", report.OrgsCreated)
	p.metrics.Provisioned("user", report.UsersCreated)
	p.metrics.Provisioned("membership", report.MembershipsCreated)

	audit.Record(ctx, p.auditor, p.metrics, audit.Event{
		Action:     audit.EventProvisioningCompleted,
		EntityType: audit.EntityOrganization,
		Meta: map[string]any{
			"groups":             len(groups),
			"orgsCreated":        report.OrgsCreated,
			"usersCreated":       report.UsersCreated,
			"membershipsCreated": report.MembershipsCreated,
			"failed":             report.Failed,
		},
	})

	log.Info().
		Int("orgs_created", report.OrgsCreated).
		Int("users_created", report.UsersCreated).
		Int("memberships_created", report.MembershipsCreated).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Provisioning completed")

	return report
}

func (p *Provisioner) runGroup(ctx context.Context, g Group, report *Report) {
	name := strings.TrimSpace(g.Organization)

	var org *types.Organization
	var created bool
	err := validation.Struct(Group{Organization: name})
	if err == nil {
		org, created, err = p.ensureOrg(ctx, name)
	}
	if err != nil {
		log.Error().Err(err).Str("organization", name).Msg("Failed to provision organization")
		for _, u := range g.Users {
			report.add(UserResult{Organization: name, Email: u.Email, Err: err})
		}
		return
	}
	if created {
		report.OrgsCreated++
		log.Info().Str("organization", name).Str("org_id", org.ID.String()).Msg("Created organization")
	}

	for _, u := range g.Users {
		res := p.provisionUser(ctx, org, u)
		if res.Err != nil {
			log.Error().
				Err(res.Err).
				Str("organization", name).
				Str("email", res.Email).
				Msg("Failed to provision user")
		}
		report.add(res)
	}
}

func (r *Report) add(res UserResult) {
	r.Results = append(r.Results, res)
	if res.Err != nil {
		r.Failed++
		return
	}
	if res.UserCreated {
		r.UsersCreated++
	}
	if res.MembershipCreated {
		r.MembershipsCreated++
	}
}

func (p *Provisioner) ensureOrg(ctx context.Context, name string) (*types.Organization, bool, error) {
	org, err := p.store.FindOrgByName(ctx, name)
	if err == nil {
		return org, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	org, err = p.store.CreateOrg(ctx, name)
	if err == nil {
		return org, true, nil
	}
	if !errors.Is(err, store.ErrDuplicateKey) {
		return nil, false, err
	}

	// created concurrently
	org, err = p.store.FindOrgByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return org, false, nil
}

func (p *Provisioner) provisionUser(ctx context.Context, org *types.Organization, seed UserSeed) UserResult {
	seed.Email = strings.TrimSpace(seed.Email)
	seed.FullName = strings.TrimSpace(seed.FullName)
	res := UserResult{Organization: org.Name, Email: seed.Email}

	if err := validation.Struct(seed); err != nil {
		res.Err = err
		return res
	}

	role, err := rbac.ParseRole(seed.Role)
	if err != nil {
		res.Err = fmt.Errorf("invalid role %q for %s", seed.Role, res.Email)
		return res
	}
	res.Role = role

	user, created, err := p.ensureUser(ctx, seed.Email, seed.FullName, seed.Password)
	if err != nil {
		res.Err = err
		return res
	}
	res.UserCreated = created

	existing, err := p.store.FindMembership(ctx, user.ID, org.ID)
	if err == nil {
		res.ExistingRole = existing.Role
		return res
	}
	if !errors.Is(err, store.ErrNotFound) {
		res.Err = fmt.Errorf("failed to look up membership: %w", err)
		return res
	}

	if _, err := p.store.CreateMembership(ctx, user.ID, org.ID, role); err != nil {
		if !errors.Is(err, store.ErrDuplicateKey) {
			res.Err = err
			return res
		}
		// a concurrent writer created it; its role wins
		return res
	}
	res.MembershipCreated = true
	return res
}

func (p *Provisioner) ensureUser(ctx context.Context, email, fullName, password string) (*types.User, bool, error) {
	user, err := p.store.FindUserByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	if password == "" {
		password = p.defaultPassword
	}
	hash, err := p.hasher.Hash(password)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err = p.store.CreateUser(ctx, email, fullName, hash)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, store.ErrDuplicateKey) {
		return nil, false, err
	}

	user, err = p.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reload user: %w", err)
	}
	return user, false, nil
}
