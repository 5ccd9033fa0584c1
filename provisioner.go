package auth

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-print"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// Provisioning defaults applied to fields absent from the input
const (
	DefaultProvisionIP = "127.0.0.1"
)

// ProvisionOutcome is the per item outcome of UpsertList
type ProvisionOutcome string

const (
	ProvisionSuccess ProvisionOutcome = "success"
	ProvisionSkipped ProvisionOutcome = "skipped"
	ProvisionError   ProvisionOutcome = "error"
)

// ProvisionUser holds the user fields of a provisioning item. Nil pointers
// are absent and get defaults.
type ProvisionUser struct {
	Username      string         `yaml:"username" json:"username"`
	Email         *string        `yaml:"email,omitempty" json:"email,omitempty"`
	EmailVerified *bool          `yaml:"emailVerified,omitempty" json:"emailVerified,omitempty"`
	Password      *string        `yaml:"password,omitempty" json:"password,omitempty"`
	IP            *string        `yaml:"ip,omitempty" json:"ip,omitempty"`
	FirstName     string         `yaml:"firstName,omitempty" json:"firstName,omitempty"`
	LastName      string         `yaml:"lastName,omitempty" json:"lastName,omitempty"`
	Metadata      map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// ProvisionItem is one user to upsert with the roles it must hold
type ProvisionItem struct {
	User        ProvisionUser `yaml:"user" json:"user"`
	Roles       []string      `yaml:"roles,omitempty" json:"roles,omitempty"`
	ForceUpdate bool          `yaml:"forceUpdate,omitempty" json:"forceUpdate,omitempty"`
}

// Validate checks the item names a user and that no role name is blank
func (i ProvisionItem) Validate() error {
	if err := validation.ValidateStruct(&i.User,
		validation.Field(&i.User.Username, validation.Required),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&i,
		validation.Field(&i.Roles, validation.Each(validation.Required)),
	)
}

// normalizeRoleNames trims role names and drops repeats, keeping the first
// occurrence order
func normalizeRoleNames(names []string) []string {
	if len(names) == 0 {
		return names
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ProvisionResult reports what happened to one item
type ProvisionResult struct {
	Index        int              `json:"index"`
	Username     string           `json:"username"`
	Outcome      ProvisionOutcome `json:"outcome"`
	Detail       string           `json:"detail,omitempty"`
	CreatedRoles []string         `json:"createdRoles,omitempty"`
	RoleErrors   []string         `json:"roleErrors,omitempty"`
	User         *User            `json:"user,omitempty"`
}

// Failed reports whether any result is an error
func Failed(results []ProvisionResult) bool {
	for _, r := range results {
		if r.Outcome == ProvisionError {
			return true
		}
	}
	return false
}

// Provisioner bulk upserts users and resynchronizes their roles
type Provisioner struct {
	users    ProvisionUsers
	roles    RoleFinder
	mappings RoleMappingStore
	domain   string
	metrics  *Metrics
	activity ActivitySink
	logger   Logger
	provider LoggerProvider
}

// NewProvisioner will create a new Provisioner. domain completes the
// default email address of users provisioned without one.
func NewProvisioner(users ProvisionUsers, roles RoleFinder, mappings RoleMappingStore, domain string) *Provisioner {
	provider, logger := ResolveLogger("auth.provisioner", nil, nil)
	return &Provisioner{
		users:    users,
		roles:    roles,
		mappings: mappings,
		domain:   domain,
		activity: noopActivitySink{},
		logger:   logger,
		provider: provider,
	}
}

func (p *Provisioner) WithLogger(l Logger) *Provisioner {
	p.provider, p.logger = ResolveLogger("auth.provisioner", nil, l)
	return p
}

// WithLoggerProvider overrides the logger provider used by the provisioner.
func (p *Provisioner) WithLoggerProvider(provider LoggerProvider) *Provisioner {
	p.provider, p.logger = ResolveLogger("auth.provisioner", provider, p.logger)
	return p
}

func (p *Provisioner) WithMetrics(m *Metrics) *Provisioner {
	p.metrics = m
	return p
}

func (p *Provisioner) WithActivitySink(sink ActivitySink) *Provisioner {
	p.activity = normalizeActivitySink(sink)
	return p
}

// UpsertList provisions items one after the other. A failing item never
// stops the rest; every item gets a result.
func (p *Provisioner) UpsertList(ctx context.Context, items []ProvisionItem, debug bool) []ProvisionResult {
	if debug {
		p.logger.Debug("provisioning users", "items", print.MaybePrettyJSON(items))
	}

	results := make([]ProvisionResult, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			results = append(results, ProvisionResult{
				Index:    i,
				Username: item.User.Username,
				Outcome:  ProvisionError,
				Detail:   err.Error(),
			})
			continue
		}

		result := p.upsert(ctx, i, item)
		p.metrics.Provisioned(string(result.Outcome))
		results = append(results, result)
	}

	return results
}

func (p *Provisioner) upsert(ctx context.Context, index int, item ProvisionItem) ProvisionResult {
	username := strings.TrimSpace(item.User.Username)
	result := ProvisionResult{Index: index, Username: username}
	item.Roles = normalizeRoleNames(item.Roles)

	if err := item.Validate(); err != nil {
		p.logger.Error("invalid provisioning item", "index", index, "error", err)
		result.Outcome = ProvisionError
		result.Detail = err.Error()
		return result
	}

	count, err := p.users.CountByUsername(ctx, username)
	if err != nil {
		p.logger.Error("failed to count users", "username", username, "error", err)
		result.Outcome = ProvisionError
		result.Detail = ErrorMessage(err)
		return result
	}

	if count > 0 && !item.ForceUpdate {
		p.logger.Info("user exists, skipping", "username", username)
		result.Outcome = ProvisionSkipped
		result.Detail = "user exists and forceUpdate is not set"
		emitActivity(ctx, p.activity, p.logger, ActivityEvent{
			EventType: ActivityEventUserProvisionSkipped,
			Username:  username,
		})
		return result
	}

	for _, name := range item.Roles {
		_, created, err := p.roles.FindOrCreate(ctx, name)
		if err != nil {
			p.logger.Error("failed to find or create role", "role", name, "error", err)
			result.RoleErrors = append(result.RoleErrors, fmt.Sprintf("%s: %s", name, ErrorMessage(err)))
			continue
		}
		if created {
			p.logger.Info("created role", "role", name)
			result.CreatedRoles = append(result.CreatedRoles, name)
		}
	}

	record, columns, err := p.buildUser(item.User)
	if err != nil {
		p.logger.Error("failed to prepare user", "username", username, "error", err)
		result.Outcome = ProvisionError
		result.Detail = ErrorMessage(err)
		return result
	}

	user, err := p.users.UpsertByUsername(ctx, record, columns...)
	if err != nil {
		p.logger.Error("failed to upsert user", "username", username, "error", err)
		result.Outcome = ProvisionError
		result.Detail = ErrorMessage(err)
		return result
	}

	if _, err := p.mappings.DestroyAll(ctx, RoleMappingFilter{
		PrincipalType: PrincipalTypeUser,
		PrincipalID:   user.ID.String(),
	}); err != nil {
		p.logger.Error("failed to clear role mappings", "username", username, "error", err)
		result.Outcome = ProvisionError
		result.Detail = ErrorMessage(err)
		return result
	}

	for _, name := range item.Roles {
		role, err := p.roles.GetByName(ctx, name)
		if err != nil {
			p.logger.Error("failed to look up role", "role", name, "error", err)
			result.RoleErrors = append(result.RoleErrors, fmt.Sprintf("%s: %s", name, ErrorMessage(err)))
			continue
		}

		if _, err := p.mappings.Assign(ctx, NewUserRoleMapping(user.ID, role.ID)); err != nil {
			p.logger.Error("failed to assign role", "role", name, "username", username, "error", err)
			result.RoleErrors = append(result.RoleErrors, fmt.Sprintf("%s: %s", name, ErrorMessage(err)))
			continue
		}
	}

	p.logger.Info("user provisioned", "username", username, "roles", item.Roles)
	emitActivity(ctx, p.activity, p.logger, ActivityEvent{
		EventType: ActivityEventUserProvisioned,
		UserID:    user.ID.String(),
		Username:  username,
		Metadata:  map[string]any{"roles": item.Roles, "force_update": item.ForceUpdate},
	})

	result.Outcome = ProvisionSuccess
	result.User = user
	return result
}

// buildUser fills defaults for absent fields and returns the record with the
// columns an update of an existing user should write
func (p *Provisioner) buildUser(in ProvisionUser) (*User, []string, error) {
	username := strings.TrimSpace(in.Username)

	email := fmt.Sprintf("%s@%s", username, p.domain)
	if in.Email != nil {
		email = *in.Email
	}

	emailVerified := true
	if in.EmailVerified != nil {
		emailVerified = *in.EmailVerified
	}

	password := username
	if in.Password != nil {
		password = *in.Password
	}

	ip := DefaultProvisionIP
	if in.IP != nil {
		ip = *in.IP
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	id, err := hashid.NewUUID(username)
	if err != nil {
		id = uuid.New()
	}

	record := &User{
		ID:            id,
		Username:      username,
		Email:         email,
		EmailVerified: emailVerified,
		PasswordHash:  hash,
		IP:            ip,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Metadata:      in.Metadata,
	}

	columns := []string{"username", "email", "email_verified", "password_hash", "ip"}
	if in.FirstName != "" {
		columns = append(columns, "first_name")
	}
	if in.LastName != "" {
		columns = append(columns, "last_name")
	}
	if in.Metadata != nil {
		columns = append(columns, "metadata")
	}

	return record, columns, nil
}
