// Package privilege answers whether a user holds a privilege. Users hold
// roles through user_to_user_role edges; a static Table maps each role's
// unique name to the privileges it grants. A user with no roles is treated
// as holding the default role.
package privilege

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/graph"
)

// RelUserToRole is the relationship that assigns roles to users.
const RelUserToRole = "user_to_user_role"

// Catalog resolves unique names. *catalog.Catalog satisfies it.
type Catalog interface {
	IDOf(ctx context.Context, uniqueName string, opts ...strata.LookupOption) (strata.ID, error)
	TypeID(ctx context.Context, uniqueName string, opts ...strata.LookupOption) (strata.ID, error)
}

// Graph follows edges. *graph.Graph satisfies it.
type Graph interface {
	Targets(ctx context.Context, a strata.ID, kind graph.Kind) ([]strata.ID, error)
	HasRelation(ctx context.Context, a, b strata.ID, kind graph.Kind) (bool, error)
}

// Loader loads entities. *entity.Store satisfies it.
type Loader interface {
	GetByID(ctx context.Context, id strata.ID, opts ...strata.LookupOption) (strata.Entity, error)
}

// Role is a user_role entity held by a user.
type Role struct {
	ID         strata.ID `json:"id"`
	UniqueName string    `json:"unique_name"`
	Name       string    `json:"name,omitempty"`
	// Default is set when the role was substituted because the user holds
	// no roles.
	Default bool `json:"default,omitempty"`
}

// Resolver resolves roles and privileges. It is safe for concurrent use.
type Resolver struct {
	cat                Catalog
	graph              Graph
	loader             Loader
	memo               *strata.Memo
	logger             *slog.Logger
	table              Table
	defaultRole        string
	decision           strata.Decision
	useContextDecision bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTable replaces the role table.
func WithTable(t Table) Option {
	return func(r *Resolver) {
		if t != nil {
			r.table = t
		}
	}
}

// WithDefaultRole sets the role substituted for users with none.
// The default is editor_user_role.
func WithDefaultRole(uniqueName string) Option {
	return func(r *Resolver) {
		if uniqueName != "" {
			r.defaultRole = uniqueName
		}
	}
}

// WithDecision sets a decision override that bypasses role resolution.
// Use strata.DecisionAllow for admin tools, strata.DecisionDeny to exercise
// unauthorized paths in tests.
func WithDecision(d strata.Decision) Option {
	return func(r *Resolver) {
		r.decision = d
	}
}

// WithContextDecision makes HasPrivilege consult strata.GetDecisionContext
// before anything else.
//
// Decision precedence when enabled:
//  1. Context decision (via strata.WithDecisionContext)
//  2. Resolver decision (via WithDecision)
//  3. Role lookup
func WithContextDecision() Option {
	return func(r *Resolver) {
		r.useContextDecision = true
	}
}

// WithCache sets the cache roles and privilege answers are memoized in.
func WithCache(c strata.Cache) Option {
	return func(r *Resolver) {
		r.memo = strata.NewMemo(c)
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver.
func New(cat Catalog, g Graph, loader Loader, opts ...Option) *Resolver {
	r := &Resolver{
		cat:         cat,
		graph:       g,
		loader:      loader,
		logger:      slog.Default(),
		table:       DefaultTable(),
		defaultRole: RoleEditor,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.memo == nil {
		r.memo = strata.NewMemo(nil)
	}
	return r
}

// Table returns the role table in use.
func (r *Resolver) Table() Table {
	return r.table
}

// DefaultRole returns the unique name of the fallback role.
func (r *Resolver) DefaultRole() string {
	return r.defaultRole
}

// RolesOf returns the live roles user holds, in assignment order. A user
// with none gets the default role, marked Default. User 0 holds nothing.
// Results are cached per user.
func (r *Resolver) RolesOf(ctx context.Context, user strata.ID, opts ...strata.LookupOption) ([]Role, error) {
	if user.IsZero() {
		return nil, nil
	}
	l := strata.NewLookup(opts...)

	roles, err := strata.Remember(ctx, r.memo, strata.Key("privilege", "roles", user), l.Fresh,
		func(ctx context.Context) ([]Role, error) {
			held, err := r.heldRoles(ctx, user, opts...)
			if err != nil {
				return nil, err
			}
			if len(held) > 0 {
				return held, nil
			}
			return []Role{r.fallback(ctx)}, nil
		})
	if err != nil {
		return nil, err
	}
	return append([]Role(nil), roles...), nil
}

func (r *Resolver) heldRoles(ctx context.Context, user strata.ID, opts ...strata.LookupOption) ([]Role, error) {
	roleType, err := r.cat.TypeID(ctx, "user_role", opts...)
	if err != nil {
		return nil, fmt.Errorf("roles of %d: %w", user, err)
	}
	ids, err := r.graph.Targets(ctx, user, graph.KindName(RelUserToRole))
	if err != nil {
		return nil, fmt.Errorf("roles of %d: %w", user, err)
	}

	var out []Role
	seen := make(map[strata.ID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		e, err := r.loader.GetByID(ctx, id, opts...)
		if strata.IsNotFoundErr(err) {
			continue
		}
		var gap *strata.IntegrityGapError
		if errors.As(err, &gap) {
			e, err = gap.Partial, nil
		}
		if err != nil {
			return nil, fmt.Errorf("roles of %d: %w", user, err)
		}
		if e.Type() != roleType || e.State() != strata.StateLive {
			continue
		}
		out = append(out, Role{ID: id, UniqueName: e.UniqueName(), Name: e.Name()})
	}
	return out, nil
}

// fallback builds the default role. The role is granted by name, so a
// store without the role entity still gets its privileges.
func (r *Resolver) fallback(ctx context.Context) Role {
	role := Role{UniqueName: r.defaultRole, Default: true}
	id, err := r.cat.IDOf(ctx, r.defaultRole, strata.Quiet())
	if err != nil {
		r.logger.WarnContext(ctx, "default role entity not found", "role", r.defaultRole, "error", err)
		return role
	}
	role.ID = id
	return role
}

// HasPrivilege reports whether user holds priv through any of their roles.
// User 0 never holds a privilege, whatever the decision overrides say, and
// triggers no lookup. Answers are cached per user and privilege.
func (r *Resolver) HasPrivilege(ctx context.Context, user strata.ID, priv Privilege, opts ...strata.LookupOption) (bool, error) {
	if user.IsZero() {
		return false, nil
	}
	if r.useContextDecision {
		if d := strata.GetDecisionContext(ctx); d != strata.DecisionUnset {
			return d == strata.DecisionAllow, nil
		}
	}
	if r.decision != strata.DecisionUnset {
		return r.decision == strata.DecisionAllow, nil
	}
	l := strata.NewLookup(opts...)

	return strata.Remember(ctx, r.memo, strata.Key("privilege", "has", user, priv), l.Fresh,
		func(ctx context.Context) (bool, error) {
			roles, err := r.RolesOf(ctx, user, opts...)
			if err != nil {
				return false, err
			}
			for _, role := range roles {
				if r.table.Grants(role.UniqueName, priv) {
					return true, nil
				}
			}
			return false, nil
		})
}

// Privileges returns every privilege user holds, sorted.
func (r *Resolver) Privileges(ctx context.Context, user strata.ID, opts ...strata.LookupOption) ([]Privilege, error) {
	roles, err := r.RolesOf(ctx, user, opts...)
	if err != nil {
		return nil, err
	}
	set := make(map[Privilege]bool)
	for _, role := range roles {
		for _, p := range r.table[role.UniqueName] {
			set[p] = true
		}
	}
	out := make([]Privilege, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// HasRole reports whether user is directly assigned the role with the given
// unique name. The default role substitution does not count.
func (r *Resolver) HasRole(ctx context.Context, user strata.ID, roleUniqueName string) (bool, error) {
	if user.IsZero() {
		return false, nil
	}
	roleID, err := r.cat.IDOf(ctx, roleUniqueName, strata.Quiet())
	if strata.IsNotFoundErr(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.graph.HasRelation(ctx, user, roleID, graph.KindName(RelUserToRole))
}
