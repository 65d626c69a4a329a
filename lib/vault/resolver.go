package vault

import (
	"context"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/gravitational/rustconn/lib/errs"
	"github.com/gravitational/rustconn/lib/pipeline/vars"
	"github.com/gravitational/rustconn/lib/secret"
	"github.com/gravitational/rustconn/lib/vault/cache"
	"github.com/gravitational/rustconn/types"
)

// ResolveResult is Resolver.Resolve's outcome: either usable Credentials, or
// a signal that the caller must show a prompt dialog (spec §4.1,
// "NeedsPrompt signal").
type ResolveResult struct {
	Credentials types.Credentials
	NeedsPrompt bool
}

// VariableLookup resolves a global Variable by name, used for the
// Variable(name) password source. It is satisfied by lib/store.Manager.
type VariableLookup interface {
	GetVariable(name string) (types.Variable, bool)
}

// Resolver implements the C1 resolution algorithm of spec §4.1.
type Resolver struct {
	Registry       *Registry
	Cache          *cache.Cache
	PreferredBackend Kind
	Variables      VariableLookup

	group singleflight.Group
	log   *logrus.Entry
}

// NewResolver builds a Resolver. preferred names the backend used for
// Vault-sourced lookups and for storing newly entered passwords.
func NewResolver(registry *Registry, c *cache.Cache, preferred Kind, variables VariableLookup) *Resolver {
	return &Resolver{
		Registry:         registry,
		Cache:            c,
		PreferredBackend: preferred,
		Variables:        variables,
		log:              logrus.WithField("component", "vault.resolver"),
	}
}

// Resolve implements spec §4.1's resolution algorithm for (connection,
// groups). Concurrent calls for the same resolution key collapse onto one
// in-flight backend call via singleflight (spec §4.1 "Concurrency
// contract"; property 8, spec §8).
func (r *Resolver) Resolve(ctx context.Context, conn *types.Connection, groups []*types.ConnectionGroup, scope *vars.Scope) (ResolveResult, error) {
	username, err := scope.SubstituteAndValidate("username", conn.Username)
	if err != nil {
		return ResolveResult{}, errs.NewVariableError(errs.VarUnsafeValue, "username", err.Error())
	}
	domain, err := scope.SubstituteAndValidate("domain", conn.Domain)
	if err != nil {
		return ResolveResult{}, errs.NewVariableError(errs.VarUnsafeValue, "domain", err.Error())
	}

	switch src := conn.PasswordSource.(type) {
	case types.NoneSource:
		return ResolveResult{Credentials: types.Credentials{Username: username, Domain: domain}}, nil

	case types.PromptSource:
		return ResolveResult{NeedsPrompt: true}, nil

	case types.VariableSource:
		return r.resolveVariable(ctx, src.Name, username, domain, scope)

	case types.VaultSource:
		return r.resolveVault(ctx, DisplayKey(conn), username, domain)

	case types.InheritSource:
		return r.resolveInherit(ctx, conn, groups, username, domain)

	default:
		return ResolveResult{}, trace.BadParameter("unknown password source %T", conn.PasswordSource)
	}
}

func (r *Resolver) resolveVariable(ctx context.Context, name, username, domain string, scope *vars.Scope) (ResolveResult, error) {
	if r.Variables == nil {
		return ResolveResult{}, trace.NotFound("no variable source configured")
	}
	v, ok := r.Variables.GetVariable(name)
	if !ok {
		return ResolveResult{}, errs.NewVariableError(errs.VarUndefined, name, "no such variable")
	}
	value := v.Value
	if v.IsSecret {
		res, err := r.resolveVault(ctx, VariableSecretKey(name), username, domain)
		if err != nil {
			return ResolveResult{}, err
		}
		if res.NeedsPrompt {
			return res, nil
		}
		value = res.Credentials.Password.Expose()
	}
	expanded, err := scope.SubstituteAndValidate(name, value)
	if err != nil {
		return ResolveResult{}, err
	}
	return ResolveResult{Credentials: types.Credentials{
		Username: username,
		Domain:   domain,
		Password: secret.New(expanded),
	}}, nil
}

func (r *Resolver) resolveVault(ctx context.Context, key, username, domain string) (ResolveResult, error) {
	if cached, ok := r.Cache.Get(key); ok {
		return ResolveResult{Credentials: mergeUsernameDomain(cached, username, domain)}, nil
	}

	backend, err := r.Registry.MustGet(r.PreferredBackend)
	if err != nil {
		return ResolveResult{}, errs.NewSecretError(errs.SecretBackendUnavailable, key, err)
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		available, err := r.Registry.IsAvailableCached(ctx, r.PreferredBackend)
		if err != nil {
			return nil, errs.NewSecretError(errs.SecretBackendUnavailable, key, err)
		}
		if !available {
			return nil, errs.NewSecretError(errs.SecretBackendUnavailable, key, nil)
		}
		creds, found, err := backend.Retrieve(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errs.NewSecretError(errs.SecretNotFound, key, nil)
		}
		return creds, nil
	})
	if err != nil {
		var se *errs.SecretError
		if asSecretErr(err, &se) {
			switch se.Kind {
			case errs.SecretNotFound, errs.SecretBackendUnavailable, errs.SecretBackendLocked:
				// spec §4.1: escalate to NeedsPrompt on miss or outage.
				return ResolveResult{NeedsPrompt: true}, nil
			}
		}
		return ResolveResult{}, trace.Wrap(err)
	}

	creds := v.(types.Credentials)
	r.Cache.Insert(key, creds)
	return ResolveResult{Credentials: mergeUsernameDomain(creds, username, domain)}, nil
}

// resolveInherit walks the ancestor chain, stopping at the first ancestor
// whose password_source is Vault with a successful retrieval (spec §4.1,
// property 5: terminates within depth(forest) lookups since Ancestors is
// already bounded by the forest invariant).
func (r *Resolver) resolveInherit(ctx context.Context, conn *types.Connection, groups []*types.ConnectionGroup, username, domain string) (ResolveResult, error) {
	if conn.GroupID == nil {
		return ResolveResult{NeedsPrompt: true}, nil
	}
	byID := make(map[string]*types.ConnectionGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	self, ok := byID[*conn.GroupID]
	if !ok {
		return ResolveResult{NeedsPrompt: true}, nil
	}
	chain := append([]*types.ConnectionGroup{self}, types.Ancestors(*conn.GroupID, groups)...)

	for _, g := range chain {
		if _, isVault := g.PasswordSource.(types.VaultSource); !isVault {
			continue
		}
		res, err := r.resolveVault(ctx, GroupKey(g), username, domain)
		if err != nil {
			return ResolveResult{}, err
		}
		if res.NeedsPrompt {
			continue
		}
		merged := res.Credentials
		if username == "" {
			merged.Username = g.Username
		}
		if domain == "" {
			merged.Domain = g.Domain
		}
		return ResolveResult{Credentials: merged}, nil
	}
	return ResolveResult{NeedsPrompt: true}, nil
}

// mergeUsernameDomain fills in username/domain from the connection's own
// expanded values when non-empty, matching property 6 (spec §8): the merged
// result keeps the vault's password and only takes username/domain from the
// ambient source the connection itself did not specify.
func mergeUsernameDomain(creds types.Credentials, username, domain string) types.Credentials {
	if username != "" {
		creds.Username = username
	}
	if domain != "" {
		creds.Domain = domain
	}
	return creds
}

// CompletePrompt is called once the caller's prompt dialog returns a
// password (spec §4.1, step 4): "On a prompt dialog return, and only when
// connection.password_source == Vault, automatically store the newly
// entered password before returning."
func (r *Resolver) CompletePrompt(ctx context.Context, conn *types.Connection, username, domain, password string, save bool) (types.Credentials, error) {
	creds := types.Credentials{Username: username, Domain: domain, Password: secret.New(password), SaveCredentials: save}
	if _, isVault := conn.PasswordSource.(types.VaultSource); isVault && save {
		backend, err := r.Registry.MustGet(r.PreferredBackend)
		if err != nil {
			return creds, errs.NewSecretError(errs.SecretBackendUnavailable, DisplayKey(conn), err)
		}
		key := DisplayKey(conn)
		if err := backend.Store(ctx, key, creds); err != nil {
			return creds, errs.NewSecretError(errs.SecretProtocolError, key, err)
		}
		r.Cache.Insert(key, creds)
	}
	return creds, nil
}

// Invalidate evicts key from the cache (spec §4.1, "Cache invalidation
// events"). Callers pass DisplayKey/GroupKey/VariableSecretKey as
// appropriate to the event.
func (r *Resolver) Invalidate(key string) {
	r.Cache.Invalidate(key)
}

// InvalidateAll flushes the entire cache (the "flush secrets" action).
func (r *Resolver) InvalidateAll() {
	r.Cache.InvalidateAll()
}

// Rename drives the retrieve→store→delete propagation of spec §4.1: renaming
// a connection requires retrieving under the old key, storing under the new
// key, then deleting the old key. A failure at store or later leaves the old
// key intact and returns a RenameFailed error with the failing stage (spec
// §7, property 4 of spec §8).
func (r *Resolver) Rename(ctx context.Context, oldKey, newKey string) error {
	backend, err := r.Registry.MustGet(r.PreferredBackend)
	if err != nil {
		return errs.NewSecretError(errs.SecretBackendUnavailable, oldKey, err)
	}

	creds, found, err := backend.Retrieve(ctx, oldKey)
	if err != nil {
		return errs.NewRenameError(errs.RenameStageRetrieve, oldKey, err)
	}
	if !found {
		// Nothing stored under the old key: nothing to propagate.
		r.Cache.Invalidate(oldKey)
		r.Cache.Invalidate(newKey)
		return nil
	}

	if err := backend.Store(ctx, newKey, creds); err != nil {
		// Old key is untouched; surface the error, do not attempt rollback.
		return errs.NewRenameError(errs.RenameStageStore, newKey, err)
	}

	if err := backend.Delete(ctx, oldKey); err != nil {
		// Store succeeded, delete failed: both keys now hold the secret.
		// This is a checkpoint-based cancellation boundary (spec §5): we
		// log and surface the error rather than attempting to undo the
		// store.
		r.log.WithError(err).WithField("old_key", oldKey).Warn("rename: store succeeded but delete of old key failed")
		r.Cache.Invalidate(oldKey)
		r.Cache.Insert(newKey, creds)
		return errs.NewRenameError(errs.RenameStageDelete, oldKey, err)
	}

	r.Cache.Invalidate(oldKey)
	r.Cache.Insert(newKey, creds)
	return nil
}

func asSecretErr(err error, target **errs.SecretError) bool {
	se, ok := err.(*errs.SecretError)
	if ok {
		*target = se
	}
	return ok
}
