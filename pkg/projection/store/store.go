package store

import (
	"sort"

	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// EntityStore owns every live entity for the duration of a batch. All lookups
// and mutations go through it; iteration order is insertion order so replays
// are deterministic.
type EntityStore struct {
	logger *zap.Logger

	global      *storage.GlobalState
	accounts    *orderedmap.OrderedMap[string, *storage.Account]
	basePools   *orderedmap.OrderedMap[string, *storage.BasePool]
	stakePools  *orderedmap.OrderedMap[string, *storage.StakePool]
	vaults      *orderedmap.OrderedMap[string, *storage.Vault]
	delegations *orderedmap.OrderedMap[string, *storage.Delegation]
	workers     *orderedmap.OrderedMap[string, *storage.Worker]
	sessions    *orderedmap.OrderedMap[string, *storage.Session]
	nfts        *orderedmap.OrderedMap[string, *storage.Nft]
	whitelists  *orderedmap.OrderedMap[string, *storage.Whitelist]

	globalDirty      bool
	dirtyAccounts    map[string]struct{}
	dirtyBasePools   map[string]struct{}
	dirtyStakePools  map[string]struct{}
	dirtyVaults      map[string]struct{}
	dirtyDelegations map[string]struct{}
	dirtyWorkers     map[string]struct{}
	dirtySessions    map[string]struct{}
	dirtyNfts        map[string]struct{}
	dirtyWhitelists  map[string]struct{}
	whitelistDeletes []string

	globalSnapshots     []*storage.GlobalStateSnapshot
	basePoolSnapshots   []*storage.BasePoolSnapshot
	accountSnapshots    []*storage.AccountSnapshot
	delegationSnapshots []*storage.DelegationSnapshot
	workerSnapshots     []*storage.WorkerSnapshot
}

func NewEntityStore(logger *zap.Logger) *EntityStore {
	s := &EntityStore{
		logger:      logger,
		accounts:    orderedmap.New[string, *storage.Account](),
		basePools:   orderedmap.New[string, *storage.BasePool](),
		stakePools:  orderedmap.New[string, *storage.StakePool](),
		vaults:      orderedmap.New[string, *storage.Vault](),
		delegations: orderedmap.New[string, *storage.Delegation](),
		workers:     orderedmap.New[string, *storage.Worker](),
		sessions:    orderedmap.New[string, *storage.Session](),
		nfts:        orderedmap.New[string, *storage.Nft](),
		whitelists:  orderedmap.New[string, *storage.Whitelist](),
	}
	s.resetDirty()
	return s
}

func (s *EntityStore) resetDirty() {
	s.globalDirty = false
	s.dirtyAccounts = make(map[string]struct{})
	s.dirtyBasePools = make(map[string]struct{})
	s.dirtyStakePools = make(map[string]struct{})
	s.dirtyVaults = make(map[string]struct{})
	s.dirtyDelegations = make(map[string]struct{})
	s.dirtyWorkers = make(map[string]struct{})
	s.dirtySessions = make(map[string]struct{})
	s.dirtyNfts = make(map[string]struct{})
	s.dirtyWhitelists = make(map[string]struct{})
	s.whitelistDeletes = nil
	s.globalSnapshots = nil
	s.basePoolSnapshots = nil
	s.accountSnapshots = nil
	s.delegationSnapshots = nil
	s.workerSnapshots = nil
}

// Hydrate folds a loaded dataset into the store without marking anything
// dirty.
func (s *EntityStore) Hydrate(ds *storage.Dataset) {
	if ds == nil {
		return
	}
	s.global = ds.GlobalState
	for _, a := range ds.Accounts {
		s.accounts.Set(a.ID, a)
	}
	for _, p := range ds.BasePools {
		s.basePools.Set(p.ID, p)
	}
	for _, p := range ds.StakePools {
		s.stakePools.Set(p.PoolID, p)
	}
	for _, v := range ds.Vaults {
		s.vaults.Set(v.PoolID, v)
	}
	for _, d := range ds.Delegations {
		s.delegations.Set(d.ID, d)
	}
	for _, w := range ds.Workers {
		s.workers.Set(w.ID, w)
	}
	for _, sess := range ds.Sessions {
		s.sessions.Set(sess.ID, sess)
	}
	for _, n := range ds.Nfts {
		s.nfts.Set(n.ID, n)
	}
	for _, w := range ds.Whitelists {
		s.whitelists.Set(w.ID, w)
	}
}

func (s *EntityStore) HasGlobalState() bool {
	return s.global != nil
}

// CommittedHeight reports the height of the hydrated global state without
// marking it dirty. Zero means a fresh projection.
func (s *EntityStore) CommittedHeight() uint64 {
	if s.global == nil {
		return 0
	}
	return s.global.Height
}

// Global returns the GlobalState singleton and marks it dirty; it is created
// on first use.
func (s *EntityStore) Global() *storage.GlobalState {
	if s.global == nil {
		s.global = &storage.GlobalState{ID: storage.GlobalStateID}
	}
	s.globalDirty = true
	return s.global
}

// Account returns the account for id, creating it lazily on first reference.
// Accounts are never deleted. CreatedAt is left zero; identical replays must
// serialize identically, so no wall-clock value may enter the entity graph.
func (s *EntityStore) Account(id string) *storage.Account {
	if a, ok := s.accounts.Get(id); ok {
		s.dirtyAccounts[id] = struct{}{}
		return a
	}
	a := &storage.Account{ID: id}
	s.accounts.Set(id, a)
	s.dirtyAccounts[id] = struct{}{}
	return a
}

func (s *EntityStore) BasePool(id string) (*storage.BasePool, bool) {
	p, ok := s.basePools.Get(id)
	if ok {
		s.dirtyBasePools[id] = struct{}{}
	}
	return p, ok
}

func (s *EntityStore) PutBasePool(p *storage.BasePool) {
	s.basePools.Set(p.ID, p)
	s.dirtyBasePools[p.ID] = struct{}{}
}

func (s *EntityStore) StakePool(poolID string) (*storage.StakePool, bool) {
	p, ok := s.stakePools.Get(poolID)
	if ok {
		s.dirtyStakePools[poolID] = struct{}{}
	}
	return p, ok
}

func (s *EntityStore) PutStakePool(p *storage.StakePool) {
	s.stakePools.Set(p.PoolID, p)
	s.dirtyStakePools[p.PoolID] = struct{}{}
}

func (s *EntityStore) Vault(poolID string) (*storage.Vault, bool) {
	v, ok := s.vaults.Get(poolID)
	if ok {
		s.dirtyVaults[poolID] = struct{}{}
	}
	return v, ok
}

func (s *EntityStore) PutVault(v *storage.Vault) {
	s.vaults.Set(v.PoolID, v)
	s.dirtyVaults[v.PoolID] = struct{}{}
}

func (s *EntityStore) Delegation(id string) (*storage.Delegation, bool) {
	d, ok := s.delegations.Get(id)
	if ok {
		s.dirtyDelegations[id] = struct{}{}
	}
	return d, ok
}

func (s *EntityStore) PutDelegation(d *storage.Delegation) {
	s.delegations.Set(d.ID, d)
	s.dirtyDelegations[d.ID] = struct{}{}
}

func (s *EntityStore) Worker(id string) (*storage.Worker, bool) {
	w, ok := s.workers.Get(id)
	if ok {
		s.dirtyWorkers[id] = struct{}{}
	}
	return w, ok
}

func (s *EntityStore) PutWorker(w *storage.Worker) {
	s.workers.Set(w.ID, w)
	s.dirtyWorkers[w.ID] = struct{}{}
}

func (s *EntityStore) Session(id string) (*storage.Session, bool) {
	sess, ok := s.sessions.Get(id)
	if ok {
		s.dirtySessions[id] = struct{}{}
	}
	return sess, ok
}

func (s *EntityStore) PutSession(sess *storage.Session) {
	s.sessions.Set(sess.ID, sess)
	s.dirtySessions[sess.ID] = struct{}{}
}

func (s *EntityStore) Nft(id string) (*storage.Nft, bool) {
	n, ok := s.nfts.Get(id)
	if ok {
		s.dirtyNfts[id] = struct{}{}
	}
	return n, ok
}

func (s *EntityStore) PutNft(n *storage.Nft) {
	s.nfts.Set(n.ID, n)
	s.dirtyNfts[n.ID] = struct{}{}
}

func (s *EntityStore) Whitelist(id string) (*storage.Whitelist, bool) {
	w, ok := s.whitelists.Get(id)
	return w, ok
}

func (s *EntityStore) PutWhitelist(w *storage.Whitelist) {
	s.whitelists.Set(w.ID, w)
	s.dirtyWhitelists[w.ID] = struct{}{}
	// Re-adding an entry cancels any delete queued earlier in the batch;
	// deletes are applied after upserts on commit.
	for i, id := range s.whitelistDeletes {
		if id == w.ID {
			s.whitelistDeletes = append(s.whitelistDeletes[:i], s.whitelistDeletes[i+1:]...)
			break
		}
	}
}

// DeleteWhitelist removes the entry and records an explicit delete for the
// persistence collaborator. Whitelist removals are the only deletes in the
// projection.
func (s *EntityStore) DeleteWhitelist(id string) {
	s.whitelists.Delete(id)
	delete(s.dirtyWhitelists, id)
	s.whitelistDeletes = append(s.whitelistDeletes, id)
}

// Iteration, in insertion order.

func (s *EntityStore) ForEachAccount(fn func(*storage.Account)) {
	for pair := s.accounts.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Value)
	}
}

func (s *EntityStore) ForEachBasePool(fn func(*storage.BasePool)) {
	for pair := s.basePools.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Value)
	}
}

func (s *EntityStore) ForEachStakePool(fn func(*storage.StakePool)) {
	for pair := s.stakePools.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Value)
	}
}

func (s *EntityStore) ForEachVault(fn func(*storage.Vault)) {
	for pair := s.vaults.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Value)
	}
}

func (s *EntityStore) ForEachDelegation(fn func(*storage.Delegation)) {
	for pair := s.delegations.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Value)
	}
}

func (s *EntityStore) ForEachWorker(fn func(*storage.Worker)) {
	for pair := s.workers.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Value)
	}
}

func (s *EntityStore) ForEachSession(fn func(*storage.Session)) {
	for pair := s.sessions.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Value)
	}
}

func (s *EntityStore) ForEachNft(fn func(*storage.Nft)) {
	for pair := s.nfts.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Value)
	}
}

func (s *EntityStore) ForEachWhitelist(fn func(*storage.Whitelist)) {
	for pair := s.whitelists.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Value)
	}
}

// BasePoolByCid resolves the pool owning an NFT collection.
func (s *EntityStore) BasePoolByCid(cid uint32) (*storage.BasePool, bool) {
	for pair := s.basePools.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Cid == cid {
			s.dirtyBasePools[pair.Value.ID] = struct{}{}
			return pair.Value, true
		}
	}
	return nil, false
}

// MarkAccountDirty flags entities mutated outside a store accessor, e.g.
// during the post-update pass.
func (s *EntityStore) MarkAccountDirty(id string)    { s.dirtyAccounts[id] = struct{}{} }
func (s *EntityStore) MarkBasePoolDirty(id string)   { s.dirtyBasePools[id] = struct{}{} }
func (s *EntityStore) MarkStakePoolDirty(id string)  { s.dirtyStakePools[id] = struct{}{} }
func (s *EntityStore) MarkVaultDirty(id string)      { s.dirtyVaults[id] = struct{}{} }
func (s *EntityStore) MarkDelegationDirty(id string) { s.dirtyDelegations[id] = struct{}{} }
func (s *EntityStore) MarkWorkerDirty(id string)     { s.dirtyWorkers[id] = struct{}{} }
func (s *EntityStore) MarkSessionDirty(id string)    { s.dirtySessions[id] = struct{}{} }

// Snapshot appends.

func (s *EntityStore) AppendGlobalStateSnapshot(snap *storage.GlobalStateSnapshot) {
	s.globalSnapshots = append(s.globalSnapshots, snap)
}

func (s *EntityStore) AppendBasePoolSnapshot(snap *storage.BasePoolSnapshot) {
	s.basePoolSnapshots = append(s.basePoolSnapshots, snap)
}

func (s *EntityStore) AppendAccountSnapshot(snap *storage.AccountSnapshot) {
	s.accountSnapshots = append(s.accountSnapshots, snap)
}

func (s *EntityStore) AppendDelegationSnapshot(snap *storage.DelegationSnapshot) {
	s.delegationSnapshots = append(s.delegationSnapshots, snap)
}

func (s *EntityStore) AppendWorkerSnapshot(snap *storage.WorkerSnapshot) {
	s.workerSnapshots = append(s.workerSnapshots, snap)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildChangeSet assembles the dirty set in sorted-id order and clears the
// dirty tracking. Call only after a fully processed batch.
func (s *EntityStore) BuildChangeSet() *storage.ChangeSet {
	cs := &storage.ChangeSet{}
	if s.globalDirty {
		cs.GlobalState = s.global
	}
	for _, id := range sortedKeys(s.dirtyAccounts) {
		if a, ok := s.accounts.Get(id); ok {
			cs.Accounts = append(cs.Accounts, a)
		}
	}
	for _, id := range sortedKeys(s.dirtyBasePools) {
		if p, ok := s.basePools.Get(id); ok {
			cs.BasePools = append(cs.BasePools, p)
		}
	}
	for _, id := range sortedKeys(s.dirtyStakePools) {
		if p, ok := s.stakePools.Get(id); ok {
			cs.StakePools = append(cs.StakePools, p)
		}
	}
	for _, id := range sortedKeys(s.dirtyVaults) {
		if v, ok := s.vaults.Get(id); ok {
			cs.Vaults = append(cs.Vaults, v)
		}
	}
	for _, id := range sortedKeys(s.dirtyDelegations) {
		if d, ok := s.delegations.Get(id); ok {
			cs.Delegations = append(cs.Delegations, d)
		}
	}
	for _, id := range sortedKeys(s.dirtyWorkers) {
		if w, ok := s.workers.Get(id); ok {
			cs.Workers = append(cs.Workers, w)
		}
	}
	for _, id := range sortedKeys(s.dirtySessions) {
		if sess, ok := s.sessions.Get(id); ok {
			cs.Sessions = append(cs.Sessions, sess)
		}
	}
	for _, id := range sortedKeys(s.dirtyNfts) {
		if n, ok := s.nfts.Get(id); ok {
			cs.Nfts = append(cs.Nfts, n)
		}
	}
	for _, id := range sortedKeys(s.dirtyWhitelists) {
		if w, ok := s.whitelists.Get(id); ok {
			cs.Whitelists = append(cs.Whitelists, w)
		}
	}
	cs.WhitelistDeletes = s.whitelistDeletes
	cs.GlobalStateSnapshots = s.globalSnapshots
	cs.BasePoolSnapshots = s.basePoolSnapshots
	cs.AccountSnapshots = s.accountSnapshots
	cs.DelegationSnapshots = s.delegationSnapshots
	cs.WorkerSnapshots = s.workerSnapshots

	s.resetDirty()
	return cs
}
