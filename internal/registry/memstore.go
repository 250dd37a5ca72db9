package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is an in-process Store. A unit of work holds a per-asset lock for
// every asset it touches, stages its writes privately and applies them in one
// step on commit, so callers working on different assets never wait on each
// other.
type Memory struct {
	mu        sync.RWMutex
	orgs      map[int64]Organization
	orgCodes  map[string]int64
	users     map[int64]User
	usernames map[string]int64
	assets    map[int64]Asset
	records   map[int64]StageRecord
	pending   map[pendingKey]int64
	materials map[int64]Material
	versions  map[versionKey]int
	audit     []AuditEntry

	orgSeq, userSeq, assetSeq, recordSeq, materialSeq, auditSeq atomic.Int64

	locks keyedLocks
	now   func() time.Time
}

type pendingKey struct {
	assetID int64
	stage   Stage
}

type versionKey struct {
	recordID int64
	fileName string
}

var _ Store = (*Memory)(nil)

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMemoryClock overrides the timestamp source.
func WithMemoryClock(fn func() time.Time) MemoryOption {
	return func(m *Memory) {
		if fn != nil {
			m.now = fn
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		orgs:      make(map[int64]Organization),
		orgCodes:  make(map[string]int64),
		users:     make(map[int64]User),
		usernames: make(map[string]int64),
		assets:    make(map[int64]Asset),
		records:   make(map[int64]StageRecord),
		pending:   make(map[pendingKey]int64),
		materials: make(map[int64]Material),
		versions:  make(map[versionKey]int),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) timestamp() time.Time { return m.now().UTC() }

// WithinTx runs fn in a unit of work. Writes are discarded if fn fails.
func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		s:       m,
		held:    make(map[int64]struct{}),
		assets:  make(map[int64]Asset),
		records: make(map[int64]StageRecord),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.commit(tx)
}

func (m *Memory) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, org := range tx.orgs {
		if org.CreditCode == "" {
			continue
		}
		if _, ok := m.orgCodes[org.CreditCode]; ok {
			return fmt.Errorf("%w: credit code %q already registered", ErrConflict, org.CreditCode)
		}
	}
	for _, u := range tx.users {
		if _, ok := m.usernames[u.Username]; ok {
			return fmt.Errorf("%w: username %q already taken", ErrConflict, u.Username)
		}
	}
	for _, r := range tx.records {
		if r.Status != StatusSubmitted {
			continue
		}
		other, ok := m.pending[pendingKey{r.AssetID, r.Stage}]
		if !ok || other == r.ID {
			continue
		}
		if staged, ok := tx.records[other]; ok && staged.Status != StatusSubmitted {
			continue
		}
		return fmt.Errorf("%w: stage %s of asset %d already submitted", ErrConflict, r.Stage, r.AssetID)
	}
	for _, mat := range tx.materials {
		if m.versions[versionKey{mat.StageRecordID, mat.FileName}] >= mat.Version {
			return fmt.Errorf("%w: version %d of %q already exists", ErrConflict, mat.Version, mat.FileName)
		}
	}

	for _, org := range tx.orgs {
		m.orgs[org.ID] = org
		if org.CreditCode != "" {
			m.orgCodes[org.CreditCode] = org.ID
		}
	}
	for _, u := range tx.users {
		m.users[u.ID] = u
		m.usernames[u.Username] = u.ID
	}
	for id, a := range tx.assets {
		m.assets[id] = a
	}
	for id, r := range tx.records {
		key := pendingKey{r.AssetID, r.Stage}
		if r.Status == StatusSubmitted {
			m.pending[key] = id
		} else if m.pending[key] == id {
			delete(m.pending, key)
		}
		m.records[id] = r
	}
	for _, mat := range tx.materials {
		m.materials[mat.ID] = mat
		m.versions[versionKey{mat.StageRecordID, mat.FileName}] = mat.Version
	}
	for _, e := range tx.audit {
		// keep id order; a unit of work may commit after one that started later
		i := sort.Search(len(m.audit), func(i int) bool { return m.audit[i].ID > e.ID })
		m.audit = append(m.audit, AuditEntry{})
		copy(m.audit[i+1:], m.audit[i:])
		m.audit[i] = e
	}
	return nil
}

type memTx struct {
	s    *Memory
	held map[int64]struct{}

	orgs      []Organization
	users     []User
	assets    map[int64]Asset
	records   map[int64]StageRecord
	materials []Material
	audit     []AuditEntry
}

func (t *memTx) release() {
	for id := range t.held {
		t.s.locks.unlock(id)
	}
	t.held = nil
}

func (t *memTx) lockAsset(ctx context.Context, id int64) error {
	if _, ok := t.held[id]; ok {
		return nil
	}
	if err := t.s.locks.lock(ctx, id); err != nil {
		return err
	}
	t.held[id] = struct{}{}
	return nil
}

func (t *memTx) CreateOrganization(_ context.Context, org Organization) (Organization, error) {
	if org.CreditCode != "" {
		for _, staged := range t.orgs {
			if staged.CreditCode == org.CreditCode {
				return Organization{}, fmt.Errorf("%w: credit code %q already registered", ErrConflict, org.CreditCode)
			}
		}
		t.s.mu.RLock()
		_, taken := t.s.orgCodes[org.CreditCode]
		t.s.mu.RUnlock()
		if taken {
			return Organization{}, fmt.Errorf("%w: credit code %q already registered", ErrConflict, org.CreditCode)
		}
	}
	org.ID = t.s.orgSeq.Add(1)
	org.CreatedAt = t.s.timestamp()
	t.orgs = append(t.orgs, org)
	return org, nil
}

func (t *memTx) GetOrganization(ctx context.Context, id int64) (Organization, error) {
	for _, org := range t.orgs {
		if org.ID == id {
			return org, nil
		}
	}
	return t.s.GetOrganization(ctx, id)
}

func (t *memTx) CreateUser(ctx context.Context, u User) (User, error) {
	for _, staged := range t.users {
		if staged.Username == u.Username {
			return User{}, fmt.Errorf("%w: username %q already taken", ErrConflict, u.Username)
		}
	}
	t.s.mu.RLock()
	_, taken := t.s.usernames[u.Username]
	t.s.mu.RUnlock()
	if taken {
		return User{}, fmt.Errorf("%w: username %q already taken", ErrConflict, u.Username)
	}
	if u.OrganizationID > 0 {
		if _, err := t.GetOrganization(ctx, u.OrganizationID); err != nil {
			return User{}, err
		}
	}
	u.ID = t.s.userSeq.Add(1)
	u.CreatedAt = t.s.timestamp()
	t.users = append(t.users, u)
	return u, nil
}

func (t *memTx) CreateAsset(ctx context.Context, a Asset) (Asset, error) {
	if _, err := t.GetOrganization(ctx, a.OrganizationID); err != nil {
		return Asset{}, err
	}
	a.ID = t.s.assetSeq.Add(1)
	a.CreatedAt = t.s.timestamp()
	a.UpdatedAt = a.CreatedAt
	t.assets[a.ID] = a
	return a, nil
}

func (t *memTx) GetAsset(ctx context.Context, id int64) (Asset, error) {
	if a, ok := t.assets[id]; ok {
		return a, nil
	}
	return t.s.GetAsset(ctx, id)
}

func (t *memTx) LockAsset(ctx context.Context, id int64) (Asset, error) {
	if _, err := t.GetAsset(ctx, id); err != nil {
		return Asset{}, err
	}
	if err := t.lockAsset(ctx, id); err != nil {
		return Asset{}, err
	}
	return t.GetAsset(ctx, id)
}

func (t *memTx) SetAssetStage(ctx context.Context, id int64, stage Stage) error {
	if _, ok := t.held[id]; !ok {
		return fmt.Errorf("asset %d is not locked by this unit of work", id)
	}
	a, err := t.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	a.CurrentStage = stage
	a.UpdatedAt = t.s.timestamp()
	t.assets[id] = a
	return nil
}

func (t *memTx) PendingRecord(ctx context.Context, assetID int64, stage Stage) (StageRecord, bool, error) {
	for _, r := range t.records {
		if r.AssetID == assetID && r.Stage == stage && r.Status == StatusSubmitted {
			return cloneRecord(r), true, nil
		}
	}
	t.s.mu.RLock()
	id, ok := t.s.pending[pendingKey{assetID, stage}]
	r := t.s.records[id]
	t.s.mu.RUnlock()
	if !ok {
		return StageRecord{}, false, nil
	}
	if _, staged := t.records[id]; staged {
		// superseded by a staged write that is no longer submitted
		return StageRecord{}, false, nil
	}
	return cloneRecord(r), true, nil
}

func (t *memTx) CreateStageRecord(ctx context.Context, r StageRecord) (StageRecord, error) {
	if _, err := t.GetAsset(ctx, r.AssetID); err != nil {
		return StageRecord{}, err
	}
	if r.Status == StatusSubmitted {
		if _, exists, err := t.PendingRecord(ctx, r.AssetID, r.Stage); err != nil {
			return StageRecord{}, err
		} else if exists {
			return StageRecord{}, fmt.Errorf("%w: stage %s of asset %d already submitted", ErrConflict, r.Stage, r.AssetID)
		}
	}
	r.ID = t.s.recordSeq.Add(1)
	r.CreatedAt = t.s.timestamp()
	r.UpdatedAt = r.CreatedAt
	t.records[r.ID] = cloneRecord(r)
	return r, nil
}

func (t *memTx) getRecord(ctx context.Context, id int64) (StageRecord, error) {
	if r, ok := t.records[id]; ok {
		return cloneRecord(r), nil
	}
	return t.s.GetStageRecord(ctx, id)
}

func (t *memTx) LockStageRecord(ctx context.Context, id int64) (StageRecord, error) {
	r, err := t.getRecord(ctx, id)
	if err != nil {
		return StageRecord{}, err
	}
	if err := t.lockAsset(ctx, r.AssetID); err != nil {
		return StageRecord{}, err
	}
	return t.getRecord(ctx, id)
}

func (t *memTx) ResolveStageRecord(ctx context.Context, r StageRecord) error {
	current, err := t.getRecord(ctx, r.ID)
	if err != nil {
		return err
	}
	if _, ok := t.held[current.AssetID]; !ok {
		return fmt.Errorf("stage record %d is not locked by this unit of work", r.ID)
	}
	current.Status = r.Status
	current.ApprovedBy = r.ApprovedBy
	current.RejectReason = r.RejectReason
	current.UpdatedAt = t.s.timestamp()
	t.records[r.ID] = cloneRecord(current)
	return nil
}

func (t *memTx) LatestMaterialVersion(_ context.Context, recordID int64, fileName string) (int, error) {
	t.s.mu.RLock()
	latest := t.s.versions[versionKey{recordID, fileName}]
	t.s.mu.RUnlock()
	for _, m := range t.materials {
		if m.StageRecordID == recordID && m.FileName == fileName && m.Version > latest {
			latest = m.Version
		}
	}
	return latest, nil
}

func (t *memTx) CreateMaterial(ctx context.Context, mat Material) (Material, error) {
	if _, err := t.getRecord(ctx, mat.StageRecordID); err != nil {
		return Material{}, err
	}
	latest, err := t.LatestMaterialVersion(ctx, mat.StageRecordID, mat.FileName)
	if err != nil {
		return Material{}, err
	}
	if mat.Version <= latest {
		return Material{}, fmt.Errorf("%w: version %d of %q already exists", ErrConflict, mat.Version, mat.FileName)
	}
	mat.ID = t.s.materialSeq.Add(1)
	mat.CreatedAt = t.s.timestamp()
	t.materials = append(t.materials, mat)
	return mat, nil
}

func (t *memTx) AppendAudit(_ context.Context, e AuditEntry) (AuditEntry, error) {
	e.ID = t.s.auditSeq.Add(1)
	e.CreatedAt = t.s.timestamp()
	t.audit = append(t.audit, e)
	return e, nil
}

func (m *Memory) GetOrganization(_ context.Context, id int64) (Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	org, ok := m.orgs[id]
	if !ok {
		return Organization{}, fmt.Errorf("%w: organization %d", ErrNotFound, id)
	}
	return org, nil
}

func (m *Memory) ListOrganizations(context.Context) ([]Organization, error) {
	m.mu.RLock()
	out := make([]Organization, 0, len(m.orgs))
	for _, org := range m.orgs {
		out = append(out, org)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) GetUser(_ context.Context, id int64) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return u, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[username]
	if !ok {
		return User{}, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	return m.users[id], nil
}

func (m *Memory) GetAsset(_ context.Context, id int64) (Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return Asset{}, fmt.Errorf("%w: asset %d", ErrNotFound, id)
	}
	return a, nil
}

func (m *Memory) ListAssets(_ context.Context, f AssetFilter) ([]Asset, error) {
	out := []Asset{}
	if f.Scope.Empty() {
		return out, nil
	}
	m.mu.RLock()
	for _, a := range m.assets {
		if !f.Scope.All && a.OrganizationID != f.Scope.OrganizationID {
			continue
		}
		if f.Stage != "" && a.CurrentStage != f.Stage {
			continue
		}
		out = append(out, a)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetStageRecord(_ context.Context, id int64) (StageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return StageRecord{}, fmt.Errorf("%w: stage record %d", ErrNotFound, id)
	}
	return cloneRecord(r), nil
}

func (m *Memory) ListStageRecords(_ context.Context, assetID int64) ([]StageRecord, error) {
	return m.collectRecords(func(r StageRecord) bool { return r.AssetID == assetID }), nil
}

func (m *Memory) ListPendingRecords(context.Context) ([]StageRecord, error) {
	return m.collectRecords(func(r StageRecord) bool { return r.Status == StatusSubmitted }), nil
}

func (m *Memory) collectRecords(match func(StageRecord) bool) []StageRecord {
	out := []StageRecord{}
	m.mu.RLock()
	for _, r := range m.records {
		if match(r) {
			out = append(out, cloneRecord(r))
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) GetMaterial(_ context.Context, id int64) (Material, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mat, ok := m.materials[id]
	if !ok {
		return Material{}, fmt.Errorf("%w: material %d", ErrNotFound, id)
	}
	return mat, nil
}

func (m *Memory) ListMaterials(_ context.Context, recordID int64) ([]Material, error) {
	out := []Material{}
	m.mu.RLock()
	for _, mat := range m.materials {
		if mat.StageRecordID == recordID {
			out = append(out, mat)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) ListAudit(_ context.Context, f AuditFilter) ([]AuditEntry, error) {
	f = f.Normalize()
	out := []AuditEntry{}
	skipped := 0
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.audit) - 1; i >= 0 && len(out) < f.Limit; i-- {
		e := m.audit[i]
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.ResourceType != "" && e.ResourceType != f.ResourceType {
			continue
		}
		if f.ActorID > 0 && e.ActorID != f.ActorID {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func cloneRecord(r StageRecord) StageRecord {
	if r.RejectReason != nil {
		reason := *r.RejectReason
		r.RejectReason = &reason
	}
	return r
}

// keyedLocks hands out one exclusive lock per key. Entries are dropped once
// no holder or waiter references them.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func (k *keyedLocks) lock(ctx context.Context, key int64) error {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.mu.Lock()
		k.drop(key, l)
		k.mu.Unlock()
		return ctx.Err()
	}
}

func (k *keyedLocks) unlock(key int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		return
	}
	<-l.ch
	k.drop(key, l)
}

func (k *keyedLocks) drop(key int64, l *keyedLock) {
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}
