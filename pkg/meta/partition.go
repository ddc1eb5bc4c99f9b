package meta

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rouse2617/NimbusStore/internal/logger"
	"github.com/rouse2617/NimbusStore/pkg/kv"
	"github.com/rouse2617/NimbusStore/pkg/meta/errors"
)

// PartitionConfig describes the inode range a partition owns.
type PartitionConfig struct {
	// StartInode, EndInode bound the owned range [StartInode, EndInode).
	StartInode InodeID
	EndInode   InodeID

	// SplitThreshold is the advisory live-object count above which
	// ShouldSplit reports true. Zero means the default.
	SplitThreshold uint64
}

// DefaultSplitThreshold is the advisory per-partition object ceiling.
const DefaultSplitThreshold uint64 = 1_000_000_000

// Partition owns one inode-id range, a KV sub-store, and read-through hot
// caches for inodes and dentries. All mutations are transactional: either
// every record of an operation lands or none do, and caches populate only
// after a successful commit.
type Partition struct {
	cfg   PartitionConfig
	store kv.Store

	cacheMu     sync.RWMutex
	inodeCache  map[InodeID]*InodeAttr
	dentryCache map[string]*Dentry

	// layoutLocks serialize read-modify-write layout updates per inode
	// (striped by id); see UpdateLayout. Service.UpdateSize takes the same
	// stripe for its size read-compare-write.
	layoutLocks [64]sync.Mutex

	countMu   sync.Mutex
	liveCount uint64
}

// NewPartition creates a partition over an already-open KV store.
func NewPartition(cfg PartitionConfig, store kv.Store) (*Partition, error) {
	if cfg.EndInode <= cfg.StartInode {
		return nil, errors.NewInvalidArgumentError(
			fmt.Sprintf("invalid inode range [%d, %d)", cfg.StartInode, cfg.EndInode))
	}
	if cfg.SplitThreshold == 0 {
		cfg.SplitThreshold = DefaultSplitThreshold
	}

	logger.SubInfo(logger.SubsysMeta, "partition initialized",
		"start_inode", uint64(cfg.StartInode), "end_inode", uint64(cfg.EndInode))

	return &Partition{
		cfg:         cfg,
		store:       store,
		inodeCache:  make(map[InodeID]*InodeAttr),
		dentryCache: make(map[string]*Dentry),
	}, nil
}

// Config returns the partition's range configuration.
func (p *Partition) Config() PartitionConfig {
	return p.cfg
}

// Owns reports whether the partition's range contains id.
func (p *Partition) Owns(id InodeID) bool {
	return id >= p.cfg.StartInode && id < p.cfg.EndInode
}

// Close releases the underlying KV store.
func (p *Partition) Close() error {
	return p.store.Close()
}

func dentryCacheKey(parent InodeID, name string) string {
	return fmt.Sprintf("%d/%s", parent, name)
}

// ============================================================================
// Lookups (cache-first, read-through)
// ============================================================================

// LookupInode returns the inode record for id, consulting the hot cache
// first and populating it on a successful store read.
func (p *Partition) LookupInode(ctx context.Context, id InodeID) (*InodeAttr, error) {
	p.cacheMu.RLock()
	if attr, ok := p.inodeCache[id]; ok {
		p.cacheMu.RUnlock()
		cached := *attr
		return &cached, nil
	}
	p.cacheMu.RUnlock()

	value, err := p.store.Get(ctx, InodeKey(id))
	if err == kv.ErrNotFound {
		return nil, errors.NewNotFoundError(fmt.Sprintf("inode %d", id), "inode")
	}
	if err != nil {
		return nil, errors.FromContextErr(err)
	}

	attr, err := DecodeInode(value)
	if err != nil {
		return nil, errors.NewIOError(err.Error())
	}

	p.cacheMu.Lock()
	p.inodeCache[id] = attr
	p.cacheMu.Unlock()

	result := *attr
	return &result, nil
}

// LookupDentry returns the entry (parent, name), cache-first.
func (p *Partition) LookupDentry(ctx context.Context, parent InodeID, name string) (*Dentry, error) {
	ck := dentryCacheKey(parent, name)

	p.cacheMu.RLock()
	if d, ok := p.dentryCache[ck]; ok {
		p.cacheMu.RUnlock()
		cached := *d
		return &cached, nil
	}
	p.cacheMu.RUnlock()

	value, err := p.store.Get(ctx, DentryKey(parent, name))
	if err == kv.ErrNotFound {
		return nil, errors.NewNotFoundError(name, "dentry")
	}
	if err != nil {
		return nil, errors.FromContextErr(err)
	}

	dentry, err := DecodeDentry(value)
	if err != nil {
		return nil, errors.NewIOError(err.Error())
	}

	p.cacheMu.Lock()
	p.dentryCache[ck] = dentry
	p.cacheMu.Unlock()

	result := *dentry
	return &result, nil
}

// ============================================================================
// Mutations (transactional; cache populated only after commit)
// ============================================================================

// CreateInode writes a fresh inode record. The id must belong to this
// partition's range and must not exist yet. The new inode starts with
// size 0, nlink 1, and mtime/ctime of now.
func (p *Partition) CreateInode(ctx context.Context, id InodeID, mode FileMode, uid, gid uint32) (*InodeAttr, error) {
	if !p.Owns(id) {
		return nil, errors.NewInvalidArgumentError(
			fmt.Sprintf("inode %d outside partition range [%d, %d)", id, p.cfg.StartInode, p.cfg.EndInode))
	}

	txn, err := p.store.Begin(ctx)
	if err != nil {
		return nil, errors.FromContextErr(err)
	}
	defer txn.Rollback()

	if _, err := txn.Get(InodeKey(id)); err == nil {
		return nil, errors.NewAlreadyExistsError(fmt.Sprintf("inode %d", id))
	} else if err != kv.ErrNotFound {
		return nil, errors.NewIOError(err.Error())
	}

	now := uint64(time.Now().Unix())
	attr := &InodeAttr{
		InodeID: id,
		Mode:    mode,
		UID:     uid,
		GID:     gid,
		Size:    0,
		Mtime:   now,
		Ctime:   now,
		Nlink:   1,
	}

	if err := txn.Put(InodeKey(id), EncodeInode(attr)); err != nil {
		return nil, errors.NewIOError(err.Error())
	}
	if err := txn.Commit(); err != nil {
		return nil, errors.NewIOError(err.Error())
	}

	p.cacheMu.Lock()
	cached := *attr
	p.inodeCache[id] = &cached
	p.cacheMu.Unlock()

	p.bumpLive(1)

	result := *attr
	return &result, nil
}

// PutInode overwrites an existing inode record inside one transaction.
// Attribute updates and size changes route through here.
func (p *Partition) PutInode(ctx context.Context, attr *InodeAttr) error {
	if !p.Owns(attr.InodeID) {
		return errors.NewInvalidArgumentError(
			fmt.Sprintf("inode %d outside partition range", attr.InodeID))
	}

	txn, err := p.store.Begin(ctx)
	if err != nil {
		return errors.FromContextErr(err)
	}
	defer txn.Rollback()

	if _, err := txn.Get(InodeKey(attr.InodeID)); err == kv.ErrNotFound {
		return errors.NewNotFoundError(fmt.Sprintf("inode %d", attr.InodeID), "inode")
	} else if err != nil {
		return errors.NewIOError(err.Error())
	}

	if err := txn.Put(InodeKey(attr.InodeID), EncodeInode(attr)); err != nil {
		return errors.NewIOError(err.Error())
	}
	if err := txn.Commit(); err != nil {
		return errors.NewIOError(err.Error())
	}

	p.cacheMu.Lock()
	cached := *attr
	p.inodeCache[attr.InodeID] = &cached
	p.cacheMu.Unlock()

	return nil
}

// CreateDentry links (parent, name) to inode. The parent must exist in this
// partition and be a directory; the name must be free.
func (p *Partition) CreateDentry(ctx context.Context, parent InodeID, name string, inode InodeID, typ FileType) error {
	if name == "" {
		return errors.NewInvalidArgumentError("dentry name must not be empty")
	}

	parentAttr, err := p.LookupInode(ctx, parent)
	if err != nil {
		return err
	}
	if !parentAttr.Mode.IsDir() {
		return errors.NewNotDirectoryError(fmt.Sprintf("inode %d", parent))
	}

	txn, err := p.store.Begin(ctx)
	if err != nil {
		return errors.FromContextErr(err)
	}
	defer txn.Rollback()

	key := DentryKey(parent, name)
	if _, err := txn.Get(key); err == nil {
		return errors.NewAlreadyExistsError(name)
	} else if err != kv.ErrNotFound {
		return errors.NewIOError(err.Error())
	}

	dentry := &Dentry{Name: name, InodeID: inode, Type: typ}
	if err := txn.Put(key, EncodeDentry(dentry)); err != nil {
		return errors.NewIOError(err.Error())
	}
	if err := txn.Commit(); err != nil {
		return errors.NewIOError(err.Error())
	}

	p.cacheMu.Lock()
	cached := *dentry
	p.dentryCache[dentryCacheKey(parent, name)] = &cached
	p.cacheMu.Unlock()

	p.bumpLive(1)
	return nil
}

// DeleteInode removes the inode record and its layout, evicting the cache.
func (p *Partition) DeleteInode(ctx context.Context, id InodeID) error {
	txn, err := p.store.Begin(ctx)
	if err != nil {
		return errors.FromContextErr(err)
	}
	defer txn.Rollback()

	if _, err := txn.Get(InodeKey(id)); err == kv.ErrNotFound {
		return errors.NewNotFoundError(fmt.Sprintf("inode %d", id), "inode")
	} else if err != nil {
		return errors.NewIOError(err.Error())
	}

	if err := txn.Delete(InodeKey(id)); err != nil {
		return errors.NewIOError(err.Error())
	}
	if err := txn.Delete(LayoutKey(id)); err != nil {
		return errors.NewIOError(err.Error())
	}
	if err := txn.Commit(); err != nil {
		return errors.NewIOError(err.Error())
	}

	p.cacheMu.Lock()
	delete(p.inodeCache, id)
	p.cacheMu.Unlock()

	p.bumpLive(-1)
	return nil
}

// DeleteDentry removes the entry (parent, name), evicting the cache.
func (p *Partition) DeleteDentry(ctx context.Context, parent InodeID, name string) error {
	txn, err := p.store.Begin(ctx)
	if err != nil {
		return errors.FromContextErr(err)
	}
	defer txn.Rollback()

	key := DentryKey(parent, name)
	if _, err := txn.Get(key); err == kv.ErrNotFound {
		return errors.NewNotFoundError(name, "dentry")
	} else if err != nil {
		return errors.NewIOError(err.Error())
	}

	if err := txn.Delete(key); err != nil {
		return errors.NewIOError(err.Error())
	}
	if err := txn.Commit(); err != nil {
		return errors.NewIOError(err.Error())
	}

	p.cacheMu.Lock()
	delete(p.dentryCache, dentryCacheKey(parent, name))
	p.cacheMu.Unlock()

	p.bumpLive(-1)
	return nil
}

// RenameDentry atomically moves an entry between two directories that both
// live in this partition: the new entry is created and the old one deleted
// in a single transaction.
func (p *Partition) RenameDentry(ctx context.Context, oldParent InodeID, oldName string, newParent InodeID, newName string) error {
	txn, err := p.store.Begin(ctx)
	if err != nil {
		return errors.FromContextErr(err)
	}
	defer txn.Rollback()

	oldKey := DentryKey(oldParent, oldName)
	value, err := txn.Get(oldKey)
	if err == kv.ErrNotFound {
		return errors.NewNotFoundError(oldName, "dentry")
	}
	if err != nil {
		return errors.NewIOError(err.Error())
	}

	src, err := DecodeDentry(value)
	if err != nil {
		return errors.NewIOError(err.Error())
	}

	newKey := DentryKey(newParent, newName)
	if _, err := txn.Get(newKey); err == nil {
		return errors.NewAlreadyExistsError(newName)
	} else if err != kv.ErrNotFound {
		return errors.NewIOError(err.Error())
	}

	moved := &Dentry{Name: newName, InodeID: src.InodeID, Type: src.Type}
	if err := txn.Put(newKey, EncodeDentry(moved)); err != nil {
		return errors.NewIOError(err.Error())
	}
	if err := txn.Delete(oldKey); err != nil {
		return errors.NewIOError(err.Error())
	}
	if err := txn.Commit(); err != nil {
		return errors.NewIOError(err.Error())
	}

	p.cacheMu.Lock()
	delete(p.dentryCache, dentryCacheKey(oldParent, oldName))
	cached := *moved
	p.dentryCache[dentryCacheKey(newParent, newName)] = &cached
	p.cacheMu.Unlock()

	return nil
}

// ListDentries returns every entry under parent in ascending name order.
func (p *Partition) ListDentries(ctx context.Context, parent InodeID) ([]Dentry, error) {
	pairs, err := p.store.Scan(ctx, DentryScanPrefix(parent), 0)
	if err != nil {
		return nil, errors.FromContextErr(err)
	}

	entries := make([]Dentry, 0, len(pairs))
	for _, pair := range pairs {
		dentry, err := DecodeDentry(pair.Value)
		if err != nil {
			return nil, errors.NewIOError(err.Error())
		}
		entries = append(entries, *dentry)
	}
	return entries, nil
}

// ============================================================================
// Layouts
// ============================================================================

// GetLayout returns the layout for an inode, or an empty layout with the
// default chunk size when none has been stored yet.
func (p *Partition) GetLayout(ctx context.Context, id InodeID) (*FileLayout, error) {
	value, err := p.store.Get(ctx, LayoutKey(id))
	if err == kv.ErrNotFound {
		return &FileLayout{InodeID: id, ChunkSize: DefaultChunkSize}, nil
	}
	if err != nil {
		return nil, errors.FromContextErr(err)
	}

	layout, err := DecodeLayout(value)
	if err != nil {
		return nil, errors.NewIOError(err.Error())
	}
	return layout, nil
}

// PutLayout stores the layout record for an inode.
func (p *Partition) PutLayout(ctx context.Context, layout *FileLayout) error {
	txn, err := p.store.Begin(ctx)
	if err != nil {
		return errors.FromContextErr(err)
	}
	defer txn.Rollback()

	if err := txn.Put(LayoutKey(layout.InodeID), EncodeLayout(layout)); err != nil {
		return errors.NewIOError(err.Error())
	}
	if err := txn.Commit(); err != nil {
		return errors.NewIOError(err.Error())
	}
	return nil
}

// UpdateLayout applies fn to the inode's layout as one atomic step: the
// record is re-read inside the transaction, mutated, and stored by the same
// commit. Updates for the same inode are serialized by a striped lock, so
// concurrent writers never lose each other's slices.
func (p *Partition) UpdateLayout(ctx context.Context, id InodeID, fn func(*FileLayout) error) error {
	mu := &p.layoutLocks[uint64(id)%uint64(len(p.layoutLocks))]
	mu.Lock()
	defer mu.Unlock()

	txn, err := p.store.Begin(ctx)
	if err != nil {
		return errors.FromContextErr(err)
	}
	defer txn.Rollback()

	layout := &FileLayout{InodeID: id, ChunkSize: DefaultChunkSize}
	value, err := txn.Get(LayoutKey(id))
	if err == nil {
		if layout, err = DecodeLayout(value); err != nil {
			return errors.NewIOError(err.Error())
		}
	} else if err != kv.ErrNotFound {
		return errors.NewIOError(err.Error())
	}

	if err := fn(layout); err != nil {
		return err
	}

	if err := txn.Put(LayoutKey(id), EncodeLayout(layout)); err != nil {
		return errors.NewIOError(err.Error())
	}
	if err := txn.Commit(); err != nil {
		return errors.NewIOError(err.Error())
	}
	return nil
}

// ============================================================================
// Split (advisory)
// ============================================================================

func (p *Partition) bumpLive(delta int64) {
	p.countMu.Lock()
	defer p.countMu.Unlock()
	if delta < 0 {
		if p.liveCount > 0 {
			p.liveCount--
		}
		return
	}
	p.liveCount += uint64(delta)
}

// LiveCount returns the partition's live-object counter.
func (p *Partition) LiveCount() uint64 {
	p.countMu.Lock()
	defer p.countMu.Unlock()
	return p.liveCount
}

// ShouldSplit reports whether the partition has outgrown its advisory
// threshold. Splitting is advisory: nothing in the current scope acts on it
// automatically.
func (p *Partition) ShouldSplit() bool {
	return p.LiveCount() > p.cfg.SplitThreshold
}

// SplitRanges returns the two half-range configs a split would produce.
// The concrete rebalance protocol is out of scope; callers own data
// migration.
func (p *Partition) SplitRanges() (PartitionConfig, PartitionConfig) {
	mid := p.cfg.StartInode + (p.cfg.EndInode-p.cfg.StartInode)/2
	lower := PartitionConfig{StartInode: p.cfg.StartInode, EndInode: mid, SplitThreshold: p.cfg.SplitThreshold}
	upper := PartitionConfig{StartInode: mid, EndInode: p.cfg.EndInode, SplitThreshold: p.cfg.SplitThreshold}
	return lower, upper
}
