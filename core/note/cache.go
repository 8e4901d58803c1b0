package note

import (
	"context"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

const (
	entryPrefix    = "entry:"
	snapshotPrefix = "snapshot:"
)

// Grades maps student IDs to values.
type Grades map[string]float64

func (g Grades) clone() Grades {
	c := make(Grades, len(g))
	for k, v := range g {
		c[k] = v
	}
	return c
}

type snapshot struct {
	Existed bool   `cbor:"1,keyasint"`
	Grades  Grades `cbor:"2,keyasint"`
}

// GradeCache is the optimistic view of published grades. Apply changes an entry
// at once and keeps its previous state until Commit or Rollback. Entries and
// snapshots are persisted as CBOR so a crash between Apply and Commit can be
// undone by Recover.
type GradeCache struct {
	store Snapshots
	enc   cbor.EncMode

	mu      sync.Mutex
	entries map[string]Grades
}

func NewGradeCache(store Snapshots) (*GradeCache, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, errors.Wrap(err, "creating cbor encoder")
	}
	return &GradeCache{store: store, enc: enc, entries: make(map[string]Grades)}, nil
}

// Get returns a copy of the entry.
func (c *GradeCache) Get(ctx context.Context, key string) (Grades, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, _, err := c.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return g.clone(), nil
}

func (c *GradeCache) load(ctx context.Context, key string) (Grades, bool, error) {
	if g, ok := c.entries[key]; ok {
		return g, true, nil
	}
	payload, ok, err := c.store.GetSnapshot(ctx, entryPrefix+key)
	if err != nil || !ok {
		return Grades{}, false, err
	}
	var g Grades
	if err = cbor.Unmarshal(payload, &g); err != nil {
		return nil, false, errors.Wrapf(err, "decoding cache entry %s", key)
	}
	c.entries[key] = g
	return g, true, nil
}

func (c *GradeCache) save(ctx context.Context, key string, g Grades) error {
	payload, err := c.enc.Marshal(g)
	if err != nil {
		return errors.Wrapf(err, "encoding cache entry %s", key)
	}
	if err = c.store.PutSnapshot(ctx, entryPrefix+key, payload); err != nil {
		return err
	}
	c.entries[key] = g
	return nil
}

// Apply snapshots the entry then mutates it. A pending snapshot is kept, so the
// oldest state wins when Apply is called twice before Commit.
func (c *GradeCache) Apply(ctx context.Context, key string, mutate func(g Grades)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, existed, err := c.load(ctx, key)
	if err != nil {
		return err
	}
	if _, pending, err := c.store.GetSnapshot(ctx, snapshotPrefix+key); err != nil {
		return err
	} else if !pending {
		payload, err := c.enc.Marshal(snapshot{Existed: existed, Grades: current})
		if err != nil {
			return errors.Wrapf(err, "encoding snapshot %s", key)
		}
		if err = c.store.PutSnapshot(ctx, snapshotPrefix+key, payload); err != nil {
			return err
		}
	}

	next := current.clone()
	mutate(next)
	return c.save(ctx, key, next)
}

// Commit drops the snapshot, keeping the applied state.
func (c *GradeCache) Commit(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.DeleteSnapshot(ctx, snapshotPrefix+key)
}

// Rollback restores the entry as it was before the first uncommitted Apply.
func (c *GradeCache) Rollback(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollback(ctx, key)
}

func (c *GradeCache) rollback(ctx context.Context, key string) error {
	payload, ok, err := c.store.GetSnapshot(ctx, snapshotPrefix+key)
	if err != nil || !ok {
		return err
	}
	var snap snapshot
	if err = cbor.Unmarshal(payload, &snap); err != nil {
		return errors.Wrapf(err, "decoding snapshot %s", key)
	}
	if snap.Existed {
		if err = c.save(ctx, key, snap.Grades); err != nil {
			return err
		}
	} else {
		if err = c.store.DeleteSnapshot(ctx, entryPrefix+key); err != nil {
			return err
		}
		delete(c.entries, key)
	}
	return c.store.DeleteSnapshot(ctx, snapshotPrefix+key)
}

// Recover rolls back every entry left uncommitted. It returns the restored keys.
func (c *GradeCache) Recover(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys, err := c.store.SnapshotKeys(ctx, snapshotPrefix)
	if err != nil {
		return nil, err
	}
	restored := make([]string, 0, len(keys))
	for _, k := range keys {
		key := strings.TrimPrefix(k, snapshotPrefix)
		if err = c.rollback(ctx, key); err != nil {
			return restored, err
		}
		restored = append(restored, key)
	}
	return restored, nil
}

// Optimistic applies a note's grades to the cache before h runs and rolls them
// back when the publish fails.
func Optimistic(cache *GradeCache, h PublishHandler) PublishHandler {
	return func(ctx context.Context, n Note) (PublishResult, error) {
		key := n.CacheKey()
		err := cache.Apply(ctx, key, func(g Grades) {
			for _, d := range n.Details {
				g[d.StudentID] = d.Value
			}
		})
		if err != nil {
			return PublishResult{}, err
		}

		res, err := h(ctx, n)
		if err != nil || !res.Success {
			if rbErr := cache.Rollback(ctx, key); rbErr != nil {
				return res, errors.Wrap(rbErr, "rolling back optimistic grades")
			}
			return res, err
		}
		return res, cache.Commit(ctx, key)
	}
}
