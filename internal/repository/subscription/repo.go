package subscription

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nxx-sync/nxx/internal/domain"
	"github.com/nxx-sync/nxx/internal/domain/channel"
)

// store is the consumer interface for subscriptions (ISP).
type store interface {
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
}

// Repo is the partitioned subscription store.
// A channel's devices are spread over channel.PartitionCount shard sets; a per-channel
// partition index lists the non-empty shards and a per-base registry maps filter
// fingerprints to their canonical bodies.
type Repo struct {
	store store
}

// New creates a subscription repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// AddDevice subscribes deviceID to ch. Every write is idempotent.
func (r *Repo) AddDevice(ctx context.Context, ch channel.Channel, deviceID string) error {
	p := channel.Partition(deviceID)

	if _, err := r.store.SAdd(ctx, ch.ShardKey(p), deviceID); err != nil {
		return fmt.Errorf("add %s to %s: %w", deviceID, ch, err)
	}
	if _, err := r.store.SAdd(ctx, ch.PartitionIndexKey(), channel.PartitionHex(p)); err != nil {
		return fmt.Errorf("index partition %d of %s: %w", p, ch, err)
	}
	if ch.HasFilter() {
		if err := r.registerFilter(ctx, ch); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDevice unsubscribes deviceID from ch and returns domain.ErrDeviceNotConnected
// when it was not a member. The partition leaves the index once its shard is empty, and
// the filter leaves the registry once the filtered channel has no partitions left.
func (r *Repo) RemoveDevice(ctx context.Context, ch channel.Channel, deviceID string) error {
	p := channel.Partition(deviceID)
	shard := ch.ShardKey(p)

	removed, err := r.store.SRem(ctx, shard, deviceID)
	if err != nil {
		return fmt.Errorf("remove %s from %s: %w", deviceID, ch, err)
	}
	if removed == 0 {
		return domain.ErrDeviceNotConnected
	}

	if err := r.pruneIndex(ctx, ch, p); err != nil {
		return err
	}
	if ch.HasFilter() {
		return r.pruneFilter(ctx, ch)
	}
	return nil
}

// pruneIndex drops partition p from the index when its shard is empty. A device added to
// the shard between the check and the removal is caught by the re-check afterwards.
func (r *Repo) pruneIndex(ctx context.Context, ch channel.Channel, p int) error {
	shard := ch.ShardKey(p)
	hex := channel.PartitionHex(p)

	n, err := r.store.SCard(ctx, shard)
	if err != nil {
		return fmt.Errorf("count %s: %w", shard, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.store.SRem(ctx, ch.PartitionIndexKey(), hex); err != nil {
		return fmt.Errorf("unindex partition %d of %s: %w", p, ch, err)
	}

	n, err = r.store.SCard(ctx, shard)
	if err != nil {
		return fmt.Errorf("count %s: %w", shard, err)
	}
	if n > 0 {
		if _, err := r.store.SAdd(ctx, ch.PartitionIndexKey(), hex); err != nil {
			return fmt.Errorf("reindex partition %d of %s: %w", p, ch, err)
		}
	}
	return nil
}

// pruneFilter drops the filter from the registry when the filtered channel is empty.
func (r *Repo) pruneFilter(ctx context.Context, ch channel.Channel) error {
	empty, err := r.isEmpty(ctx, ch)
	if err != nil || !empty {
		return err
	}
	if err := r.store.HDel(ctx, ch.FilterRegistryKey(), ch.Fingerprint()); err != nil {
		return fmt.Errorf("unregister filter %s: %w", ch.Fingerprint(), err)
	}

	empty, err = r.isEmpty(ctx, ch)
	if err != nil || empty {
		return err
	}
	return r.registerFilter(ctx, ch)
}

func (r *Repo) isEmpty(ctx context.Context, ch channel.Channel) (bool, error) {
	n, err := r.store.SCard(ctx, ch.PartitionIndexKey())
	if err != nil {
		return false, fmt.Errorf("count partitions of %s: %w", ch, err)
	}
	return n == 0, nil
}

func (r *Repo) registerFilter(ctx context.Context, ch channel.Channel) error {
	err := r.store.HSet(ctx, ch.FilterRegistryKey(), map[string]string{ch.Fingerprint(): string(ch.Filter())})
	if err != nil {
		return fmt.Errorf("register filter %s: %w", ch.Fingerprint(), err)
	}
	return nil
}

// GetAllDevices returns every device subscribed to ch, sorted.
// Only partitions named in the index are read, concurrently.
func (r *Repo) GetAllDevices(ctx context.Context, ch channel.Channel) ([]string, error) {
	indexed, err := r.store.SMembers(ctx, ch.PartitionIndexKey())
	if err != nil {
		return nil, fmt.Errorf("read partition index of %s: %w", ch, err)
	}
	if len(indexed) == 0 {
		return []string{}, nil
	}

	partitions := make([]int, len(indexed))
	for i, hex := range indexed {
		p, err := channel.ParsePartition(hex)
		if err != nil {
			return nil, fmt.Errorf("partition index of %s: %w", ch, err)
		}
		partitions[i] = p
	}

	shards := make([][]string, len(partitions))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range partitions {
		g.Go(func() error {
			members, err := r.store.SMembers(gctx, ch.ShardKey(p))
			if err != nil {
				return fmt.Errorf("read partition %d of %s: %w", p, ch, err)
			}
			shards[i] = members
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return union(shards), nil
}

// GetAllFilters returns fingerprint -> canonical filter body for every filter
// registered on ch's base (ch's own filter component is ignored).
func (r *Repo) GetAllFilters(ctx context.Context, ch channel.Channel) (map[string][]byte, error) {
	key := ch.Base().FilterRegistryKey()
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read filter registry of %s: %w", ch.Base(), err)
	}
	out := make(map[string][]byte, len(m))
	for fp, body := range m {
		out[fp] = []byte(body)
	}
	return out, nil
}

func union(sets [][]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, m := range set {
			seen[m] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
