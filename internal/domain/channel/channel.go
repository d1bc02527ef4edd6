package channel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/nxx-sync/nxx/internal/domain"
	"github.com/nxx-sync/nxx/internal/domain/filter"
)

// PartitionCount is the fixed number of shards a channel's device set is split across.
const PartitionCount = 16

// Partition assigns a device to a shard. It depends only on the device id, so a device
// lands in the same partition number for every channel it joins.
func Partition(deviceID string) int {
	return int(murmur3.Sum32([]byte(deviceID)) % PartitionCount)
}

// PartitionHex renders a partition number as a single lowercase hex digit.
func PartitionHex(p int) string {
	return strconv.FormatInt(int64(p), 16)
}

// ParsePartition reverses PartitionHex.
func ParsePartition(s string) (int, error) {
	p, err := strconv.ParseInt(s, 16, 0)
	if err != nil || p < 0 || p >= PartitionCount {
		return 0, fmt.Errorf("invalid partition %q", s)
	}
	return int(p), nil
}

// Channel identifies a subscription: an application, optionally narrowed to a model,
// a user and a filter. A filtered channel is addressed by its filter's fingerprint.
type Channel struct {
	appID       string
	model       string
	userID      string
	fingerprint string
	filter      []byte
}

// New creates an unfiltered channel. model and userID may be empty.
func New(appID, model, userID string) (Channel, error) {
	if appID == "" {
		return Channel{}, fmt.Errorf("channel application is required")
	}
	for _, part := range []string{appID, model, userID} {
		if strings.Contains(part, ":") {
			return Channel{}, fmt.Errorf("channel component %q must not contain ':'", part)
		}
	}
	return Channel{appID: appID, model: model, userID: userID}, nil
}

// WithFilter returns a copy of c narrowed by a filter expression.
func (c Channel) WithFilter(expr map[string]any) (Channel, error) {
	if c.model == "" {
		return Channel{}, fmt.Errorf("filtered channel requires a model")
	}
	canon, err := filter.Canonical(expr)
	if err != nil {
		return Channel{}, err
	}
	return c.withCanonical(canon), nil
}

// WithCanonicalFilter narrows c by a filter body already in canonical form,
// as read back from the filter registry.
func (c Channel) WithCanonicalFilter(body []byte) Channel {
	return c.withCanonical(body)
}

func (c Channel) withCanonical(canon []byte) Channel {
	c.filter = canon
	c.fingerprint = filter.FingerprintCanonical(canon)
	return c
}

// AppID returns the application component.
func (c Channel) AppID() string { return c.appID }

// Model returns the model component ("" when absent).
func (c Channel) Model() string { return c.model }

// UserID returns the user component ("" when absent).
func (c Channel) UserID() string { return c.userID }

// Fingerprint returns the filter fingerprint ("" when unfiltered).
func (c Channel) Fingerprint() string { return c.fingerprint }

// Filter returns the canonical filter body (nil when unfiltered).
func (c Channel) Filter() []byte { return c.filter }

// HasFilter reports whether the channel is narrowed by a filter.
func (c Channel) HasFilter() bool { return c.fingerprint != "" }

// Base returns the channel without its filter component.
func (c Channel) Base() Channel {
	c.filter = nil
	c.fingerprint = ""
	return c
}

// String renders the channel components in key order.
func (c Channel) String() string { return c.suffix(true) }

func (c Channel) suffix(withFilter bool) string {
	var b strings.Builder
	b.WriteString(c.appID)
	if c.model != "" {
		b.WriteString(":model:")
		b.WriteString(c.model)
	}
	if c.userID != "" {
		b.WriteString(":user:")
		b.WriteString(c.userID)
	}
	if withFilter && c.fingerprint != "" {
		b.WriteString(":filter:")
		b.WriteString(c.fingerprint)
	}
	return b.String()
}

// Key layout:
//
//	nxx:subscription:{channel}:p{partitionHex}   device set of one shard
//	nxx:subscription-partitions:{channel}        set of non-empty partitions
//	nxx:subscription-filters:{channel w/o filter} fingerprint -> canonical filter body

// ShardKey returns the key of one partition's device set.
func (c Channel) ShardKey(partition int) string {
	return domain.KeyPrefix + "subscription:" + c.suffix(true) + ":p" + PartitionHex(partition)
}

// PartitionIndexKey returns the key of the channel's non-empty partition set.
func (c Channel) PartitionIndexKey() string {
	return domain.KeyPrefix + "subscription-partitions:" + c.suffix(true)
}

// FilterRegistryKey returns the key of the filter registry shared by every filtered
// channel on the same base.
func (c Channel) FilterRegistryKey() string {
	return domain.KeyPrefix + "subscription-filters:" + c.suffix(false)
}
