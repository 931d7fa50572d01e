package feature

// DefaultBufferCapacity is the default per-subject snapshot buffer size.
const DefaultBufferCapacity = 1000

// Buffer is a bounded FIFO buffer of snapshots. When full, appending evicts
// the oldest entry. Not safe for concurrent use; callers serialize per
// subject.
type Buffer struct {
	snapshots []Snapshot
	capacity  int
}

// NewBuffer creates a buffer with the given capacity. Capacities below 1
// fall back to DefaultBufferCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		snapshots: make([]Snapshot, 0, capacity),
		capacity:  capacity,
	}
}

// Append adds a snapshot, evicting the oldest if the buffer is full.
func (b *Buffer) Append(s Snapshot) {
	if len(b.snapshots) >= b.capacity {
		copy(b.snapshots, b.snapshots[1:])
		b.snapshots = b.snapshots[:len(b.snapshots)-1]
	}
	b.snapshots = append(b.snapshots, s)
}

// Len returns the number of buffered snapshots.
func (b *Buffer) Len() int { return len(b.snapshots) }

// Capacity returns the maximum number of snapshots retained.
func (b *Buffer) Capacity() int { return b.capacity }

// All returns the buffered snapshots oldest-first. The returned slice is a
// copy and safe to retain.
func (b *Buffer) All() []Snapshot {
	out := make([]Snapshot, len(b.snapshots))
	copy(out, b.snapshots)
	return out
}

// Filter returns the snapshots matching keep, oldest-first.
func (b *Buffer) Filter(keep func(*Snapshot) bool) []Snapshot {
	var out []Snapshot
	for i := range b.snapshots {
		if keep(&b.snapshots[i]) {
			out = append(out, b.snapshots[i])
		}
	}
	return out
}

// Latest returns the most recent snapshot, or nil if the buffer is empty.
func (b *Buffer) Latest() *Snapshot {
	if len(b.snapshots) == 0 {
		return nil
	}
	return &b.snapshots[len(b.snapshots)-1]
}
