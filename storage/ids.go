package storage

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const instanceBits = 10

// MaxInstance is the largest instance number an IDSource accepts.
const MaxInstance = 1<<instanceBits - 1

// IDSource issues list and card ids for a backend shared by several service
// instances. An id is the clock in microseconds shifted left by instanceBits
// with the instance number in the low bits, so ids from one source strictly
// increase and sources with distinct instances never collide.
type IDSource struct {
	instance int64
	last     atomic.Int64
}

// NewIDSource creates a source for instance. A negative instance picks a
// random one; deployments running more than one instance should assign
// distinct numbers instead.
func NewIDSource(instance int) (*IDSource, error) {
	if instance > MaxInstance {
		return nil, fmt.Errorf("instance %d out of range [0, %d]", instance, MaxInstance)
	}
	if instance < 0 {
		instance = int(uuid.New().ID() % (MaxInstance + 1))
	}
	return &IDSource{instance: int64(instance)}, nil
}

// Instance reports the instance number stamped into every id.
func (s *IDSource) Instance() int {
	return int(s.instance)
}

func (s *IDSource) Next() int64 {
	for {
		now := time.Now().UnixMicro()
		last := s.last.Load()
		if now <= last {
			now = last + 1
		}
		if s.last.CompareAndSwap(last, now) {
			return now<<instanceBits | s.instance
		}
	}
}
