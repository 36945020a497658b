package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Snowflake layout, 64 bits:
//
//	0 | 41 bit millisecond timestamp | 10 bit worker id | 12 bit sequence
//
// Transfer and journal numbers are built from it so they stay unique across
// server instances as long as every instance runs with its own worker id.

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	mu               sync.Mutex
	defaultGenerator *Snowflake
)

func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, errors.Errorf("worker id must be within 0-%d, got %d", maxWorkerID, workerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init replaces the package generator. It is meant to be called once at
// startup, before any number is generated.
func Init(workerID int64) error {
	s, err := NewSnowflake(workerID)
	if err != nil {
		return err
	}
	mu.Lock()
	defaultGenerator = s
	mu.Unlock()
	return nil
}

func generator() *Snowflake {
	mu.Lock()
	defer mu.Unlock()
	if defaultGenerator == nil {
		defaultGenerator = &Snowflake{workerID: 1}
	}
	return defaultGenerator
}

func NextID() int64 {
	return generator().Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted, spin to the next millisecond
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// number formats prefix + yyyyMMddHHmmss + the full snowflake id, e.g.
// PAY20240115143052_123456789012345.
func number(prefix string) string {
	id := NextID()
	return fmt.Sprintf("%s%s_%d", prefix, time.Now().Format("20060102150405"), id)
}

// GeneratePayoutNo numbers an owner withdrawal.
func GeneratePayoutNo() string {
	return number("PAY")
}

// GenerateRefundNo numbers a contributor refund.
func GenerateRefundNo() string {
	return number("REF")
}

// GenerateTransactionNo numbers a wallet journal entry.
func GenerateTransactionNo() string {
	return number("TXN")
}
