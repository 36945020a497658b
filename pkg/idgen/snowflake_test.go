package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflake_WorkerRange(t *testing.T) {
	_, err := NewSnowflake(-1)
	assert.Error(t, err)
	_, err = NewSnowflake(maxWorkerID + 1)
	assert.Error(t, err)

	s, err := NewSnowflake(maxWorkerID)
	require.NoError(t, err)
	assert.Equal(t, int64(maxWorkerID), (s.Generate()>>workerIDShift)&maxWorkerID)
}

func TestSnowflake_UniqueUnderConcurrency(t *testing.T) {
	s, err := NewSnowflake(7)
	require.NoError(t, err)

	const workers, perWorker = 8, 2000
	ids := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ids <- s.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestGenerateNumbers(t *testing.T) {
	assert.True(t, strings.HasPrefix(GeneratePayoutNo(), "PAY"))
	assert.True(t, strings.HasPrefix(GenerateRefundNo(), "REF"))
	assert.True(t, strings.HasPrefix(GenerateTransactionNo(), "TXN"))
	assert.NotEqual(t, GenerateRefundNo(), GenerateRefundNo())
}
