package accountant

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamplesReachSink(t *testing.T) {
	var mu sync.Mutex
	var got []Sample
	sink := SinkFunc(func(s Sample) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	a := New(sink, 10000)
	a.Record("store.rows-ingested", 128)
	a.Record("store.partitions-sealed", 1)
	a.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 2)
	assert.Equal(t, "store.rows-ingested", got[0].Name)
	assert.Equal(t, float64(128), got[0].Value)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestRecordNeverBlocks(t *testing.T) {
	// No sink drains while we flood far beyond the buffer; Record must
	// drop instead of blocking.
	a := New(SinkFunc(func(Sample) {}), 1)
	for i := 0; i < 10000; i++ {
		a.Record("noisy", float64(i))
	}
	a.Close()
}
