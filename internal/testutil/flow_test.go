package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedViewGenerator_ReturnsSameToken(t *testing.T) {
	gen := NewFixedViewGenerator("test-view-123")

	assert.Equal(t, "test-view-123", gen.Generate())
	assert.Equal(t, "test-view-123", gen.Generate())
}

func TestFixedViewGenerator_EmptyTokenDefault(t *testing.T) {
	gen := NewFixedViewGenerator("")
	assert.Equal(t, "test-view-default", gen.Generate())
}

func TestFixedViewGenerator_ConcurrentUse(t *testing.T) {
	gen := NewFixedViewGenerator("shared")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "shared", gen.Generate())
			}
		}()
	}
	wg.Wait()
}
