package fault

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestController_FirstFaultWins(t *testing.T) {
	first := errors.New("spawn failed")
	second := errors.New("read failed")

	var cancels atomic.Int32
	c := New(func() { cancels.Add(1) })

	c.Report(first)
	c.Report(second)

	assert.Equal(t, first, c.Err())
	assert.Equal(t, int32(1), cancels.Load(), "cancel broadcast fires exactly once")
}

func TestController_NilReportIsNoop(t *testing.T) {
	c := New(func() { t.Fatal("cancel must not fire") })

	c.Report(nil)

	assert.NoError(t, c.Err())
}

func TestController_NilCancel(t *testing.T) {
	c := New(nil)

	c.Report(errors.New("boom"))

	assert.Error(t, c.Err())
}

func TestController_ConcurrentReports(t *testing.T) {
	var cancels atomic.Int32
	c := New(func() { cancels.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Report(errors.New("fault"))
		}()
	}
	wg.Wait()

	assert.Error(t, c.Err())
	assert.Equal(t, int32(1), cancels.Load())
}
