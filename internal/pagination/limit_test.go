package pagination

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"sensorviz/internal/ingest"
)

type recorder struct {
	mu      sync.Mutex
	queries []ingest.Query
}

func (r *recorder) Trigger(q ingest.Query) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	return uint64(len(r.queries))
}

func TestSelectIssuesOneQueryPerChange(t *testing.T) {
	rec := &recorder{}
	c, err := NewLimitController(nil, 25, rec)
	require.NoError(t, err)
	require.Equal(t, []int{10, 25, 50, 100}, c.Options())

	require.Equal(t, uint64(1), c.Mount())

	issued, err := c.Select(10)
	require.NoError(t, err)
	require.True(t, issued)
	issued, err = c.Select(50)
	require.NoError(t, err)
	require.True(t, issued)

	require.Equal(t, []ingest.Query{
		ingest.LimitQuery(25),
		ingest.LimitQuery(10),
		ingest.LimitQuery(50),
	}, rec.queries)
	require.Equal(t, 50, c.Current())
	require.Equal(t, ingest.LimitQuery(50), c.Query())
}

func TestSelectSameValueIsNoop(t *testing.T) {
	rec := &recorder{}
	c, err := NewLimitController([]int{5, 20}, 5, rec)
	require.NoError(t, err)

	issued, err := c.Select(5)
	require.NoError(t, err)
	require.False(t, issued)
	require.Empty(t, rec.queries)
}

func TestSelectRejectsUnknownOption(t *testing.T) {
	rec := &recorder{}
	c, err := NewLimitController(nil, 10, rec)
	require.NoError(t, err)

	_, err = c.Select(33)
	require.ErrorIs(t, err, ingest.ErrInvalidQuery)
	require.Equal(t, 10, c.Current())
	require.Empty(t, rec.queries)
}

func TestNewLimitControllerValidates(t *testing.T) {
	_, err := NewLimitController([]int{10, 50}, 25, &recorder{})
	require.Error(t, err)
	_, err = NewLimitController([]int{0, 10}, 10, &recorder{})
	require.Error(t, err)
}

func TestConcurrentSelectLastQueryMatchesCurrent(t *testing.T) {
	for i := 0; i < 200; i++ {
		rec := &recorder{}
		c, err := NewLimitController(nil, 10, rec)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for _, n := range []int{25, 50, 100} {
			n := n
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Select(n)
				require.NoError(t, err)
			}()
		}
		wg.Wait()

		require.Len(t, rec.queries, 3)
		require.Equal(t, c.Query(), rec.queries[len(rec.queries)-1])
	}
}
