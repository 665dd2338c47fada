package analysis

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

func TestDetectDuplicates(t *testing.T) {
	t.Run("scenario", func(t *testing.T) {
		dups := DetectDuplicates([]domain.Txid{"A", "B", "A"})
		assert.Equal(t, domain.DuplicateMap{"A": 2}, dups)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, DetectDuplicates(nil))
		assert.Empty(t, DetectDuplicates([]domain.Txid{}))
	})

	t.Run("all unique", func(t *testing.T) {
		assert.Empty(t, DetectDuplicates([]domain.Txid{"A", "B", "C"}))
	})
}

func TestDetectDuplicatesCountsMatchInput(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := []domain.Txid{"a", "b", "c", "d", "e", "f", "g"}

	for round := 0; round < 200; round++ {
		seq := make([]domain.Txid, rng.Intn(30))
		for i := range seq {
			seq[i] = pool[rng.Intn(len(pool))]
		}

		occurrences := make(map[domain.Txid]int)
		for _, s := range seq {
			occurrences[s]++
		}

		dups := DetectDuplicates(seq)
		for txid, n := range dups {
			assert.GreaterOrEqual(t, n, 2)
			assert.Equal(t, occurrences[txid], n)
		}
		for txid, n := range occurrences {
			if n > 1 {
				assert.Contains(t, dups, txid)
			} else {
				assert.NotContains(t, dups, txid)
			}
		}
	}
}
