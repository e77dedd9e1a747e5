package outcome

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scratch_service/internal/catalog"
)

func testPrizes(n int) []catalog.Prize {
	prizes := make([]catalog.Prize, n)
	for i := range prizes {
		prizes[i] = catalog.Prize{
			ID:    fmt.Sprintf("prize-%d", i),
			Name:  fmt.Sprintf("Prize %d", i),
			Value: decimal.NewFromInt(int64(5 * (i + 1))),
			Rtp:   10,
		}
	}
	return prizes
}

func TestPositionsEmptyPool(t *testing.T) {
	g := NewGenerator(rand.NewSource(1))
	_, err := g.Positions(50, nil)
	require.ErrorIs(t, err, ErrEmptyPrizePool)
}

func TestPositionsForcedWin(t *testing.T) {
	g := NewGenerator(rand.NewSource(7))
	prizes := testPrizes(6)

	for i := 0; i < 500; i++ {
		positions, err := g.Positions(100, prizes)
		require.NoError(t, err)
		require.Len(t, positions, GridSize)

		counts := CountOccurrences(positions)
		triples := 0
		for id, n := range counts {
			if n >= MatchCount {
				triples++
				assert.Equal(t, MatchCount, n, "winning id %s should occupy exactly 3 cells", id)
			}
		}
		require.Equal(t, 1, triples, "exactly one winning id expected: %v", counts)
	}
}

func TestPositionsForcedLoss(t *testing.T) {
	g := NewGenerator(rand.NewSource(11))
	prizes := testPrizes(6)

	for i := 0; i < 500; i++ {
		positions, err := g.Positions(0, prizes)
		require.NoError(t, err)
		require.Len(t, positions, GridSize)

		for id, n := range CountOccurrences(positions) {
			require.Less(t, n, MatchCount, "losing grid must not contain a triple of %s", id)
		}
		_, won := WinningPrizeID(positions)
		require.False(t, won)
	}
}

func TestPositionsWellFormed(t *testing.T) {
	g := NewGenerator(rand.NewSource(23))
	prizes := testPrizes(8)

	for i := 0; i < 5000; i++ {
		positions, err := g.Positions(40, prizes)
		require.NoError(t, err)

		triples := 0
		for _, n := range CountOccurrences(positions) {
			if n >= MatchCount {
				require.Equal(t, MatchCount, n)
				triples++
			}
		}
		require.LessOrEqual(t, triples, 1, "at most one winning id per grid")
	}
}

func TestRtpConvergence(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}

	g := NewGenerator(rand.NewSource(42))
	prizes := testPrizes(6)

	const n = 100_000
	const rtp = 30.0
	wins := 0
	for i := 0; i < n; i++ {
		positions, err := g.Positions(rtp, prizes)
		require.NoError(t, err)
		if _, won := WinningPrizeID(positions); won {
			wins++
		}
	}

	got := float64(wins) / n
	if math.Abs(got-rtp/100) > 0.02 {
		t.Fatalf("win rate %.4f not within 2%% of %.4f", got, rtp/100)
	}
}

func TestCheaperPrizesFavored(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}

	g := NewGenerator(rand.NewSource(99))
	prizes := []catalog.Prize{
		{ID: "cheap", Value: decimal.NewFromInt(1), Rtp: 10},
		{ID: "mid", Value: decimal.NewFromInt(10), Rtp: 10},
		{ID: "rare", Value: decimal.NewFromInt(100), Rtp: 10},
		{ID: "filler-a", Value: decimal.NewFromInt(2), Rtp: 10},
		{ID: "filler-b", Value: decimal.NewFromInt(3), Rtp: 10},
	}

	won := map[string]int{}
	for i := 0; i < 20_000; i++ {
		positions, err := g.Positions(100, prizes)
		require.NoError(t, err)
		id, ok := WinningPrizeID(positions)
		require.True(t, ok)
		won[id]++
	}

	assert.Greater(t, won["cheap"], won["mid"], "lower value means higher selection weight")
	assert.Greater(t, won["mid"], won["rare"])
}

func TestSinglePrizeForcedWin(t *testing.T) {
	g := NewGenerator(rand.NewSource(3))
	prizes := testPrizes(1)

	positions, err := g.Positions(100, prizes)
	require.NoError(t, err)

	// Nothing but the winner exists to fill with.
	for _, id := range positions {
		require.Equal(t, prizes[0].ID, id)
	}
}

func TestSmallPoolLossIsDegenerate(t *testing.T) {
	g := NewGenerator(rand.NewSource(5))

	for n := 1; n < 5; n++ {
		_, err := g.Positions(0, testPrizes(n))
		require.ErrorIs(t, err, ErrDegeneratePool, "pool of %d prizes cannot lose cleanly", n)
	}
}

func TestDeterministicWithPinnedSource(t *testing.T) {
	prizes := testPrizes(6)

	a, err := NewGenerator(rand.NewSource(1234)).Positions(50, prizes)
	require.NoError(t, err)
	b, err := NewGenerator(rand.NewSource(1234)).Positions(50, prizes)
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func TestWinningPrizeID(t *testing.T) {
	positions := []string{"a", "b", "a", "c", "a", "b", "c", "d", "e"}
	id, ok := WinningPrizeID(positions)
	require.True(t, ok)
	require.Equal(t, "a", id)

	positions = []string{"a", "b", "a", "c", "b", "c", "d", "e", "d"}
	_, ok = WinningPrizeID(positions)
	require.False(t, ok)
}
