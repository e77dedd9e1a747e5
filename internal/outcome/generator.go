package outcome

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"math/rand"

	"scratch_service/internal/catalog"
)

const (
	// GridSize is the number of cells on a scratch card.
	GridSize = 9
	// MatchCount is how many identical cells make a win.
	MatchCount = 3
)

var (
	ErrEmptyPrizePool   = errors.New("prize pool is empty")
	ErrInvalidPrizePool = errors.New("prize pool has no drawable prizes")
	ErrDegeneratePool   = errors.New("prize pool too small to build a losing grid")
)

// Generator produces scratch card grids. The random source is injectable so
// tests can pin outcomes.
type Generator struct {
	rnd *rand.Rand
}

func NewGenerator(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// Default returns a generator seeded from the OS CSPRNG.
func Default() *Generator {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic("outcome: cannot seed generator: " + err.Error())
	}
	return NewGenerator(rand.NewSource(int64(binary.LittleEndian.Uint64(b[:]))))
}

// Positions generates the 9-cell grid for a card with the given RTP (0-100).
// A winning grid holds exactly one prize id in exactly 3 cells; a losing grid
// holds no id 3 or more times.
func (g *Generator) Positions(rtp float64, prizes []catalog.Prize) ([]string, error) {
	if len(prizes) == 0 {
		return nil, ErrEmptyPrizePool
	}

	if g.rnd.Float64()*100 < rtp {
		return g.winningGrid(prizes)
	}
	return g.losingGrid(prizes)
}

func (g *Generator) winningGrid(prizes []catalog.Prize) ([]string, error) {
	winner, err := g.pickWeighted(prizes)
	if err != nil {
		return nil, err
	}

	positions := make([]string, GridSize)
	for _, pos := range g.rnd.Perm(GridSize)[:MatchCount] {
		positions[pos] = winner.ID
	}

	others := make([]string, 0, len(prizes)-1)
	for _, p := range prizes {
		if p.ID != winner.ID {
			others = append(others, p.ID)
		}
	}

	counts := make(map[string]int, len(others))
	for i := range positions {
		if positions[i] == "" {
			if len(others) == 0 {
				// Single-prize pool: nothing else to fill with.
				positions[i] = winner.ID
				continue
			}
			id := others[g.rnd.Intn(len(others))]
			positions[i] = id
			counts[id]++
		}
	}

	// Filler cells drawn independently can pile a second id up to a
	// coincidental triple; cap filler ids at 2 so the winner stays the only
	// match. Pools too small to offer an alternative keep the raw fill.
	for _, id := range others {
		for counts[id] >= MatchCount {
			alt, ok := g.pickCapped(others, counts, id)
			if !ok {
				break
			}
			g.replaceOne(positions, id, alt)
			counts[id]--
			counts[alt]++
		}
	}

	return positions, nil
}

func (g *Generator) losingGrid(prizes []catalog.Prize) ([]string, error) {
	// A grid with no id repeated 3 times needs ceil(9/2) = 5 distinct ids.
	if len(prizes) < 5 {
		return nil, ErrDegeneratePool
	}

	ids := make([]string, len(prizes))
	for i, p := range prizes {
		ids[i] = p.ID
	}

	positions := make([]string, GridSize)
	counts := make(map[string]int, len(ids))
	for i := range positions {
		id := ids[g.rnd.Intn(len(ids))]
		positions[i] = id
		counts[id]++
	}

	for _, id := range ids {
		for counts[id] >= MatchCount {
			alt, ok := g.pickCapped(ids, counts, id)
			if !ok {
				return nil, ErrDegeneratePool
			}
			g.replaceOne(positions, id, alt)
			counts[id]--
			counts[alt]++
		}
	}

	return positions, nil
}

// pickWeighted selects the winning prize. Weight is rtp/value, so prizes that
// are cheap relative to their own RTP budget come up more often, which keeps
// the card's effective payout near its target RTP.
func (g *Generator) pickWeighted(prizes []catalog.Prize) (*catalog.Prize, error) {
	weights := make([]float64, len(prizes))
	var total float64
	for i, p := range prizes {
		v := p.Value.InexactFloat64()
		if v <= 0 || p.Rtp <= 0 {
			continue
		}
		weights[i] = p.Rtp / v
		total += weights[i]
	}
	if total <= 0 {
		return nil, ErrInvalidPrizePool
	}

	r := g.rnd.Float64() * total
	for i := range prizes {
		r -= weights[i]
		if r <= 0 && weights[i] > 0 {
			return &prizes[i], nil
		}
	}
	return &prizes[len(prizes)-1], nil
}

// pickCapped draws uniformly among ids whose current count still has room
// below the match threshold. Returns false when no such id exists.
func (g *Generator) pickCapped(ids []string, counts map[string]int, exclude string) (string, bool) {
	candidates := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude && counts[id] < MatchCount-1 {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[g.rnd.Intn(len(candidates))], true
}

// replaceOne swaps the first cell holding id for alt.
func (g *Generator) replaceOne(positions []string, id, alt string) {
	for i := range positions {
		if positions[i] == id {
			positions[i] = alt
			return
		}
	}
}

// CountOccurrences tallies how many cells each prize id occupies.
func CountOccurrences(positions []string) map[string]int {
	counts := make(map[string]int, len(positions))
	for _, id := range positions {
		counts[id]++
	}
	return counts
}

// WinningPrizeID returns the prize id occupying MatchCount or more cells, if
// any.
func WinningPrizeID(positions []string) (string, bool) {
	for id, n := range CountOccurrences(positions) {
		if n >= MatchCount {
			return id, true
		}
	}
	return "", false
}
