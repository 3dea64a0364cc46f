// Package game implements the two mini-games and the bonus jackpot as
// pure, tick-driven state machines. Nothing here touches the network or
// the clock; callers advance time by calling Tick, which keeps the games
// deterministic under test and lets the HTTP layer drive them at whatever
// cadence the client polls.
package game

import "math/rand/v2"

// Petal game tuning. Positions are normalized to the play area: x and y in
// [0, 1], with y growing downward.
const (
	PetalTarget     = 30  // catches needed to win
	PetalCount      = 10  // concurrent petals
	PetalGameTicks  = 500 // 30s at the 60ms client tick
	petalSpeed      = 2.0
	petalMinX       = 0.06
	petalMaxX       = 0.94
	petalSpawnY     = -0.08
	petalWrapY      = 1.05
	petalPopStep    = 0.2 // pop animation progress per tick
	petalRotPerTick = 2
)

// CoinsPerGame is the play-currency awarded for winning either mini-game.
const CoinsPerGame = 25

// State is the lifecycle of a mini-game.
type State string

const (
	StateRunning State = "running"
	StateWon     State = "won"
	// StateLost is terminal; the flow auto-advances after a short delay so
	// a losing player is never stuck.
	StateLost State = "lost"
)

// Petal is one falling target.
type Petal struct {
	ID  int     `json:"id"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Rot float64 `json:"rot"`
	VX  float64 `json:"vx"`
	VY  float64 `json:"vy"`
	// Alive is false while the pop animation runs after a catch.
	Alive bool    `json:"alive"`
	Pop   float64 `json:"pop"`
}

// PetalGame is the catch-the-petals challenge: catch PetalTarget petals
// before the timer runs out.
type PetalGame struct {
	rng    *rand.Rand
	petals []Petal
	caught int
	ticks  int
	state  State
}

// NewPetalGame creates a game seeded for reproducible petal trajectories.
func NewPetalGame(seed uint64) *PetalGame {
	g := &PetalGame{
		rng:   rand.New(rand.NewPCG(seed, seed)),
		state: StateRunning,
	}
	g.petals = make([]Petal, PetalCount)
	for i := range g.petals {
		g.petals[i] = g.spawn(i + 1)
	}
	return g
}

func (g *PetalGame) spawn(id int) Petal {
	return Petal{
		ID:    id,
		X:     g.rng.Float64()*(petalMaxX-petalMinX) + petalMinX,
		Y:     petalSpawnY,
		Rot:   g.rng.Float64() * 360,
		VX:    (g.rng.Float64() - 0.5) * 0.018,
		VY:    (0.012 + g.rng.Float64()*0.015) * petalSpeed,
		Alive: true,
	}
}

// Tick advances the game by one step. Caught petals finish their pop
// animation and respawn fresh at the top; live petals drift down and wrap
// from the bottom edge back to the top rather than despawning. Returns the
// resulting state.
func (g *PetalGame) Tick() State {
	if g.state != StateRunning {
		return g.state
	}

	for i := range g.petals {
		p := &g.petals[i]
		if !p.Alive {
			p.Pop += petalPopStep
			if p.Pop >= 1 {
				*p = g.spawn(p.ID)
			}
			continue
		}
		p.X += p.VX
		if p.X < petalMinX {
			p.X = petalMinX
		}
		if p.X > petalMaxX {
			p.X = petalMaxX
		}
		p.Y += p.VY
		if p.Y > petalWrapY {
			p.Y = petalSpawnY
		}
		p.Rot += petalRotPerTick
		for p.Rot >= 360 {
			p.Rot -= 360
		}
	}

	g.ticks++
	if g.ticks >= PetalGameTicks {
		if g.caught >= PetalTarget {
			g.state = StateWon
		} else {
			g.state = StateLost
		}
	}
	return g.state
}

// Catch marks the petal with the given ID as caught. Catching an already
// popped petal or playing after the game ended is a no-op. Returns true if
// the catch counted.
func (g *PetalGame) Catch(id int) bool {
	if g.state != StateRunning {
		return false
	}
	for i := range g.petals {
		p := &g.petals[i]
		if p.ID == id && p.Alive {
			p.Alive = false
			p.Pop = 0
			g.caught++
			if g.caught >= PetalTarget {
				g.state = StateWon
			}
			return true
		}
	}
	return false
}

// State returns the current lifecycle state.
func (g *PetalGame) State() State { return g.state }

// Caught returns how many petals have been caught.
func (g *PetalGame) Caught() int { return g.caught }

// TicksLeft returns the remaining ticks before timeout.
func (g *PetalGame) TicksLeft() int {
	if left := PetalGameTicks - g.ticks; left > 0 {
		return left
	}
	return 0
}

// Petals returns a snapshot of the current petal positions.
func (g *PetalGame) Petals() []Petal {
	out := make([]Petal, len(g.petals))
	copy(out, g.petals)
	return out
}
