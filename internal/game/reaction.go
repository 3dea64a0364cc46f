package game

// Reaction game tuning. The marker sweeps 0..100 and back; a stop inside
// the target zone wins.
const (
	ReactionMaxAttempts = 3
	reactionSpeed       = 4.0 // marker units per tick
	reactionTargetStart = 55.0
	reactionTargetEnd   = 65.0
)

// ReactionState is the lifecycle of the reaction game. It extends the
// shared win/lose states with the stopped-after-miss pause, which needs an
// explicit Reset before the marker moves again.
type ReactionState string

const (
	ReactionRunning ReactionState = "running"
	ReactionMissed  ReactionState = "missed"
	ReactionWon     ReactionState = "won"
	// ReactionLocked is terminal: the attempt budget is spent and only
	// skipping remains, so the flow can always proceed.
	ReactionLocked ReactionState = "locked"
)

// ReactionGame is the perfect-timing challenge: stop the sweeping marker
// inside the highlighted zone within ReactionMaxAttempts tries.
type ReactionGame struct {
	pos      float64
	dir      float64
	attempts int
	state    ReactionState
}

// NewReactionGame creates a game with the marker at the left edge.
func NewReactionGame() *ReactionGame {
	return &ReactionGame{dir: 1, state: ReactionRunning}
}

// Tick advances the marker one step, reversing at the bounds. The marker
// only moves while the game is running.
func (g *ReactionGame) Tick() {
	if g.state != ReactionRunning {
		return
	}
	g.pos += g.dir * reactionSpeed
	if g.pos >= 100 {
		g.pos = 100
		g.dir = -1
	}
	if g.pos <= 0 {
		g.pos = 0
		g.dir = 1
	}
}

// Stop halts the marker and judges the attempt. A hit wins; a miss burns
// an attempt and, once the budget is spent, locks the game.
func (g *ReactionGame) Stop() ReactionState {
	if g.state != ReactionRunning {
		return g.state
	}

	g.attempts++
	if g.pos >= reactionTargetStart && g.pos <= reactionTargetEnd {
		g.state = ReactionWon
	} else if g.attempts >= ReactionMaxAttempts {
		g.state = ReactionLocked
	} else {
		g.state = ReactionMissed
	}
	return g.state
}

// Reset rearms the marker after a miss. It has no effect once the game is
// won or locked.
func (g *ReactionGame) Reset() {
	if g.state != ReactionMissed {
		return
	}
	g.pos = 0
	g.dir = 1
	g.state = ReactionRunning
}

// State returns the current lifecycle state.
func (g *ReactionGame) State() ReactionState { return g.state }

// Pos returns the marker position in [0, 100].
func (g *ReactionGame) Pos() float64 { return g.pos }

// Attempts returns how many stops have been judged.
func (g *ReactionGame) Attempts() int { return g.attempts }

// InTarget reports whether a position falls inside the target zone.
func InTarget(pos float64) bool {
	return pos >= reactionTargetStart && pos <= reactionTargetEnd
}
