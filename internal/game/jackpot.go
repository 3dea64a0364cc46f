package game

import "math/rand/v2"

// JackpotMinAward is the floor on a jackpot payout.
const JackpotMinAward = 25

// slotSymbols are the reel faces shown while the jackpot spins.
var slotSymbols = []string{"💍", "💒", "💖", "🎉", "🥂", "🌹", "🎁"}

// JackpotAward returns the coins paid out for a given deficit. The jackpot
// always covers the shortfall so the seat purchase can proceed; the
// spinning reels are theatre.
func JackpotAward(deficit int) int {
	if deficit < JackpotMinAward {
		return JackpotMinAward
	}
	return deficit
}

// SpinReels returns one random reel frame. The final frame of a spin is
// always the triple-jackpot face.
func SpinReels(rng *rand.Rand) [3]string {
	var out [3]string
	for i := range out {
		out[i] = slotSymbols[rng.IntN(len(slotSymbols))]
	}
	return out
}

// JackpotReels is the winning frame shown when the spin settles.
func JackpotReels() [3]string {
	return [3]string{"🎉", "🎉", "🎉"}
}
