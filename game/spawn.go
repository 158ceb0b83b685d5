// spawn.go implements random tile placement for the environment.

package game

import (
	"math/rand"
)

// SpawnSettings controls tile placement.
type SpawnSettings struct {
	FourChance int // Percentage chance (0–100) that a placed tile is a 4 instead of a 2
}

// DefaultSpawnSettings matches standard 2048 (90% twos, 10% fours).
var DefaultSpawnSettings = SpawnSettings{FourChance: 10}

// ChooseSpawn picks an empty cell uniformly and a tile rank for it.
// ok is false when the board is full.
// If rng is nil, a deterministic hash of the board and salt is used instead.
func ChooseSpawn(b Board, rng *rand.Rand, settings SpawnSettings, salt uint64) (pos int, tile uint8, ok bool) {
	empty := b.Empty()
	if len(empty) == 0 {
		return 0, 0, false
	}

	var idx, roll int
	if rng != nil {
		idx = rng.Intn(len(empty))
		roll = rng.Intn(100)
	} else {
		idx = int(deterministicU64Fast(uint64(b), salt) % uint64(len(empty)))
		roll = int(deterministicU64Fast(uint64(b), salt^0xF00D) % 100)
	}

	tile = 1
	if roll < settings.FourChance {
		tile = 2
	}
	return empty[idx], tile, true
}

// deterministicU64Fast is a simple deterministic hasher for reproducibility.
func deterministicU64Fast(a, b uint64) uint64 {
	// Variant of splitmix64
	x := a + b
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
