// meta/meta.go
package meta

// NumChairs is the number of labeled chairs on the board.
const NumChairs = 12

// MaxTurns is the number of half-moves in a full game. Turn indices run
// 0..MaxTurns-1 and fit the 4-bit turn field.
const MaxTurns = 16

// WinningScore ends the game for the player who reaches it.
const WinningScore = 40

// MaxShocks ends the game against the player who accumulates it.
const MaxShocks = 3

// GO_ROUTINES defines the number of worker goroutines for per-turn solving.
const GO_ROUTINES = 8

// ReachChunkSize is the number of encoded states per reachability chunk file.
const ReachChunkSize = 10000

// StrategyChunkSize is the number of strategies per analysis chunk file.
const StrategyChunkSize = 1000

// StrategyLRUChunks bounds how many strategy chunks stay in memory.
const StrategyLRUChunks = 10
