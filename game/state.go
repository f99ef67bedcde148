package game

import (
	"fmt"
	"math/bits"

	"electricchair/meta"
)

// StateHash is the canonical 32-bit encoding of a position. Layout, most
// significant bits first: 4-bit turn, 12-bit chair mask, 6-bit score A,
// 6-bit score B, 2-bit shock A, 2-bit shock B.
type StateHash uint32

// AllChairs is the chair mask with every chair still on the board.
const AllChairs = uint16(1<<meta.NumChairs - 1)

type Status int

const (
	InProgress Status = iota
	AWins
	BWins
	Draw
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "in-progress"
	case AWins:
		return "A-wins"
	case BWins:
		return "B-wins"
	case Draw:
		return "draw"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// GameState represents the dynamic state of the game at any point. Status is
// not a field: it is derived from the others, so two states with identical
// fields always agree on it.
type GameState struct {
	Turn   int    // Half-moves played, 0..15
	Chairs uint16 // Bit i set = chair i+1 still on the board
	ScoreA int    // Player A accumulated points, 0..40
	ScoreB int    // Player B accumulated points, 0..40
	ShockA int    // Player A accumulated shocks, 0..3
	ShockB int    // Player B accumulated shocks, 0..3
}

// NewGameState returns the unique initial position: turn 0, every chair
// present, no points, no shocks.
func NewGameState() GameState {
	return GameState{Chairs: AllChairs}
}

// Encode packs the state into its 32-bit form. Out-of-range fields are
// programmer errors and panic with the offending state.
func (gs GameState) Encode() StateHash {
	if gs.Turn < 0 || gs.Turn >= meta.MaxTurns {
		panic(fmt.Sprintf("encode: turn %d out of range in %+v", gs.Turn, gs))
	}
	if gs.Chairs > AllChairs {
		panic(fmt.Sprintf("encode: chair mask %#x out of range in %+v", gs.Chairs, gs))
	}
	if gs.ScoreA < 0 || gs.ScoreA > meta.WinningScore || gs.ScoreB < 0 || gs.ScoreB > meta.WinningScore {
		// The 6-bit field holds up to 63 but the ruleset caps at 40;
		// anything above is a bug upstream.
		panic(fmt.Sprintf("encode: score out of range in %+v", gs))
	}
	if gs.ShockA < 0 || gs.ShockA > meta.MaxShocks || gs.ShockB < 0 || gs.ShockB > meta.MaxShocks {
		panic(fmt.Sprintf("encode: shock count out of range in %+v", gs))
	}
	return StateHash(uint32(gs.Turn)<<28 |
		uint32(gs.Chairs)<<16 |
		uint32(gs.ScoreA)<<10 |
		uint32(gs.ScoreB)<<4 |
		uint32(gs.ShockA)<<2 |
		uint32(gs.ShockB))
}

// Decode is the inverse of Encode.
func Decode(h StateHash) GameState {
	return GameState{
		Turn:   int(h >> 28),
		Chairs: uint16(h>>16) & AllChairs,
		ScoreA: int(h>>10) & 0x3f,
		ScoreB: int(h>>4) & 0x3f,
		ShockA: int(h>>2) & 0x3,
		ShockB: int(h) & 0x3,
	}
}

// Turn extracts the turn field without decoding the rest.
func (h StateHash) Turn() int {
	return int(h >> 28)
}

// Hex renders the encoding the way it is serialized on disk: lowercase
// hexadecimal, no 0x prefix, no leading zeros.
func (h StateHash) Hex() string {
	return fmt.Sprintf("%x", uint32(h))
}

// ParseHex is the inverse of Hex.
func ParseHex(s string) (StateHash, error) {
	var v uint32
	if _, err := fmt.Sscanf(s, "%x", &v); err != nil {
		return 0, fmt.Errorf("bad state hash %q: %w", s, err)
	}
	return StateHash(v), nil
}

// Status derives the game status from the fields alone, in priority order:
// shock losses first, then score wins, then the endgame comparison once one
// chair remains or the final turn index is reached.
func (gs GameState) Status() Status {
	switch {
	case gs.ShockA == meta.MaxShocks:
		return BWins
	case gs.ShockB == meta.MaxShocks:
		return AWins
	case gs.ScoreA == meta.WinningScore:
		return AWins
	case gs.ScoreB == meta.WinningScore:
		return BWins
	}
	if gs.RemainingChairs() == 1 || gs.Turn >= meta.MaxTurns-1 {
		switch {
		case gs.ScoreA > gs.ScoreB:
			return AWins
		case gs.ScoreB > gs.ScoreA:
			return BWins
		default:
			return Draw
		}
	}
	return InProgress
}

// IsTerminal reports whether the game is over in this state.
func (gs GameState) IsTerminal() bool {
	return gs.Status() != InProgress
}

// Status derives the status straight from an encoding.
func (h StateHash) Status() Status {
	return Decode(h).Status()
}

// RemainingChairs counts the chairs still on the board.
func (gs GameState) RemainingChairs() int {
	return bits.OnesCount16(gs.Chairs)
}

// ChairPresent reports whether chair c (1..12) is still on the board.
func (gs GameState) ChairPresent(c int) bool {
	if c < 1 || c > meta.NumChairs {
		return false
	}
	return gs.Chairs&(1<<(c-1)) != 0
}

// AvailableChairs lists the chairs still on the board in ascending order.
func (gs GameState) AvailableChairs() []int {
	chairs := make([]int, 0, meta.NumChairs)
	for c := 1; c <= meta.NumChairs; c++ {
		if gs.ChairPresent(c) {
			chairs = append(chairs, c)
		}
	}
	return chairs
}

func (gs GameState) String() string {
	return fmt.Sprintf("turn=%d chairs=%#03x score=%d:%d shocks=%d:%d status=%s",
		gs.Turn, gs.Chairs, gs.ScoreA, gs.ScoreB, gs.ShockA, gs.ShockB, gs.Status())
}
