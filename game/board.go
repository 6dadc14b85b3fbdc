package game

import (
	"errors"
	"strings"
)

// ErrOccupied is returned by Play when the point already holds a stone.
var ErrOccupied = errors.New("point is occupied")

// Board is a Go position: a square grid of stones.
type Board struct {
	size int
	grid []Colour
}

// NewBoard returns an empty board with the given side length.
func NewBoard(size int) *Board {
	return &Board{size: size, grid: make([]Colour, size*size)}
}

func (b *Board) Size() int {
	return b.size
}

// Get returns the colour at (row, col), None for an empty point.
func (b *Board) Get(row, col int) Colour {
	return b.grid[row*b.size+col]
}

// Set places or removes a stone without applying captures.
func (b *Board) Set(row, col int, colour Colour) {
	b.grid[row*b.size+col] = colour
}

func (b *Board) OnBoard(row, col int) bool {
	return row >= 0 && row < b.size && col >= 0 && col < b.size
}

// IsEmpty reports whether there are no stones on the board.
func (b *Board) IsEmpty() bool {
	for _, c := range b.grid {
		if c != None {
			return false
		}
	}
	return true
}

// Copy returns an independent copy of the board.
func (b *Board) Copy() *Board {
	grid := make([]Colour, len(b.grid))
	copy(grid, b.grid)
	return &Board{size: b.size, grid: grid}
}

// Stones lists the points holding the given colour, bottom row first.
func (b *Board) Stones(colour Colour) []Move {
	var points []Move
	for i, c := range b.grid {
		if c == colour {
			points = append(points, Point(i/b.size, i%b.size))
		}
	}
	return points
}

func (b *Board) neighbours(p int, buf []int) []int {
	buf = buf[:0]
	row, col := p/b.size, p%b.size
	if row > 0 {
		buf = append(buf, p-b.size)
	}
	if row < b.size-1 {
		buf = append(buf, p+b.size)
	}
	if col > 0 {
		buf = append(buf, p-1)
	}
	if col < b.size-1 {
		buf = append(buf, p+1)
	}
	return buf
}

// group returns the points of the chain containing p and its liberty count.
func (b *Board) group(p int) (stones []int, liberties int) {
	colour := b.grid[p]
	seen := make(map[int]bool)
	libs := make(map[int]bool)
	stack := []int{p}
	seen[p] = true
	var buf [4]int
	for len(stack) > 0 {
		q := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stones = append(stones, q)
		for _, n := range b.neighbours(q, buf[:]) {
			switch b.grid[n] {
			case None:
				libs[n] = true
			case colour:
				if !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
	}
	return stones, len(libs)
}

func (b *Board) remove(stones []int) {
	for _, p := range stones {
		b.grid[p] = None
	}
}

// Play places a stone of the given colour and applies captures. Self-capture
// is allowed: a played group left without liberties is removed.
//
// It returns the simple ko point created by the move, or nil.
func (b *Board) Play(row, col int, colour Colour) (*Move, error) {
	p := row*b.size + col
	if b.grid[p] != None {
		return nil, ErrOccupied
	}
	b.grid[p] = colour
	opponent := colour.Opponent()

	var captured []int
	var buf [4]int
	for _, n := range b.neighbours(p, buf[:]) {
		if b.grid[n] != opponent {
			continue
		}
		stones, libs := b.group(n)
		if libs == 0 {
			captured = append(captured, stones...)
			b.remove(stones)
		}
	}

	stones, libs := b.group(p)
	if libs == 0 {
		b.remove(stones)
		return nil, nil
	}
	if len(captured) == 1 && len(stones) == 1 && libs == 1 {
		ko := Point(captured[0]/b.size, captured[0]%b.size)
		return &ko, nil
	}
	return nil, nil
}

// AreaScore returns Black's area minus White's: stones on the board plus
// empty regions bordered by only one colour.
func (b *Board) AreaScore() int {
	score := 0
	seen := make([]bool, len(b.grid))
	var buf [4]int
	for p, c := range b.grid {
		switch c {
		case Black:
			score++
			continue
		case White:
			score--
			continue
		}
		if seen[p] {
			continue
		}
		size := 0
		var borders Colour
		mixed := false
		stack := []int{p}
		seen[p] = true
		for len(stack) > 0 {
			q := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			for _, n := range b.neighbours(q, buf[:]) {
				switch nc := b.grid[n]; nc {
				case None:
					if !seen[n] {
						seen[n] = true
						stack = append(stack, n)
					}
				default:
					if borders == None {
						borders = nc
					} else if borders != nc {
						mixed = true
					}
				}
			}
		}
		if mixed {
			continue
		}
		switch borders {
		case Black:
			score += size
		case White:
			score -= size
		}
	}
	return score
}

// String draws the board with the top row first, for diagnostics.
func (b *Board) String() string {
	var sb strings.Builder
	for row := b.size - 1; row >= 0; row-- {
		for col := 0; col < b.size; col++ {
			switch b.Get(row, col) {
			case Black:
				sb.WriteByte('#')
			case White:
				sb.WriteByte('o')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
