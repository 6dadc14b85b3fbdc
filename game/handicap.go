package game

import "fmt"

// handicapPatterns index the 3x3 star-point grid as (row, col) with
// 0 = low line, 1 = middle line, 2 = high line.
var handicapPatterns = [][][2]int{
	2: {{0, 0}, {2, 2}},
	3: {{0, 0}, {2, 2}, {2, 0}},
	4: {{0, 0}, {2, 2}, {2, 0}, {0, 2}},
	5: {{0, 0}, {2, 2}, {2, 0}, {0, 2}, {1, 1}},
	6: {{0, 0}, {2, 2}, {2, 0}, {0, 2}, {1, 0}, {1, 2}},
	7: {{0, 0}, {2, 2}, {2, 0}, {0, 2}, {1, 0}, {1, 2}, {1, 1}},
	8: {{0, 0}, {2, 2}, {2, 0}, {0, 2}, {1, 0}, {1, 2}, {0, 1}, {2, 1}},
	9: {{0, 0}, {2, 2}, {2, 0}, {0, 2}, {1, 0}, {1, 2}, {0, 1}, {2, 1}, {1, 1}},
}

// MaxFixedHandicap returns the largest fixed handicap for the board size,
// or 0 if the size does not allow fixed handicap.
func MaxFixedHandicap(size int) int {
	if size < 7 || size > MaxBoardSize {
		return 0
	}
	if size%2 == 0 || size == 7 {
		return 4
	}
	return 9
}

// HandicapPoints returns the standard placement of a fixed handicap, as
// used by the GTP fixed_handicap command.
func HandicapPoints(stones, size int) ([]Move, error) {
	limit := MaxFixedHandicap(size)
	if limit == 0 {
		return nil, fmt.Errorf("fixed handicap not supported on board size %d", size)
	}
	if stones < 2 || stones > limit {
		return nil, fmt.Errorf("invalid fixed handicap %d for board size %d", stones, size)
	}
	altitude := 2
	if size >= 13 {
		altitude = 3
	}
	lines := [3]int{altitude, (size - 1) / 2, size - altitude - 1}
	points := make([]Move, 0, stones)
	for _, rc := range handicapPatterns[stones] {
		points = append(points, Point(lines[rc[0]], lines[rc[1]]))
	}
	return points, nil
}
