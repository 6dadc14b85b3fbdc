// Package scheduler hands out game numbers so that every game is played
// exactly once, even across restarts.
package scheduler

import (
	"fmt"

	"golang.org/x/exp/slices"

	"ringmaster/utils"
)

// Simple issues game numbers 0, 1, 2... A number is outstanding from the
// time it's issued until it's fixed. Rollback returns outstanding numbers
// to be issued again, smallest first.
type Simple struct {
	nextNew     int
	outstanding map[int]bool
	toReissue   map[int]bool
}

func NewSimple() *Simple {
	return &Simple{
		outstanding: make(map[int]bool),
		toReissue:   make(map[int]bool),
	}
}

// Issue returns the next game number.
func (s *Simple) Issue() int {
	var n int
	if len(s.toReissue) > 0 {
		n = utils.SortedKeys(s.toReissue)[0]
		delete(s.toReissue, n)
	} else {
		n = s.nextNew
		s.nextNew++
	}
	s.outstanding[n] = true
	return n
}

// Fix records that game n is finished with.
func (s *Simple) Fix(n int) error {
	if !s.outstanding[n] {
		return fmt.Errorf("game %d is not outstanding", n)
	}
	delete(s.outstanding, n)
	return nil
}

// Rollback makes every outstanding game number available for reissue.
func (s *Simple) Rollback() {
	for n := range s.outstanding {
		s.toReissue[n] = true
	}
	s.outstanding = make(map[int]bool)
}

// Issued counts game numbers handed out, including any waiting to be
// reissued.
func (s *Simple) Issued() int { return s.nextNew }

func (s *Simple) Fixed() int {
	return s.nextNew - len(s.outstanding) - len(s.toReissue)
}

func (s *Simple) Outstanding() []int { return utils.SortedKeys(s.outstanding) }

func (s *Simple) ToReissue() []int { return utils.SortedKeys(s.toReissue) }

func (s *Simple) IsOutstanding(n int) bool { return s.outstanding[n] }

// committed counts games that are fixed or in progress.
func (s *Simple) committed() int {
	return s.Fixed() + len(s.outstanding)
}

// CheckConsistent verifies the scheduler's invariants.
func (s *Simple) CheckConsistent() error {
	for n := range s.outstanding {
		if n < 0 || n >= s.nextNew {
			return fmt.Errorf("outstanding game %d out of range", n)
		}
		if s.toReissue[n] {
			return fmt.Errorf("game %d both outstanding and to be reissued", n)
		}
	}
	for n := range s.toReissue {
		if n < 0 || n >= s.nextNew {
			return fmt.Errorf("game %d to be reissued out of range", n)
		}
	}
	if s.Fixed() < 0 {
		return fmt.Errorf("negative fixed count")
	}
	return nil
}

// SimpleStatus is the persisted form of a Simple scheduler.
type SimpleStatus struct {
	NextNew     int   `json:"next_new"`
	Outstanding []int `json:"outstanding"`
	ToReissue   []int `json:"to_reissue"`
}

func (s *Simple) Status() SimpleStatus {
	return SimpleStatus{
		NextNew:     s.nextNew,
		Outstanding: s.Outstanding(),
		ToReissue:   s.ToReissue(),
	}
}

// SimpleFromStatus restores a scheduler. It is not rolled back.
func SimpleFromStatus(status SimpleStatus) (*Simple, error) {
	s := NewSimple()
	s.nextNew = status.NextNew
	for _, n := range status.Outstanding {
		s.outstanding[n] = true
	}
	for _, n := range status.ToReissue {
		s.toReissue[n] = true
	}
	if err := s.CheckConsistent(); err != nil {
		return nil, fmt.Errorf("invalid scheduler status: %w", err)
	}
	return s, nil
}

// Equal reports whether two schedulers are in the same state.
func (s *Simple) Equal(other *Simple) bool {
	return s.nextNew == other.nextNew &&
		slices.Equal(s.Outstanding(), other.Outstanding()) &&
		slices.Equal(s.ToReissue(), other.ToReissue())
}
