package scheduler

import (
	"fmt"

	"ringmaster/utils"
)

// NoLimit means a group may have any number of games.
const NoLimit = -1

type group struct {
	scheduler *Simple
	limit     int
}

// Group runs a Simple scheduler per group, issuing from the group with the
// fewest games that isn't yet at its limit. Ties go to the group code that
// sorts first.
type Group struct {
	groups map[string]*group
}

func NewGroup() *Group {
	return &Group{groups: make(map[string]*group)}
}

// AddGroup adds a group with the given limit, or NoLimit.
func (g *Group) AddGroup(code string, limit int) {
	g.groups[code] = &group{scheduler: NewSimple(), limit: limit}
}

// Issue returns a group code and a game number, or ok=false if every
// group is at its limit.
func (g *Group) Issue() (code string, n int, ok bool) {
	best := -1
	for _, c := range utils.SortedKeys(g.groups) {
		gr := g.groups[c]
		count := gr.scheduler.committed()
		if gr.limit != NoLimit && count >= gr.limit {
			continue
		}
		if best == -1 || count < best {
			best = count
			code = c
		}
	}
	if best == -1 {
		return "", 0, false
	}
	return code, g.groups[code].scheduler.Issue(), true
}

func (g *Group) Fix(code string, n int) error {
	gr, ok := g.groups[code]
	if !ok {
		return fmt.Errorf("unknown group %q", code)
	}
	return gr.scheduler.Fix(n)
}

func (g *Group) Rollback() {
	for _, gr := range g.groups {
		gr.scheduler.Rollback()
	}
}

// AllFixed reports whether every group has a limit and has fixed that
// many games.
func (g *Group) AllFixed() bool {
	for _, gr := range g.groups {
		if gr.limit == NoLimit || gr.scheduler.Fixed() != gr.limit {
			return false
		}
	}
	return true
}

// Scheduler returns the scheduler for a group, or nil.
func (g *Group) Scheduler(code string) *Simple {
	if gr, ok := g.groups[code]; ok {
		return gr.scheduler
	}
	return nil
}

func (g *Group) CheckConsistent() error {
	for code, gr := range g.groups {
		if err := gr.scheduler.CheckConsistent(); err != nil {
			return fmt.Errorf("group %s: %w", code, err)
		}
		if gr.limit != NoLimit && gr.scheduler.committed() > gr.limit {
			return fmt.Errorf("group %s: more than %d games", code, gr.limit)
		}
	}
	return nil
}

// Status returns each group's scheduler status.
func (g *Group) Status() map[string]SimpleStatus {
	status := make(map[string]SimpleStatus, len(g.groups))
	for code, gr := range g.groups {
		status[code] = gr.scheduler.Status()
	}
	return status
}

// SetStatus restores the groups' schedulers. Groups must already have
// been added; groups missing from status start empty.
func (g *Group) SetStatus(status map[string]SimpleStatus) error {
	for code, st := range status {
		gr, ok := g.groups[code]
		if !ok {
			return fmt.Errorf("status has unknown group %q", code)
		}
		s, err := SimpleFromStatus(st)
		if err != nil {
			return fmt.Errorf("group %s: %w", code, err)
		}
		gr.scheduler = s
	}
	return nil
}
