// Package graph provides a dependency graph over specification tasks.
package graph

import (
	"errors"
	"sync"

	"github.com/ShayCichocki/dagforge/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph represents the task dependency graph of one specification.
// Tasks are nodes, and edges point from a task to the tasks it depends on.
//
// Iteration over nodes always follows declaration order, so every result is
// deterministic for a given task list.
type DependencyGraph struct {
	mu sync.RWMutex
	// order lists task IDs in declaration order, first occurrence only.
	order []string
	// edges maps task ID to IDs of tasks it depends on.
	edges map[string][]string
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		edges: make(map[string][]string),
	}
}

// Build adds the tasks to the graph.
//
// Tasks without an ID are ignored. Dependencies on IDs that are not tasks
// of the list are skipped; reporting them is the caller's job. When an ID is
// declared more than once, the dependencies of every declaration are merged.
func (g *DependencyGraph) Build(tasks []models.Task) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if task.TaskID == "" {
			continue
		}
		if _, exists := g.edges[task.TaskID]; !exists {
			g.order = append(g.order, task.TaskID)
			g.edges[task.TaskID] = nil
		}
	}

	// Second pass: build edges.
	for _, task := range tasks {
		if task.TaskID == "" {
			continue
		}
		for _, depID := range task.Dependencies {
			if _, exists := g.edges[depID]; !exists {
				continue
			}
			if contains(g.edges[task.TaskID], depID) {
				continue
			}
			g.edges[task.TaskID] = append(g.edges[task.TaskID], depID)
		}
	}
}

// FindCycle returns the first cycle found as a closed path, for example
// [a b c a], or nil if the graph is acyclic.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) FindCycle() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findCycleLocked()
}

// findCycleLocked assumes the lock is held.
func (g *DependencyGraph) findCycleLocked() []string {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.order))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		stack = append(stack, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge: the cycle is the stack from depID to here.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == depID {
						cycle = append(append([]string{}, stack[i:]...), depID)
						break
					}
				}
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return cycle
		}
	}
	return nil
}

// TopologicalSort returns task IDs in an order where all dependencies
// come before the tasks that depend on them. Ties follow declaration order.
// Returns ErrCycleDetected if the graph contains a cycle.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.findCycleLocked() != nil {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.order))
	result := make([]string, 0, len(g.order))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		// Visit all dependencies first.
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
