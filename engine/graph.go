package engine

import (
	"sort"

	"github.com/timzifer/formlogic/config"
)

// Graph is the rule-induced dependency graph between questions. Questions
// are mapped onto dense indexes once so traversal runs over integer
// adjacency lists.
type Graph struct {
	ids   []string
	index map[string]int
	edges [][]int
}

// BuildDependencyGraph collects one directed edge source -> target for every
// way a rule lets one question influence another: each condition source
// paired with each rule target, the source of a set_value pipe, and every
// source of a calculate formula. Disabled advanced rules contribute nothing.
func BuildDependencyGraph(questions []config.Question) *Graph {
	g := &Graph{
		ids:   make([]string, 0, len(questions)),
		index: make(map[string]int, len(questions)),
	}
	for _, q := range questions {
		if _, ok := g.index[q.ID]; ok {
			continue
		}
		g.index[q.ID] = len(g.ids)
		g.ids = append(g.ids, q.ID)
	}
	g.edges = make([][]int, len(g.ids))
	seen := make(map[int]map[int]struct{})

	addEdge := func(source, target string) {
		from, ok := g.index[source]
		if !ok {
			return
		}
		to, ok := g.index[target]
		if !ok {
			return
		}
		if seen[from] == nil {
			seen[from] = make(map[int]struct{})
		}
		if _, dup := seen[from][to]; dup {
			return
		}
		seen[from][to] = struct{}{}
		g.edges[from] = append(g.edges[from], to)
	}

	for _, q := range questions {
		for _, rule := range q.LogicRules {
			for _, target := range rule.Targets {
				addEdge(rule.Source, target)
			}
		}
		for _, rule := range q.AdvancedRules {
			if !rule.IsEnabled() {
				continue
			}
			for _, group := range rule.Groups {
				for _, cond := range group.Conditions {
					for _, target := range rule.Targets {
						addEdge(cond.Source, target)
					}
					if rule.SetValue != nil {
						addEdge(cond.Source, rule.SetValue.Target)
					}
					if rule.Calculate != nil {
						addEdge(cond.Source, rule.Calculate.Target)
					}
				}
			}
			if rule.SetValue != nil {
				addEdge(rule.SetValue.Source, rule.SetValue.Target)
			}
			if rule.Calculate != nil {
				for _, src := range rule.Calculate.Sources {
					addEdge(src, rule.Calculate.Target)
				}
			}
		}
	}
	return g
}

// Cycles returns the union of all question ids participating in any cycle,
// sorted. An empty result means the graph is acyclic.
func (g *Graph) Cycles() []string {
	const (
		white = iota
		gray
		black
	)
	n := len(g.ids)
	color := make([]int, n)
	pathPos := make([]int, n)
	for i := range pathPos {
		pathPos[i] = -1
	}
	cyclic := make(map[int]struct{})

	type frame struct {
		node int
		next int
	}
	path := make([]int, 0, n)
	// Iterative three-color DFS with an explicit stack: rule graphs are
	// user-authored, so traversal depth must not ride on goroutine stack.
	for start := 0; start < n; start++ {
		if color[start] != white {
			continue
		}
		stack := []frame{{node: start}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next == 0 {
				color[top.node] = gray
				pathPos[top.node] = len(path)
				path = append(path, top.node)
			}
			if top.next < len(g.edges[top.node]) {
				succ := g.edges[top.node][top.next]
				top.next++
				switch color[succ] {
				case white:
					stack = append(stack, frame{node: succ})
				case gray:
					// Every node on the current path from succ onwards
					// closes the loop.
					for i := pathPos[succ]; i < len(path); i++ {
						cyclic[path[i]] = struct{}{}
					}
				}
				continue
			}
			color[top.node] = black
			pathPos[top.node] = -1
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}

	out := make([]string, 0, len(cyclic))
	for idx := range cyclic {
		out = append(out, g.ids[idx])
	}
	sort.Strings(out)
	return out
}

// FindCircularQuestionIDs is the authoring-time save gate: it returns every
// question implicated in a dependency cycle across the whole rule set, so
// the editor can name all of them, not just the first loop found.
func FindCircularQuestionIDs(questions []config.Question) []string {
	return BuildDependencyGraph(questions).Cycles()
}
