// Package graph describes the static stage dependency graph and derives a
// leveled execution order from it. Stages in the same level have no
// dependency on each other and run concurrently.
package graph

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/promo-cli/internal/model"
)

// StageDefinition declares one stage and the stages it depends on.
type StageDefinition struct {
	ID        model.StageID
	DependsOn []model.StageID
}

// Graph is an immutable stage dependency graph with a precomputed leveled
// topological order.
type Graph struct {
	defs   map[model.StageID]StageDefinition
	levels [][]model.StageID
}

// New validates the definitions and computes topological levels via Kahn's
// algorithm. Unknown dependencies and cycles are construction errors.
func New(defs []StageDefinition) (*Graph, error) {
	byID := make(map[model.StageID]StageDefinition, len(defs))
	for _, d := range defs {
		if _, dup := byID[d.ID]; dup {
			return nil, eris.Errorf("graph: duplicate stage %q", d.ID)
		}
		byID[d.ID] = d
	}
	for _, d := range defs {
		for _, dep := range d.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, eris.Errorf("graph: stage %q depends on unknown stage %q", d.ID, dep)
			}
			if dep == d.ID {
				return nil, eris.Errorf("graph: stage %q depends on itself", d.ID)
			}
		}
	}

	indegree := make(map[model.StageID]int, len(defs))
	dependents := make(map[model.StageID][]model.StageID, len(defs))
	for _, d := range defs {
		indegree[d.ID] = len(d.DependsOn)
		for _, dep := range d.DependsOn {
			dependents[dep] = append(dependents[dep], d.ID)
		}
	}

	var levels [][]model.StageID
	remaining := len(defs)
	for remaining > 0 {
		var level []model.StageID
		for id, deg := range indegree {
			if deg == 0 {
				level = append(level, id)
			}
		}
		if len(level) == 0 {
			return nil, eris.New("graph: dependency cycle detected")
		}
		// Deterministic order within a level.
		sort.Slice(level, func(i, j int) bool { return level[i] < level[j] })

		for _, id := range level {
			delete(indegree, id)
			for _, dep := range dependents[id] {
				indegree[dep]--
			}
		}
		levels = append(levels, level)
		remaining -= len(level)
	}

	return &Graph{defs: byID, levels: levels}, nil
}

// Levels returns the leveled execution order. Callers must not mutate it.
func (g *Graph) Levels() [][]model.StageID {
	return g.levels
}

// DependsOn returns the declared dependencies of a stage.
func (g *Graph) DependsOn(id model.StageID) []model.StageID {
	return g.defs[id].DependsOn
}

// Stages returns all stage ids in leveled order.
func (g *Graph) Stages() []model.StageID {
	var out []model.StageID
	for _, level := range g.levels {
		out = append(out, level...)
	}
	return out
}

// Contains reports whether the graph defines the stage.
func (g *Graph) Contains(id model.StageID) bool {
	_, ok := g.defs[id]
	return ok
}

// Default returns the standard content-generation graph:
// evidence fetch, then description, then USP extraction, then the
// independent content stages, then hashtags.
func Default() *Graph {
	g, err := New([]StageDefinition{
		{ID: model.StageSignals},
		{ID: model.StageContext},
		{ID: model.StageDescription, DependsOn: []model.StageID{model.StageSignals, model.StageContext}},
		{ID: model.StageUSP, DependsOn: []model.StageID{model.StageDescription}},
		{ID: model.StageChapters, DependsOn: []model.StageID{model.StageUSP}},
		{ID: model.StageFAQ, DependsOn: []model.StageID{model.StageUSP}},
		{ID: model.StageHowTo, DependsOn: []model.StageID{model.StageUSP}},
		{ID: model.StageCaseStudies, DependsOn: []model.StageID{model.StageUSP}},
		{ID: model.StageKeywords, DependsOn: []model.StageID{model.StageUSP}},
		{ID: model.StageHashtags, DependsOn: []model.StageID{model.StageKeywords}},
	})
	if err != nil {
		// The default graph is static; a construction error is a programming bug.
		panic(err)
	}
	return g
}
