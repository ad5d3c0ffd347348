// Package services implements domain business logic and use cases.
package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ochairo/libbundle/internal/domain/entities"
	"github.com/ochairo/libbundle/internal/domain/interfaces"
	"github.com/ochairo/libbundle/internal/domain/interfaces/gateways"
)

// ClosureBuilder computes the transitive dependency closure of a set of artifacts.
//
// The builder exclusively owns the result set and the visited set of the
// computation in progress. Every public entry point starts from empty sets,
// so nothing carries over between runs. Both sets are keyed by the canonical
// identity the resolver assigns to a path, and a file is probed at most once
// per run however many aliases reach it: the visited set is consulted before
// each extractor call, which makes the traversal terminate on cyclic graphs
// and probe diamond-shaped graphs once per node.
type ClosureBuilder struct {
	extractor gateways.DependencyExtractor
	resolver  gateways.PathResolver
	filter    string
	logger    interfaces.Logger

	result  *entities.ClosureSet
	visited map[string]struct{}
	probes  int
}

// node is a path waiting in the frontier together with its identity
type node struct {
	path     string
	identity string
}

// lexicalResolver identifies paths by their cleaned text
type lexicalResolver struct{}

func (lexicalResolver) Canonical(path string) string {
	return filepath.Clean(path)
}

// NewClosureBuilder creates a closure builder that applies filter at every level.
// A nil resolver compares paths by their cleaned text only.
func NewClosureBuilder(extractor gateways.DependencyExtractor, resolver gateways.PathResolver, filter string, logger interfaces.Logger) *ClosureBuilder {
	if resolver == nil {
		resolver = lexicalResolver{}
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ClosureBuilder{
		extractor: extractor,
		resolver:  resolver,
		filter:    filter,
		logger:    logger,
	}
}

// Resolve probes every artifact and expands the union of their dependencies
// into the full closure. The artifacts themselves are members only if some
// probed file depends on them. Artifacts naming the same file are probed once.
func (b *ClosureBuilder) Resolve(ctx context.Context, artifacts []entities.Artifact) (*entities.ClosureSet, error) {
	b.reset()

	var frontier []node
	for _, artifact := range artifacts {
		n := b.node(artifact.Path)
		if b.seen(n) {
			continue
		}

		deps, err := b.probe(ctx, n)
		if err != nil {
			return nil, err
		}
		frontier = b.merge(frontier, deps)
	}

	b.logger.Debug("seeded closure",
		interfaces.F("artifacts", len(artifacts)),
		interfaces.F("dependencies", b.result.Len()))

	return b.expand(ctx, frontier)
}

// Expand computes the closure of an initial dependency set that was already
// extracted from the artifacts.
func (b *ClosureBuilder) Expand(ctx context.Context, initial []string) (*entities.ClosureSet, error) {
	b.reset()
	return b.expand(ctx, b.merge(nil, initial))
}

// Probes returns the number of extractor calls made by the last run
func (b *ClosureBuilder) Probes() int {
	return b.probes
}

func (b *ClosureBuilder) reset() {
	b.result = entities.NewClosureSet()
	b.visited = make(map[string]struct{})
	b.probes = 0
}

func (b *ClosureBuilder) expand(ctx context.Context, frontier []node) (*entities.ClosureSet, error) {
	for depth := 1; len(frontier) > 0; depth++ {
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].path < frontier[j].path })

		var next []node
		for _, n := range frontier {
			if b.seen(n) {
				continue
			}

			deps, err := b.probe(ctx, n)
			if err != nil {
				return nil, err
			}
			next = b.merge(next, deps)
		}

		b.logger.Debug("expanded closure frontier",
			interfaces.F("depth", depth),
			interfaces.F("probed", len(frontier)),
			interfaces.F("new", len(next)),
			interfaces.F("total", b.result.Len()))

		frontier = next
	}

	return b.result, nil
}

func (b *ClosureBuilder) node(path string) node {
	return node{path: filepath.Clean(path), identity: b.resolver.Canonical(path)}
}

// probe marks n visited and runs the extractor on its path
func (b *ClosureBuilder) probe(ctx context.Context, n node) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("closure computation cancelled: %w", err)
	}

	b.visited[n.identity] = struct{}{}
	b.probes++

	deps, err := b.extractor.Extract(ctx, n.path, b.filter)
	if err != nil {
		return nil, fmt.Errorf("failed to extract dependencies of %s: %w", n.path, err)
	}

	b.logger.Debug("probed", interfaces.F("path", n.path), interfaces.F("dependencies", len(deps)))
	return deps, nil
}

func (b *ClosureBuilder) seen(n node) bool {
	_, ok := b.visited[n.identity]
	return ok
}

// merge adds deps to the result set and appends the ones that were new to frontier.
// A dependency whose identity is already a member is dropped, whatever path reached it.
func (b *ClosureBuilder) merge(frontier []node, deps []string) []node {
	for _, dep := range deps {
		n := b.node(dep)
		if b.result.AddAs(n.identity, n.path) {
			frontier = append(frontier, n)
		}
	}
	return frontier
}
