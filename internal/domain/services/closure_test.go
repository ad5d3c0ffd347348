package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ochairo/libbundle/internal/domain/entities"
)

// mockExtractor serves dependencies from an in-memory graph and counts probes
type mockExtractor struct {
	graph map[string][]string
	calls map[string]int
	fail  map[string]error
}

func newMockExtractor(graph map[string][]string) *mockExtractor {
	return &mockExtractor{graph: graph, calls: make(map[string]int), fail: make(map[string]error)}
}

func (m *mockExtractor) Extract(_ context.Context, path, filter string) ([]string, error) {
	m.calls[path]++
	if err, ok := m.fail[path]; ok {
		return nil, err
	}
	var deps []string
	for _, dep := range m.graph[path] {
		if filter != "" && !strings.Contains(dep, filter) {
			continue
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func artifacts(paths ...string) []entities.Artifact {
	out := make([]entities.Artifact, 0, len(paths))
	for _, p := range paths {
		out = append(out, entities.Artifact{Path: p, Kind: entities.KindExecutable})
	}
	return out
}

func TestClosureBuilder_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		graph     map[string][]string
		artifacts []string
		filter    string
		want      []string
	}{
		{
			name: "chain",
			graph: map[string][]string{
				"/src/app":       {"/lib/libA.so.1"},
				"/lib/libA.so.1": {"/lib/libB.so.2"},
			},
			artifacts: []string{"/src/app"},
			want:      []string{"/lib/libA.so.1", "/lib/libB.so.2"},
		},
		{
			name: "cycle",
			graph: map[string][]string{
				"/src/app":     {"/lib/libA.so"},
				"/lib/libA.so": {"/lib/libB.so"},
				"/lib/libB.so": {"/lib/libA.so"},
			},
			artifacts: []string{"/src/app"},
			want:      []string{"/lib/libA.so", "/lib/libB.so"},
		},
		{
			name: "self loop",
			graph: map[string][]string{
				"/src/app":     {"/lib/libA.so"},
				"/lib/libA.so": {"/lib/libA.so"},
			},
			artifacts: []string{"/src/app"},
			want:      []string{"/lib/libA.so"},
		},
		{
			name: "no dependencies",
			graph: map[string][]string{
				"/src/static": nil,
			},
			artifacts: []string{"/src/static"},
			want:      []string{},
		},
		{
			name: "shared dependency across artifacts",
			graph: map[string][]string{
				"/src/a":         {"/lib/libc.so.6", "/lib/libm.so.6"},
				"/src/b":         {"/lib/libc.so.6"},
				"/lib/libm.so.6": {"/lib/libc.so.6"},
			},
			artifacts: []string{"/src/a", "/src/b"},
			want:      []string{"/lib/libc.so.6", "/lib/libm.so.6"},
		},
		{
			name: "filter applies at every level",
			graph: map[string][]string{
				"/src/app":             {"/opt/pkg.7/libx.so.1", "/lib/libc.so.6"},
				"/opt/pkg.7/libx.so.1": {"/opt/pkg.7/liby.so.1", "/lib/libm.so.6"},
				"/opt/pkg.7/liby.so.1": {"/lib/libpthread.so.0"},
				"/lib/libc.so.6":       {"/opt/pkg.7/never.so.1"},
			},
			artifacts: []string{"/src/app"},
			filter:    "pkg.7",
			want:      []string{"/opt/pkg.7/libx.so.1", "/opt/pkg.7/liby.so.1"},
		},
		{
			name: "unclean paths are deduplicated",
			graph: map[string][]string{
				"/src/app":       {"/lib/libA.so.1", "/lib/../lib/libA.so.1"},
				"/lib/libA.so.1": {"/lib//libA.so.1"},
			},
			artifacts: []string{"/src/app"},
			want:      []string{"/lib/libA.so.1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := newMockExtractor(tt.graph)
			builder := NewClosureBuilder(extractor, nil, tt.filter, nil)

			closure, err := builder.Resolve(context.Background(), artifacts(tt.artifacts...))
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			if got := closure.Paths(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}

			for path, n := range extractor.calls {
				if n != 1 {
					t.Errorf("%s probed %d times, want 1", path, n)
				}
			}
		})
	}
}

func TestClosureBuilder_DiamondProbesEachNodeOnce(t *testing.T) {
	extractor := newMockExtractor(map[string][]string{
		"/src/app":     {"/lib/libB.so", "/lib/libC.so"},
		"/lib/libB.so": {"/lib/libD.so"},
		"/lib/libC.so": {"/lib/libD.so"},
		"/lib/libD.so": {"/lib/libE.so"},
	})
	builder := NewClosureBuilder(extractor, nil, "", nil)

	closure, err := builder.Resolve(context.Background(), artifacts("/src/app"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if closure.Len() != 4 {
		t.Errorf("closure size = %d, want 4", closure.Len())
	}
	if extractor.calls["/lib/libD.so"] != 1 {
		t.Errorf("libD probed %d times, want 1", extractor.calls["/lib/libD.so"])
	}
	// app, B, C, D, E
	if builder.Probes() != 5 {
		t.Errorf("Probes() = %d, want 5", builder.Probes())
	}
}

func TestClosureBuilder_ArtifactThatIsAlsoDependency(t *testing.T) {
	extractor := newMockExtractor(map[string][]string{
		"/src/app":         {"/src/libfoo.so.1"},
		"/src/libfoo.so.1": {"/lib/libc.so.6"},
	})
	builder := NewClosureBuilder(extractor, nil, "", nil)

	closure, err := builder.Resolve(context.Background(), artifacts("/src/app", "/src/libfoo.so.1"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := []string{"/lib/libc.so.6", "/src/libfoo.so.1"}
	if got := closure.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
	if extractor.calls["/src/libfoo.so.1"] != 1 {
		t.Errorf("libfoo probed %d times, want 1", extractor.calls["/src/libfoo.so.1"])
	}
}

// aliasResolver maps directory aliases onto the directory they point to
type aliasResolver map[string]string

func (r aliasResolver) Canonical(path string) string {
	for alias, target := range r {
		if strings.HasPrefix(path, alias+"/") {
			return target + strings.TrimPrefix(path, alias)
		}
	}
	return path
}

func TestClosureBuilder_AliasedPathsAreOneMember(t *testing.T) {
	extractor := newMockExtractor(map[string][]string{
		"/src/app1":        {"/lib/libz.so.1"},
		"/src/app2":        {"/lib64/libz.so.1"},
		"/lib/libz.so.1":   {"/lib/libc.so.6"},
		"/lib64/libz.so.1": {"/lib64/libc.so.6"},
	})
	builder := NewClosureBuilder(extractor, aliasResolver{"/lib64": "/lib"}, "", nil)

	closure, err := builder.Resolve(context.Background(), artifacts("/src/app1", "/src/app2"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// The first reported path is kept
	want := []string{"/lib/libc.so.6", "/lib/libz.so.1"}
	if got := closure.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
	if n := extractor.calls["/lib64/libz.so.1"]; n != 0 {
		t.Errorf("alias examined %d times, want 0", n)
	}
	// app1, app2, libz, libc
	if builder.Probes() != 4 {
		t.Errorf("Probes() = %d, want 4", builder.Probes())
	}
}

func TestClosureBuilder_AliasedArtifactsAreExaminedOnce(t *testing.T) {
	extractor := newMockExtractor(map[string][]string{
		"/src/lib/libfoo.so.1": {"/lib/libc.so.6"},
		"/src/l/libfoo.so.1":   {"/lib/libc.so.6"},
	})
	builder := NewClosureBuilder(extractor, aliasResolver{"/src/l": "/src/lib"}, "", nil)

	closure, err := builder.Resolve(context.Background(), artifacts("/src/l/libfoo.so.1", "/src/lib/libfoo.so.1"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got := closure.Paths(); !reflect.DeepEqual(got, []string{"/lib/libc.so.6"}) {
		t.Errorf("Resolve() = %v", got)
	}
	if builder.Probes() != 2 {
		t.Errorf("Probes() = %d, want 2", builder.Probes())
	}
	if extractor.calls["/src/lib/libfoo.so.1"] != 0 {
		t.Error("second alias of an artifact should not be examined")
	}
}

func TestClosureBuilder_Deterministic(t *testing.T) {
	graph := map[string][]string{
		"/src/a":     {"/lib/l3.so", "/lib/l1.so"},
		"/src/b":     {"/lib/l2.so"},
		"/lib/l1.so": {"/lib/l4.so", "/lib/l2.so"},
		"/lib/l4.so": {"/lib/l1.so"},
	}

	first, err := NewClosureBuilder(newMockExtractor(graph), nil, "", nil).Resolve(context.Background(), artifacts("/src/a", "/src/b"))
	if err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}

	builder := NewClosureBuilder(newMockExtractor(graph), nil, "", nil)
	second, err := builder.Resolve(context.Background(), artifacts("/src/a", "/src/b"))
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	// a reused builder starts from scratch
	third, err := builder.Resolve(context.Background(), artifacts("/src/a", "/src/b"))
	if err != nil {
		t.Fatalf("third Resolve() error = %v", err)
	}

	if !reflect.DeepEqual(first.Paths(), second.Paths()) || !reflect.DeepEqual(second.Paths(), third.Paths()) {
		t.Errorf("closures differ: %v / %v / %v", first.Paths(), second.Paths(), third.Paths())
	}
}

func TestClosureBuilder_Expand(t *testing.T) {
	extractor := newMockExtractor(map[string][]string{
		"/lib/libA.so": {"/lib/libB.so"},
		"/lib/libB.so": {"/lib/libA.so"},
	})
	builder := NewClosureBuilder(extractor, nil, "", nil)

	closure, err := builder.Expand(context.Background(), []string{"/lib/libA.so"})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	want := []string{"/lib/libA.so", "/lib/libB.so"}
	if got := closure.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
	if extractor.calls["/lib/libA.so"] != 1 || extractor.calls["/lib/libB.so"] != 1 {
		t.Errorf("unexpected probe counts: %v", extractor.calls)
	}
}

func TestClosureBuilder_ExtractorErrorIsFatal(t *testing.T) {
	extractor := newMockExtractor(map[string][]string{
		"/src/app": {"/lib/libA.so"},
	})
	toolErr := &entities.ToolInvocationError{Tool: "ldd", Target: "/lib/libA.so", ExitCode: 139}
	extractor.fail["/lib/libA.so"] = toolErr

	builder := NewClosureBuilder(extractor, nil, "", nil)
	_, err := builder.Resolve(context.Background(), artifacts("/src/app"))
	if err == nil {
		t.Fatal("Resolve() should fail when the extractor fails")
	}

	var got *entities.ToolInvocationError
	if !errors.As(err, &got) {
		t.Fatalf("error %v should wrap ToolInvocationError", err)
	}
	if got.ExitCode != 139 {
		t.Errorf("ExitCode = %d, want 139", got.ExitCode)
	}
}

func TestClosureBuilder_CancelledContext(t *testing.T) {
	extractor := newMockExtractor(map[string][]string{"/src/app": {"/lib/libA.so"}})
	builder := NewClosureBuilder(extractor, nil, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := builder.Resolve(ctx, artifacts("/src/app"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
	if len(extractor.calls) != 0 {
		t.Errorf("no probe should run after cancellation, got %v", extractor.calls)
	}
}
