package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Maestro/internal/domain"
)

func TestBuild_SimpleChain(t *testing.T) {
	steps := []domain.Step{
		{ID: "A", AgentID: "a1"},
		{ID: "B", AgentID: "a1", DependsOn: []string{"A"}},
		{ID: "C", AgentID: "a1", DependsOn: []string{"B"}},
	}

	g, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}

	// Цепочка — три уровня по одному шагу
	if len(g.Levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(g.Levels))
	}
	for i, want := range []string{"A", "B", "C"} {
		if len(g.Levels[i]) != 1 || g.Levels[i][0].ID != want {
			t.Errorf("level %d: expected [%s], got %v", i, want, levelIDs(g.Levels[i]))
		}
	}
}

func TestBuild_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	steps := []domain.Step{
		{ID: "A"},
		{ID: "B", DependsOn: []string{"A"}},
		{ID: "C", DependsOn: []string{"A"}},
		{ID: "D", DependsOn: []string{"B", "C"}},
	}

	g, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(g.Levels))
	}
	if len(g.Levels[1]) != 2 {
		t.Errorf("expected 2 steps in level 1, got %v", levelIDs(g.Levels[1]))
	}

	// Проверяем inDegree
	if g.GetNode("A").InDegree != 0 {
		t.Error("A should have inDegree 0")
	}
	if g.GetNode("D").InDegree != 2 {
		t.Error("D should have inDegree 2")
	}
}

func TestBuild_Empty(t *testing.T) {
	g, err := Build(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Levels) != 0 {
		t.Errorf("expected 0 levels for empty step set, got %d", len(g.Levels))
	}
	if g.Levels.StepCount() != 0 {
		t.Errorf("expected 0 steps, got %d", g.Levels.StepCount())
	}
}

func TestBuild_CyclicDependency(t *testing.T) {
	steps := []domain.Step{
		{ID: "A", DependsOn: []string{"C"}},
		{ID: "B", DependsOn: []string{"A"}},
		{ID: "C", DependsOn: []string{"B"}},
	}

	_, err := Build(steps)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestBuild_TwoStepCycle(t *testing.T) {
	steps := []domain.Step{
		{ID: "A", DependsOn: []string{"B"}},
		{ID: "B", DependsOn: []string{"A"}},
	}

	_, err := Build(steps)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestBuild_UnknownDependency(t *testing.T) {
	steps := []domain.Step{
		{ID: "A"},
		{ID: "B", DependsOn: []string{"missing"}},
	}

	_, err := Build(steps)
	if !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}

	// Ошибка должна называть отсутствующий шаг
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected ValidationError")
	}
	if verr.StepID != "B" {
		t.Errorf("expected error on step B, got %s", verr.StepID)
	}
}

func TestBuild_UnknownDependencyBeforeCycle(t *testing.T) {
	// Набор содержит и цикл, и неизвестную зависимость:
	// первой должна сработать проверка неизвестной зависимости.
	steps := []domain.Step{
		{ID: "A", DependsOn: []string{"B"}},
		{ID: "B", DependsOn: []string{"A", "missing"}},
	}

	_, err := Build(steps)
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("expected ErrUnknownDependency, got %v", err)
	}
}

func TestBuild_SelfDependency(t *testing.T) {
	steps := []domain.Step{
		{ID: "A", DependsOn: []string{"A"}},
	}

	_, err := Build(steps)
	if !errors.Is(err, ErrSelfDependency) {
		t.Errorf("expected ErrSelfDependency, got %v", err)
	}
}

func TestBuild_DuplicateStepID(t *testing.T) {
	steps := []domain.Step{
		{ID: "A"},
		{ID: "A"},
	}

	_, err := Build(steps)
	if !errors.Is(err, ErrDuplicateStepID) {
		t.Errorf("expected ErrDuplicateStepID, got %v", err)
	}
}

func TestBuild_DependenciesInEarlierLevels(t *testing.T) {
	// Свойство: зависимости каждого шага лежат в строго
	// более раннем уровне.
	steps := []domain.Step{
		{ID: "s1"},
		{ID: "s2"},
		{ID: "s3", DependsOn: []string{"s1", "s2"}},
		{ID: "s4", DependsOn: []string{"s3"}},
		{ID: "s5", DependsOn: []string{"s1"}},
		{ID: "s6", DependsOn: []string{"s4", "s5"}},
	}

	g, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	levelOf := make(map[string]int)
	for i, level := range g.Levels {
		for _, node := range level {
			levelOf[node.ID] = i
		}
	}

	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if levelOf[dep] >= levelOf[step.ID] {
				t.Errorf("dependency %s (level %d) should be in earlier level than %s (level %d)",
					dep, levelOf[dep], step.ID, levelOf[step.ID])
			}
		}
	}
}

func TestBuild_LevelOrderDeterministic(t *testing.T) {
	steps := []domain.Step{
		{ID: "z", Order: 3},
		{ID: "a", Order: 1},
		{ID: "m", Order: 2},
	}

	g, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Levels) != 1 {
		t.Fatalf("expected 1 level, got %d", len(g.Levels))
	}

	got := levelIDs(g.Levels[0])
	want := []string{"a", "m", "z"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected order %v, got %v", want, got)
			break
		}
	}
}

func TestBuild_ConcreteScenario(t *testing.T) {
	// s1 и s2 независимы, s3 зависит от обоих: [[s1,s2],[s3]]
	steps := []domain.Step{
		{ID: "s1", Order: 1},
		{ID: "s2", Order: 2},
		{ID: "s3", Order: 3, DependsOn: []string{"s1", "s2"}},
	}

	g, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(g.Levels))
	}

	first := levelIDs(g.Levels[0])
	if len(first) != 2 || first[0] != "s1" || first[1] != "s2" {
		t.Errorf("expected level 0 = [s1 s2], got %v", first)
	}
	second := levelIDs(g.Levels[1])
	if len(second) != 1 || second[0] != "s3" {
		t.Errorf("expected level 1 = [s3], got %v", second)
	}
}

func TestTransitiveDependents(t *testing.T) {
	steps := []domain.Step{
		{ID: "A"},
		{ID: "B", DependsOn: []string{"A"}},
		{ID: "C", DependsOn: []string{"B"}},
		{ID: "D"},
	}

	g, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := g.TransitiveDependents("A")
	if !deps["B"] || !deps["C"] {
		t.Errorf("B and C should transitively depend on A, got %v", deps)
	}
	if deps["D"] {
		t.Error("D does not depend on A")
	}
	if deps["A"] {
		t.Error("A is not its own dependent")
	}

	if len(g.TransitiveDependents("C")) != 0 {
		t.Error("C has no dependents")
	}
}

// levelIDs возвращает ID узлов уровня.
func levelIDs(level []*Node) []string {
	ids := make([]string, len(level))
	for i, node := range level {
		ids[i] = node.ID
	}
	return ids
}
