package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Maestro/internal/domain"
)

// Node — узел в графе зависимостей.
type Node struct {
	// Step — шаг плана.
	Step *domain.Step

	// ID — идентификатор узла (совпадает со Step.ID).
	ID string

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node

	// Level — индекс уровня, вычисленный при layering.
	Level int
}

// Levels — результат топологического layering:
// Levels[i] — максимальное множество шагов, между которыми нет
// зависимостей, и все зависимости которых лежат в уровнях < i.
// Внутри уровня узлы отсортированы по Step.Order.
type Levels [][]*Node

// StepCount возвращает общее количество шагов во всех уровнях.
func (l Levels) StepCount() int {
	n := 0
	for _, level := range l {
		n += len(level)
	}
	return n
}

// Graph — граф зависимостей шагов плана.
type Graph struct {
	// Nodes — все узлы графа (stepID → Node).
	Nodes map[string]*Node

	// Levels — уровни выполнения.
	Levels Levels
}

// Build строит граф из набора шагов и раскладывает его по уровням.
//
// Порядок проверок:
//  1. Пустые и дублирующиеся ID шагов
//  2. Зависимости на несуществующие шаги (ErrUnknownDependency)
//  3. Циклы (ErrCyclicDependency) — алгоритмом Кана
//
// Пустой список шагов валиден и даёт ноль уровней.
func Build(steps []domain.Step) (*Graph, error) {
	g := &Graph{
		Nodes: make(map[string]*Node, len(steps)),
	}

	// Первый проход: создаём узлы, проверяем ID
	for i := range steps {
		step := &steps[i]

		if step.ID == "" {
			return nil, NewValidationError("", "id", "step has empty ID", ErrEmptyStepID)
		}
		if _, exists := g.Nodes[step.ID]; exists {
			return nil, NewValidationError(step.ID, "id",
				fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
		}

		g.Nodes[step.ID] = &Node{
			Step: step,
			ID:   step.ID,
		}
	}

	// Второй проход: связываем по зависимостям
	for i := range steps {
		step := &steps[i]
		node := g.Nodes[step.ID]

		for _, depID := range step.DependsOn {
			if depID == step.ID {
				return nil, NewValidationError(step.ID, "depends_on",
					fmt.Sprintf("step %s depends on itself", step.ID), ErrSelfDependency)
			}

			depNode, exists := g.Nodes[depID]
			if !exists {
				return nil, NewValidationError(step.ID, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", depID), ErrUnknownDependency)
			}

			g.addEdge(depNode, node)
		}
	}

	// Раскладываем по уровням, попутно проверяя циклы
	levels, err := g.layer()
	if err != nil {
		return nil, err
	}
	g.Levels = levels

	return g, nil
}

// addEdge добавляет ребро from → to.
// Дубликаты игнорируются, чтобы не задваивать InDegree.
func (g *Graph) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// layer выполняет послойную топологическую сортировку (алгоритм Кана):
// на каждой итерации снимается весь фронт узлов с inDegree = 0.
// O(V+E). Возвращает ErrCyclicDependency, если остались узлы.
func (g *Graph) layer() (Levels, error) {
	// Копируем inDegree, чтобы не модифицировать узлы
	inDegree := make(map[string]int, len(g.Nodes))
	for id, node := range g.Nodes {
		inDegree[id] = node.InDegree
	}

	// Начальный фронт — узлы без зависимостей
	frontier := make([]*Node, 0)
	for _, node := range g.Nodes {
		if node.InDegree == 0 {
			frontier = append(frontier, node)
		}
	}

	levels := make(Levels, 0)
	placed := 0

	for len(frontier) > 0 {
		sortByOrder(frontier)

		level := frontier
		for _, node := range level {
			node.Level = len(levels)
		}
		placed += len(level)

		// Следующий фронт: зависимые узлы, у которых все
		// зависимости уже размещены
		next := make([]*Node, 0)
		for _, node := range level {
			for _, dependent := range node.Dependents {
				inDegree[dependent.ID]--
				if inDegree[dependent.ID] == 0 {
					next = append(next, dependent)
				}
			}
		}

		levels = append(levels, level)
		frontier = next
	}

	// Если не все узлы размещены — есть цикл
	if placed != len(g.Nodes) {
		return nil, fmt.Errorf("%w: %d of %d steps unreachable",
			ErrCyclicDependency, len(g.Nodes)-placed, len(g.Nodes))
	}

	return levels, nil
}

// sortByOrder сортирует узлы по Step.Order, при равенстве — по ID.
// Даёт детерминированный порядок обхода внутри уровня.
func sortByOrder(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Step.Order != nodes[j].Step.Order {
			return nodes[i].Step.Order < nodes[j].Step.Order
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// GetNode возвращает узел по ID.
func (g *Graph) GetNode(id string) *Node {
	return g.Nodes[id]
}

// Size возвращает количество узлов в графе.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// TransitiveDependents возвращает ID всех шагов, транзитивно
// зависящих от заданного. Используется для пропуска зависимых
// шагов при падении.
func (g *Graph) TransitiveDependents(stepID string) map[string]bool {
	result := make(map[string]bool)

	start, exists := g.Nodes[stepID]
	if !exists {
		return result
	}

	queue := append([]*Node(nil), start.Dependents...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if result[node.ID] {
			continue
		}
		result[node.ID] = true
		queue = append(queue, node.Dependents...)
	}

	return result
}
