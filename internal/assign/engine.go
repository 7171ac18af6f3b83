// Package assign places waiting people into rooms.
//
// The engine is a first-fit pass over a priority queue: people are taken
// furthest-from-base first, and each one goes to the first room on the ladder
// that still has a free bed. The ladder is the fixed global room order (dorm
// creation order, then room number) and never changes during a pass.
//
// Compute is pure and works on a snapshot; Service persists its result as one batch.
package assign

import (
	"cmp"
	"slices"

	"dorm-assignment-backend/internal/model"
	"dorm-assignment-backend/internal/store"
)

// Plan is the outcome of one engine run over a snapshot.
type Plan struct {
	// Placements are in processing order.
	Placements []store.Placement
	// Waiting holds the IDs of people left without a bed, in processing order.
	Waiting []int64
}

// AssignedCount returns the number of people placed.
func (p Plan) AssignedCount() int {
	return len(p.Placements)
}

// WaitingCount returns the number of people left waiting.
func (p Plan) WaitingCount() int {
	return len(p.Waiting)
}

// Order returns waiting people in processing order: distance descending, ties
// kept in input (arrival) order. People not in the waiting state are dropped.
func Order(people []model.Person) []model.Person {
	queue := make([]model.Person, 0, len(people))
	for _, p := range people {
		if p.State == model.StateWaiting || p.State == "" {
			queue = append(queue, p)
		}
	}
	slices.SortStableFunc(queue, func(a, b model.Person) int {
		return cmp.Compare(b.Distance, a.Distance)
	})
	return queue
}

// Compute runs the first-fit pass. ladder must already be in ladder order and carry
// live occupancy; neither argument is modified.
func Compute(people []model.Person, ladder []store.RoomSlot) Plan {
	queue := Order(people)
	if len(queue) == 0 {
		return Plan{}
	}

	free := make([]int, len(ladder))
	total := 0
	for i, slot := range ladder {
		free[i] = slot.Remaining()
		total += free[i]
	}

	plan := Plan{Placements: make([]store.Placement, 0, min(total, len(queue)))}

	// Rungs only ever lose capacity, so the first rung with a free bed never moves
	// backwards and the scan can resume from it.
	rung := 0
	for i, person := range queue {
		if total == 0 {
			for _, rest := range queue[i:] {
				plan.Waiting = append(plan.Waiting, rest.ID)
			}
			break
		}
		for free[rung] == 0 {
			rung++
		}

		plan.Placements = append(plan.Placements, store.Placement{PersonID: person.ID, RoomID: ladder[rung].RoomID})
		free[rung]--
		total--
	}
	return plan
}
