package service

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/library-duty-api/internal/models"
	appErrors "github.com/noah-isme/library-duty-api/pkg/errors"
)

const (
	defaultMaxAttempts = 1000
	defaultTargetScore = 0.95
	defaultWorkers     = 4
)

// dutySlot is one assignable (weekday, room) pair. Derived from rooms at the
// start of a run, never persisted.
type dutySlot struct {
	Day      int
	RoomID   string
	Capacity int
}

// buildSlotCatalog expands rooms into the full slot catalog: Monday through
// Friday for every room, in day-major order. An empty room list yields an
// empty catalog, which the caller treats as infeasible.
func buildSlotCatalog(rooms []models.Room) []dutySlot {
	slots := make([]dutySlot, 0, (models.MaxDutyDay-models.MinDutyDay+1)*len(rooms))
	for day := models.MinDutyDay; day <= models.MaxDutyDay; day++ {
		for _, room := range rooms {
			slots = append(slots, dutySlot{Day: day, RoomID: room.ID, Capacity: room.Capacity})
		}
	}
	return slots
}

// buildCandidate runs one randomized constructive pass. The shuffle is the
// sole source of diversity between attempts; everything after it is
// deterministic. Returns nil when any student cannot reach the full quota,
// so partial candidates never escape.
func buildCandidate(students []models.Student, slots []dutySlot, term models.Term, cons Constraints, rng *rand.Rand) []models.Assignment {
	order := make([]models.Student, len(students))
	copy(order, students)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	state := newAttemptState(slots, cons, term)
	for i := range order {
		student := &order[i]
		for q := 0; q < cons.MaxAssignmentsPerStudent; q++ {
			idx := state.pickSlot(student)
			if idx < 0 {
				return nil
			}
			state.place(student, state.slots[idx])
		}
	}
	return state.assignments
}

// pickSlot selects the eligible slot whose weekday currently carries the
// fewest assignments, ties broken by catalog order. Returns -1 when no slot
// is eligible.
func (a *attemptState) pickSlot(student *models.Student) int {
	best := -1
	for i := range a.slots {
		if !a.canAssign(student, a.slots[i]) {
			continue
		}
		if best < 0 || a.dayLoad[a.slots[i].Day] < a.dayLoad[a.slots[best].Day] {
			best = i
		}
	}
	return best
}

// dutySearch drives repeated build-validate-score cycles across a worker
// pool and keeps the best-scoring valid candidate.
type dutySearch struct {
	cons        Constraints
	maxAttempts int
	targetScore float64
	workers     int
	seed        int64
	logger      *zap.Logger
	metrics     *MetricsService
}

type searchResult struct {
	assignments []models.Assignment
	score       float64
	attempts    int
}

type scoredCandidate struct {
	assignments []models.Assignment
	score       float64
}

// run executes up to maxAttempts independent attempts. It stops early once a
// candidate reaches targetScore, and honours ctx cancellation by returning
// the best candidate found so far. Only when no valid candidate was ever
// produced does it report infeasibility.
func (s *dutySearch) run(ctx context.Context, students []models.Student, slots []dutySlot, term models.Term) (*searchResult, error) {
	workers := s.workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	budget := int64(s.maxAttempts)
	if budget <= 0 {
		budget = defaultMaxAttempts
	}
	target := s.targetScore
	if target <= 0 {
		target = defaultTargetScore
	}
	seed := s.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan scoredCandidate, workers)
	var attempts atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed + int64(workerID)))
			for {
				if attempts.Add(1) > budget {
					return
				}
				select {
				case <-runCtx.Done():
					return
				default:
				}

				s.metrics.ObserveSearchAttempt()
				candidate := buildCandidate(students, slots, term, s.cons, rng)
				if candidate == nil {
					continue
				}
				if !validateCandidate(candidate, students, slots, s.cons) {
					// Disagreement between builder and validator is a
					// builder bug, not infeasibility.
					s.logger.Error("builder produced invalid candidate",
						zap.String("term", string(term)),
						zap.Int("worker", workerID))
					continue
				}
				s.metrics.ObserveValidCandidate()

				select {
				case results <- scoredCandidate{assignments: candidate, score: scoreCandidate(candidate, students, slots, s.cons)}:
				case <-runCtx.Done():
					return
				}
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var best *searchResult
	for item := range results {
		if best == nil || item.score > best.score {
			best = &searchResult{assignments: item.assignments, score: item.score}
			s.metrics.SetBestScore(item.score)
			if item.score >= target {
				cancel()
			}
		}
	}

	executed := attempts.Load()
	if executed > budget {
		executed = budget
	}
	if best == nil {
		return nil, appErrors.Clone(appErrors.ErrInfeasible, "search exhausted attempt budget without a valid candidate")
	}
	best.attempts = int(executed)
	return best, nil
}
