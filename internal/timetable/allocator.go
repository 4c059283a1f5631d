package timetable

import (
	"math"
	"sort"

	"go.uber.org/zap"
)

// AllocationReport summarises a greedy pass.
type AllocationReport struct {
	HoursPlaced   int                 `json:"hours_placed"`
	HoursRequired int                 `json:"hours_required"`
	SuccessRate   float64             `json:"success_rate"`
	Failed        []FailedAssignment  `json:"failed"`
	Order         []PrioritizedDemand `json:"order,omitempty"`
}

// PrioritizedDemand is an obligation with the slack it had on the initial grid.
type PrioritizedDemand struct {
	Obligation Obligation `json:"obligation"`
	Available  int        `json:"available"`
	Priority   float64    `json:"-"`
}

// Allocator places obligations most-constrained first.
type Allocator struct {
	validator *Validator
	order     ScanOrder
	logger    *zap.Logger
}

func NewAllocator(validator *Validator, order ScanOrder, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{validator: validator, order: order, logger: logger}
}

// Prioritize ranks obligations by hours over available slots on s, highest
// first. Obligations with no available slot rank first. The sort is stable.
func (a *Allocator) Prioritize(s *Schedule, obligations []Obligation) []PrioritizedDemand {
	slots := a.order.slots()
	demands := make([]PrioritizedDemand, 0, len(obligations))
	for _, o := range obligations {
		available := 0
		for _, slot := range slots {
			if a.validator.IsSlotAvailable(s, o.Teacher, o.Class, slot) {
				available++
			}
		}
		priority := math.Inf(1)
		if available > 0 {
			priority = float64(o.Hours) / float64(available)
		}
		demands = append(demands, PrioritizedDemand{Obligation: o, Available: available, Priority: priority})
	}
	sort.SliceStable(demands, func(i, j int) bool {
		return demands[i].Priority > demands[j].Priority
	})
	return demands
}

// Score rates slot for teacher: a morning bonus plus a bonus per adjacent
// hour the teacher already teaches that day.
func (a *Allocator) Score(s *Schedule, teacher string, slot TimeSlot) int {
	rules := a.validator.rules
	score := 0
	if rules.isMorning(slot.Hour) {
		score += rules.MorningBonus
	}
	for _, adj := range []int{slot.Hour - 1, slot.Hour + 1} {
		if !rules.Calendar.HasHour(adj) {
			continue
		}
		if _, busy := s.TeacherAt(teacher, TimeSlot{Day: slot.Day, Hour: adj}); busy {
			score += rules.AdjacencyBonus
		}
	}
	return score
}

// BestSlot returns the highest scoring available slot. The first slot in
// scan order wins a tie.
func (a *Allocator) BestSlot(s *Schedule, teacher, class string) (TimeSlot, bool) {
	var (
		best      TimeSlot
		bestScore = -1
	)
	for _, slot := range a.order.slots() {
		if !a.validator.IsSlotAvailable(s, teacher, class, slot) {
			continue
		}
		if score := a.Score(s, teacher, slot); score > bestScore {
			best, bestScore = slot, score
		}
	}
	return best, bestScore >= 0
}

// Allocate fills s greedily and reports what could not be placed.
func (a *Allocator) Allocate(s *Schedule, obligations []Obligation) AllocationReport {
	report := AllocationReport{HoursRequired: TotalHours(obligations)}
	report.Order = a.Prioritize(s, obligations)

	for _, demand := range report.Order {
		o := demand.Obligation
		placed := 0
		for placed < o.Hours {
			slot, ok := a.BestSlot(s, o.Teacher, o.Class)
			if !ok {
				break
			}
			s.Place(slot, Placement{Class: o.Class, Teacher: o.Teacher, Subject: o.Subject})
			placed++
		}
		report.HoursPlaced += placed
		if placed < o.Hours {
			report.Failed = append(report.Failed, FailedAssignment{
				Teacher:   o.Teacher,
				Class:     o.Class,
				Subject:   o.Subject,
				Remaining: o.Hours - placed,
				Allocated: placed,
			})
		}
	}
	report.SuccessRate = successRate(report.HoursPlaced, report.HoursRequired)

	a.logger.Info("allocation finished",
		zap.Int("obligations", len(obligations)),
		zap.Int("hours_placed", report.HoursPlaced),
		zap.Int("hours_required", report.HoursRequired),
		zap.Int("failed", len(report.Failed)),
	)
	return report
}

func successRate(placed, required int) float64 {
	if required == 0 {
		return 1
	}
	return float64(placed) / float64(required)
}
