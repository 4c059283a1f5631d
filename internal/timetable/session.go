package timetable

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// GenerationResult is what one run produced.
type GenerationResult struct {
	Success       bool               `json:"success"`
	HoursPlaced   int                `json:"hours_placed"`
	HoursRequired int                `json:"hours_required"`
	SuccessRate   float64            `json:"success_rate"`
	Failed        []FailedAssignment `json:"failed"`
	Allocation    AllocationReport   `json:"allocation"`
	Repair        *RepairReport      `json:"repair,omitempty"`
	Quality       int                `json:"quality"`
}

// Option customises a Session.
type Option func(*Session)

func WithRules(rules Rules) Option {
	return func(s *Session) { s.rules = rules }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithScanOrder changes the slot enumeration the allocator uses.
func WithScanOrder(order ScanOrder) Option {
	return func(s *Session) { s.order = &order }
}

// WithRepair toggles the repair stage. It is on by default.
func WithRepair(enabled bool) Option {
	return func(s *Session) { s.repair = enabled }
}

// Session owns the state of a single generation run. It is not safe for
// concurrent use; run several sessions to parallelise.
type Session struct {
	rules       Rules
	logger      *zap.Logger
	order       *ScanOrder
	repair      bool
	obligations []Obligation
	classes     []string

	validator *Validator
	schedule  *Schedule
	ledger    *failedLedger
}

// NewSession validates obligations and prepares an empty schedule.
func NewSession(obligations []Obligation, opts ...Option) (*Session, error) {
	s := &Session{
		rules:  DefaultRules(),
		logger: zap.NewNop(),
		repair: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	if s.order == nil {
		order := CanonicalOrder(s.rules.Calendar)
		s.order = &order
	}

	seen := make(map[ObligationKey]struct{}, len(obligations))
	for _, o := range obligations {
		if err := o.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[o.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate obligation %s/%s/%s", ErrInvalidObligation, o.Teacher, o.Class, o.Subject)
		}
		seen[o.Key()] = struct{}{}
	}

	s.obligations = append([]Obligation(nil), obligations...)
	s.classes = lo.Uniq(lo.Map(obligations, func(o Obligation, _ int) string { return o.Class }))
	sort.Strings(s.classes)
	s.validator = NewValidator(s.rules)
	s.schedule = NewSchedule(s.rules.Calendar)
	s.ledger = newFailedLedger(nil)
	return s, nil
}

// Generate allocates every obligation on a fresh grid and, unless
// disabled, repairs what the allocator left behind. An *InvariantError is
// returned together with the partial result.
func (s *Session) Generate() (*GenerationResult, error) {
	s.schedule = NewSchedule(s.rules.Calendar)

	allocation := NewAllocator(s.validator, *s.order, s.logger).Allocate(s.schedule, s.obligations)
	s.ledger = newFailedLedger(allocation.Failed)

	result := &GenerationResult{Allocation: allocation}
	var runErr error
	if s.repair && s.ledger.Len() > 0 {
		report, err := NewRepairEngine(s.validator, s.logger).Repair(s.schedule, s.ledger, s.classes)
		result.Repair = &report
		runErr = err
	}

	result.HoursRequired = allocation.HoursRequired
	result.HoursPlaced = s.schedule.Len()
	result.Failed = s.ledger.Rows()
	result.Success = len(result.Failed) == 0
	result.SuccessRate = successRate(result.HoursPlaced, result.HoursRequired)
	result.Quality = ScheduleQuality(GridFromSchedule(s.schedule))

	s.logger.Info("generation finished",
		zap.Bool("success", result.Success),
		zap.Int("hours_placed", result.HoursPlaced),
		zap.Int("hours_required", result.HoursRequired),
		zap.Int("quality", result.Quality),
	)
	return result, runErr
}

// SanityCheck returns an *InvariantError when the current grid breaks any
// invariant.
func (s *Session) SanityCheck() error {
	if violations := s.validator.SanityCheck(s.schedule); len(violations) > 0 {
		return &InvariantError{Violations: violations}
	}
	return nil
}

func (s *Session) ExportTeacherView() TeacherView {
	return TeacherViewOf(s.schedule)
}

func (s *Session) ExportClassView() ClassView {
	return ClassViewOf(s.schedule)
}

// Schedule exposes the grid. Callers must not mutate it while the session
// is in use.
func (s *Session) Schedule() *Schedule {
	return s.schedule
}

func (s *Session) Rules() Rules {
	return s.rules
}

func (s *Session) Obligations() []Obligation {
	return append([]Obligation(nil), s.obligations...)
}

// Classes returns every class named by the obligations, sorted.
func (s *Session) Classes() []string {
	return append([]string(nil), s.classes...)
}

// Teachers returns every teacher named by the obligations, sorted.
func (s *Session) Teachers() []string {
	teachers := lo.Uniq(lo.Map(s.obligations, func(o Obligation, _ int) string { return o.Teacher }))
	sort.Strings(teachers)
	return teachers
}

func (s *Session) Failed() []FailedAssignment {
	return s.ledger.Rows()
}
