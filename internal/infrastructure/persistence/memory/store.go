// Package memory implements every repository of the core on in-process maps.
// It backs the application and HTTP tests and the server's -storage=memory mode.
package memory

import (
	"sync"
	"time"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/notification"
	"github.com/obe-hub/gamification-core/internal/domain/outcome"
)

// Operation names used for fault injection and write counting.
const (
	OpLedgerInsert       = "ledger.insert"
	OpLedgerSum          = "ledger.sum"
	OpLedgerList         = "ledger.list"
	OpBonusActive        = "bonus.active"
	OpStateGet           = "state.get"
	OpStateUpsertXP      = "state.upsert_xp"
	OpStateUpsertStreak  = "state.upsert_streak"
	OpStateListTotals    = "state.list_totals"
	OpDirectoryProfile   = "directory.profile"
	OpDirectoryPeers     = "directory.peers"
	OpAcademicGrade      = "academic.grade"
	OpAcademicSubmission = "academic.submission"
	OpAcademicAssignment = "academic.assignment"
	OpEvidenceInsert     = "evidence.insert"
	OpEvidenceList       = "evidence.list"
	OpMappingBySource    = "mapping.by_source"
	OpMappingByTarget    = "mapping.by_target"
	OpAttainmentUpsert   = "attainment.upsert"
	OpAttainmentLatest   = "attainment.latest"
	OpAttainmentList     = "attainment.list"
	OpNotificationInsert = "notification.insert"
	OpNotificationList   = "notification.list"
)

type evidenceKey struct {
	gradeID string
	cloID   string
}

// Store holds all tables behind a single mutex.
type Store struct {
	mu sync.RWMutex

	ledger      []gamification.Transaction
	bonuses     []gamification.BonusEvent
	states      map[string]gamification.State
	profiles    map[string]gamification.Profile
	enrollments map[string]map[string]bool // course -> students

	grades      map[string]outcome.Grade
	submissions map[string]outcome.Submission
	assignments map[string]outcome.Assignment
	evidence    []outcome.Evidence
	evidenceIdx map[evidenceKey]bool
	mappings    []outcome.Mapping
	attainments map[outcome.AttainmentKey]outcome.Attainment

	notifications []notification.Notification

	faults faultTable
	writes map[string]int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		states:      make(map[string]gamification.State),
		profiles:    make(map[string]gamification.Profile),
		enrollments: make(map[string]map[string]bool),
		grades:      make(map[string]outcome.Grade),
		submissions: make(map[string]outcome.Submission),
		assignments: make(map[string]outcome.Assignment),
		evidenceIdx: make(map[evidenceKey]bool),
		attainments: make(map[outcome.AttainmentKey]outcome.Attainment),
		faults:      newFaultTable(),
		writes:      make(map[string]int),
	}
}

// Ledger returns the XP ledger view.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// Bonuses returns the bonus event view.
func (s *Store) Bonuses() *BonusRepo { return &BonusRepo{s: s} }

// States returns the gamification state view.
func (s *Store) States() *StateRepo { return &StateRepo{s: s} }

// Directory returns the student directory view.
func (s *Store) Directory() *DirectoryRepo { return &DirectoryRepo{s: s} }

// Academic returns the grade/submission/assignment view.
func (s *Store) Academic() *AcademicRepo { return &AcademicRepo{s: s} }

// Evidence returns the evidence view.
func (s *Store) Evidence() *EvidenceRepo { return &EvidenceRepo{s: s} }

// Mappings returns the outcome mapping view.
func (s *Store) Mappings() *MappingRepo { return &MappingRepo{s: s} }

// Attainments returns the attainment view.
func (s *Store) Attainments() *AttainmentRepo { return &AttainmentRepo{s: s} }

// Notifications returns the notification view.
func (s *Store) Notifications() *NotificationRepo { return &NotificationRepo{s: s} }

// Writes reports how many successful writes op has performed.
func (s *Store) Writes(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[op]
}

// ══════════════════════════════════════════════════════════════════════════════
// SEEDING
// ══════════════════════════════════════════════════════════════════════════════

// AddBonus registers a bonus multiplier window.
func (s *Store) AddBonus(b gamification.BonusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bonuses = append(s.bonuses, b)
}

// PutState overwrites a student's gamification state.
func (s *Store) PutState(st gamification.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.StudentID] = st
}

// AddProfile registers a student profile.
func (s *Store) AddProfile(p gamification.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.StudentID] = p
}

// Enroll adds studentID to courseID.
func (s *Store) Enroll(courseID, studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enrollments[courseID] == nil {
		s.enrollments[courseID] = make(map[string]bool)
	}
	s.enrollments[courseID][studentID] = true
}

// AddGrade registers a grade.
func (s *Store) AddGrade(g outcome.Grade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grades[g.ID] = g
}

// AddSubmission registers a submission.
func (s *Store) AddSubmission(sub outcome.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[sub.ID] = sub
}

// AddAssignment registers an assignment.
func (s *Store) AddAssignment(a outcome.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = a
}

// AddMapping registers an outcome edge.
func (s *Store) AddMapping(m outcome.Mapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings = append(s.mappings, m)
}

// AllEvidence returns a copy of the evidence table.
func (s *Store) AllEvidence() []outcome.Evidence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outcome.Evidence(nil), s.evidence...)
}

// AllTransactions returns a copy of the ledger.
func (s *Store) AllTransactions() []gamification.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]gamification.Transaction(nil), s.ledger...)
}

// AllNotifications returns a copy of the notifications table.
func (s *Store) AllNotifications() []notification.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]notification.Notification(nil), s.notifications...)
}

// ══════════════════════════════════════════════════════════════════════════════
// FAULT INJECTION
// ══════════════════════════════════════════════════════════════════════════════

type faultTable struct {
	byOp  map[string]error
	byKey map[string]map[string]error
}

func newFaultTable() faultTable {
	return faultTable{
		byOp:  make(map[string]error),
		byKey: make(map[string]map[string]error),
	}
}

// FailOn makes every call of op return err until ClearFaults.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults.byOp[op] = err
}

// FailOnKey makes op return err only for the given key (student, outcome or grade ID).
func (s *Store) FailOnKey(op, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults.byKey[op] == nil {
		s.faults.byKey[op] = make(map[string]error)
	}
	s.faults.byKey[op][key] = err
}

// ClearFaults removes every injected fault.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = newFaultTable()
}

// fault must be called with s.mu held.
func (s *Store) fault(op, key string) error {
	if err, ok := s.faults.byOp[op]; ok {
		return err
	}
	if keys, ok := s.faults.byKey[op]; ok {
		if err, ok := keys[key]; ok {
			return err
		}
	}
	return nil
}

// wrote must be called with s.mu write-locked.
func (s *Store) wrote(op string) {
	s.writes[op]++
}

func dateOnly(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
