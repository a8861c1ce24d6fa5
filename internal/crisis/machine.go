// Package crisis governs the escalation lifecycle entered when a check-in
// classifies at the Crisis tier. The machine is the single authority over
// status: the countdown timer only observes elapsed time and requests a
// transition, and every transition funnels through one guarded function so
// timer ticks can never race user responses.
//
// Lifecycle: Active -> Recheck -> {Stabilizing | Resolved}, with
// Stabilizing looping back to Recheck on the next countdown expiry. There
// is no path to Resolved that skips the Recheck question.
package crisis

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"vigil/internal/logging"
)

// Status is the episode's lifecycle state. A session has exactly one.
type Status string

const (
	// StatusActive is the initial state; the countdown runs.
	StatusActive Status = "active"
	// StatusRecheck awaits the user's answer to the check question.
	StatusRecheck Status = "recheck"
	// StatusStabilizing means the user reported no change; the countdown
	// restarts and leads back to Recheck.
	StatusStabilizing Status = "stabilizing"
	// StatusResolved is terminal; the episode is archived.
	StatusResolved Status = "resolved"
)

// Response is the user's answer at the Recheck question.
type Response string

const (
	ResponseMoreStable   Response = "more_stable"
	ResponseAboutTheSame Response = "about_the_same"
	ResponseStillNotSafe Response = "still_not_safe"
)

// ErrNotAtRecheck is returned when a user response arrives outside the
// Recheck state. Responses are only meaningful at the check question.
var ErrNotAtRecheck = errors.New("crisis session is not awaiting a recheck response")

// ErrEscalationPending is returned while a triggered escalation awaits
// dismissal. The session holds there; no answer can resolve it past the
// escalation.
var ErrEscalationPending = errors.New("escalation pending dismissal")

// Session is one escalation episode.
type Session struct {
	ID        string
	Status    Status
	EnteredAt time.Time
	// Deadline is when the running countdown requests the Recheck
	// transition. Meaningful in Active and Stabilizing.
	Deadline time.Time
	// EscalationCalled is set once the external emergency-contact action
	// has been triggered. It is never reset by reentry.
	EscalationCalled bool
	// EscalationPending is true from the escalation trigger until the
	// user dismisses it.
	EscalationPending bool
}

// Archive receives resolved episodes for the rolling frequency counter.
type Archive interface {
	RecordCrisisEpisode(id string, started, ended time.Time, escalated bool) error
}

// Escalator performs the external emergency-contact action.
type Escalator interface {
	TriggerEmergencyContact(sessionID string)
}

// Machine runs at most one crisis session at a time.
type Machine struct {
	mu        sync.Mutex
	countdown time.Duration
	archive   Archive
	escalator Escalator
	now       func() time.Time

	session *Session
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock injects a deterministic clock for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a machine with the given countdown duration.
func NewMachine(countdown time.Duration, archive Archive, escalator Escalator, opts ...Option) *Machine {
	m := &Machine{
		countdown: countdown,
		archive:   archive,
		escalator: escalator,
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Current returns a snapshot of the live session, or nil when none.
func (m *Machine) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	snap := *m.session
	return &snap
}

// NotifyCrisisTier enters a new Active session, or is a no-op when an
// episode is already in flight: reentry never creates a second session,
// never resets an elapsed countdown, and never interrupts an escalation
// in progress.
func (m *Machine) NotifyCrisisTier() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && m.session.Status != StatusResolved {
		logging.Get(logging.CategoryCrisis).Infow("crisis reentry ignored, session live",
			"session", m.session.ID, "status", m.session.Status)
		snap := *m.session
		return &snap
	}

	now := m.now()
	m.session = &Session{
		ID:        uuid.NewString(),
		Status:    StatusActive,
		EnteredAt: now,
		Deadline:  now.Add(m.countdown),
	}
	logging.Get(logging.CategoryCrisis).Warnw("crisis session opened",
		"session", m.session.ID, "recheck_at", m.session.Deadline)
	snap := *m.session
	return &snap
}

// Tick is called by the recurring countdown timer. It observes elapsed
// time and requests the Recheck transition; it never mutates status
// outside the transition lock.
func (m *Machine) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session
	if s == nil {
		return
	}
	if (s.Status == StatusActive || s.Status == StatusStabilizing) && !m.now().Before(s.Deadline) {
		m.transitionLocked(StatusRecheck)
	}
}

// RunCountdown drives Tick on a fixed interval until ctx is done.
func (m *Machine) RunCountdown(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Respond handles the user's answer at the Recheck question. The three
// legal transitions: "more stable" resolves and archives the episode;
// "about the same" restarts the countdown toward another Recheck; "still
// not safe" triggers the external escalation exactly once and holds at
// Recheck until dismissed. While the escalation is pending every answer
// is rejected, so an episode can never resolve around a live escalation.
func (m *Machine) Respond(r Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session
	if s == nil || s.Status != StatusRecheck {
		return ErrNotAtRecheck
	}
	if s.EscalationPending {
		return ErrEscalationPending
	}

	switch r {
	case ResponseMoreStable:
		m.transitionLocked(StatusResolved)
		if m.archive != nil {
			if err := m.archive.RecordCrisisEpisode(s.ID, s.EnteredAt, m.now(), s.EscalationCalled); err != nil {
				logging.Get(logging.CategoryCrisis).Errorw("episode archive failed", "error", err)
			}
		}
	case ResponseAboutTheSame:
		s.Deadline = m.now().Add(m.countdown)
		m.transitionLocked(StatusStabilizing)
	case ResponseStillNotSafe:
		if !s.EscalationCalled {
			s.EscalationCalled = true
			if m.escalator != nil {
				m.escalator.TriggerEmergencyContact(s.ID)
			}
		}
		s.EscalationPending = true
		// Remains at Recheck until the escalation is dismissed.
	default:
		return fmt.Errorf("unknown recheck response %q", r)
	}
	return nil
}

// DismissEscalation acknowledges a triggered escalation, returning the
// session to a plain Recheck so the check question can be answered again.
func (m *Machine) DismissEscalation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.EscalationPending = false
	}
}

// transitionLocked is the only place status changes. Callers hold m.mu.
func (m *Machine) transitionLocked(next Status) {
	prev := m.session.Status
	m.session.Status = next
	logging.Get(logging.CategoryCrisis).Infow("crisis transition",
		"session", m.session.ID, "from", prev, "to", next)
	if next == StatusResolved {
		m.session = &Session{ID: m.session.ID, Status: StatusResolved, EnteredAt: m.session.EnteredAt, EscalationCalled: m.session.EscalationCalled}
	}
}
