// Package session holds the panel state: current plan, generated code, loading flag and
// active file. Responses are correlated with monotonic per-operation request ids.
package session

import (
	"sync"

	"github.com/Protocol-Lattice/specgen/src/ai"
	"github.com/Protocol-Lattice/specgen/src/plan"
)

// RequestID identifies one outstanding request. Zero is never issued.
type RequestID uint64

// Session is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	prompt     string
	plan       plan.Plan
	code       map[string]string
	failures   map[string]string
	fallbacks  map[string]string
	activeFile string
	lastError  string

	seq         RequestID
	pendingPlan RequestID
	pendingCode RequestID
}

func New() *Session {
	return &Session{
		plan:     plan.Plan{},
		code:     make(map[string]string),
		failures:  make(map[string]string),
		fallbacks: make(map[string]string),
	}
}

func (s *Session) next() RequestID {
	s.seq++
	return s.seq
}

// BeginPlan records a new plan request. Any in-flight code request becomes stale.
func (s *Session) BeginPlan(prompt string) RequestID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
	s.pendingPlan = s.next()
	s.pendingCode = 0
	return s.pendingPlan
}

// ResolvePlan applies a plan response. It returns false and changes nothing when id is
// not the latest plan request.
func (s *Session) ResolvePlan(id RequestID, res ai.PlanResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || id != s.pendingPlan {
		return false
	}
	s.pendingPlan = 0

	p := res.Plan
	if p == nil {
		p = plan.Plan{}
	}
	s.plan = p
	s.code = make(map[string]string)
	s.failures = make(map[string]string)
	s.fallbacks = make(map[string]string)
	s.activeFile = ""
	s.lastError = ""
	if res.Err != nil {
		s.lastError = res.Err.Error()
	}
	return true
}

// BeginCode records a code request for step and marks its file active immediately.
func (s *Session) BeginCode(step plan.Step) RequestID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeFile = step.File
	s.pendingCode = s.next()
	return s.pendingCode
}

// ResolveCode applies a code response for step. Stale ids are discarded. A failed result
// keeps any earlier code for the file and records the failure and its placeholder instead.
func (s *Session) ResolveCode(id RequestID, step plan.Step, res ai.CodeResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || id != s.pendingCode {
		return false
	}
	s.pendingCode = 0
	s.activeFile = step.File

	if res.Err != nil {
		s.failures[step.File] = res.Err.Error()
		s.fallbacks[step.File] = res.Code
		s.lastError = res.Err.Error()
		return true
	}
	s.code[step.File] = res.Code
	delete(s.failures, step.File)
	delete(s.fallbacks, step.File)
	s.lastError = ""
	return true
}

// CodeFor returns the generated code for file. ok is false when there is nothing to apply.
func (s *Session) CodeFor(file string) (code string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok = s.code[file]
	return code, ok && code != ""
}

// Loading reports whether any request is outstanding.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingPlan != 0 || s.pendingCode != 0
}

func (s *Session) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// Plan returns a copy of the current plan.
func (s *Session) Plan() plan.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(plan.Plan{}, s.plan...)
}

func (s *Session) ActiveFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeFile
}

// Failure returns the last generation error for file, if any.
func (s *Session) Failure(file string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[file]
}

// Fallback returns the placeholder text of the last failed result for file. It is for
// display only and is never returned by CodeFor.
func (s *Session) Fallback(file string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallbacks[file]
}

// LastError is the message of the most recent failed result, cleared by the next success.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// GeneratedFiles lists the files that have code, in plan order.
func (s *Session) GeneratedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, f := range s.plan.Files() {
		if _, ok := s.code[f]; ok {
			out = append(out, f)
		}
	}
	return out
}
