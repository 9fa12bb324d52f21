// Package plan defines the plan/step model and decodes plans returned by the completion service.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParse reports a completion that did not contain a well-formed plan.
// It is distinct from transport failures.
var ErrParse = errors.New("failed to parse plan")

// Action is the kind of file operation a step performs.
type Action string

const (
	Create Action = "CREATE"
	Modify Action = "MODIFY"
)

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case Create:
		return Create, nil
	case Modify:
		return Modify, nil
	}
	return "", fmt.Errorf("unknown action %q (want CREATE or MODIFY)", s)
}

// Step is one unit of a plan.
type Step struct {
	File        string `json:"file" yaml:"file"`
	Action      Action `json:"action" yaml:"action"`
	Description string `json:"description" yaml:"description"`
}

// Plan is the ordered step sequence.
type Plan []Step

// Files returns the distinct target paths in plan order.
func (p Plan) Files() []string {
	seen := make(map[string]struct{}, len(p))
	var out []string
	for _, s := range p {
		if _, ok := seen[s.File]; ok {
			continue
		}
		seen[s.File] = struct{}{}
		out = append(out, s.File)
	}
	return out
}

// Contains reports whether some step targets file.
func (p Plan) Contains(file string) bool {
	for _, s := range p {
		if s.File == file {
			return true
		}
	}
	return false
}

type rawStep struct {
	File        *string `json:"file"`
	Action      *string `json:"action"`
	Description *string `json:"description"`
}

type envelope struct {
	Plan *[]rawStep `json:"plan"`
}

// Decode parses a completion of the form {"plan": [...]} and validates every step.
// Well-formed JSON is used as is; only otherwise are a fenced json block and trailing
// commas repaired.
func Decode(text string) (Plan, error) {
	var env envelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &env); err != nil {
		data, xerr := extractJSON(text)
		if xerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, xerr)
		}
		env = envelope{}
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
	}
	if env.Plan == nil {
		return nil, fmt.Errorf("%w: missing \"plan\" key", ErrParse)
	}

	out := make(Plan, 0, len(*env.Plan))
	for i, rs := range *env.Plan {
		step, err := rs.validate()
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", ErrParse, i+1, err)
		}
		out = append(out, step)
	}
	return out, nil
}

func (rs rawStep) validate() (Step, error) {
	if rs.File == nil || strings.TrimSpace(*rs.File) == "" {
		return Step{}, errors.New("missing file")
	}
	if rs.Action == nil {
		return Step{}, errors.New("missing action")
	}
	action, err := ParseAction(*rs.Action)
	if err != nil {
		return Step{}, err
	}
	if rs.Description == nil {
		return Step{}, errors.New("missing description")
	}
	return Step{File: *rs.File, Action: action, Description: *rs.Description}, nil
}

var (
	jsonFenceRe         = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{.*\\})\\s*```")
	trailingArrayComma  = regexp.MustCompile(`,\s*\]`)
	trailingObjectComma = regexp.MustCompile(`,\s*\}`)
)

// extractJSON finds the JSON object in a completion, unwrapping an optional markdown fence.
func extractJSON(raw string) ([]byte, error) {
	candidate := raw
	if m := jsonFenceRe.FindStringSubmatch(raw); len(m) > 1 {
		candidate = m[1]
	} else {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start == -1 || end < start {
			return nil, errors.New("no JSON object found")
		}
		candidate = raw[start : end+1]
	}

	s := strings.TrimSpace(candidate)
	if s == "" {
		return nil, errors.New("empty JSON payload")
	}
	s = trailingArrayComma.ReplaceAllString(s, "]")
	s = trailingObjectComma.ReplaceAllString(s, "}")
	return []byte(s), nil
}
