// Package prompt builds the system/user message pairs sent to the completion service.
package prompt

import (
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/specgen/src/plan"
)

// Pair is the two-message prompt for one completion.
type Pair struct {
	System string
	User   string
}

const planSystem = `You are an expert software architect AI. Your task is to analyze a user's feature request and the current project structure, then generate a step-by-step plan of file changes to implement the feature.
Each step must specify: 'file', 'action' ('CREATE' or 'MODIFY'), and 'description'.
VERY IMPORTANT: Your output MUST be a valid JSON object only, with a single key "plan" which is an array of step objects. Do not include any other text, explanations, or markdown formatting.`

const codeSystem = `You are an expert programmer AI. Your task is to generate the complete code for a single file based on a specific instruction.
Output ONLY the complete, raw source code for the file. Do not include any explanations, comments about your work, or markdown formatting.`

// NewFileMarker replaces the existing-content block when the target file is absent or empty.
const NewFileMarker = "The file is new and empty."

// ForPlan builds the planning prompt. Inputs are embedded verbatim; the structure listing
// sits in exactly one fenced block.
func ForPlan(request, structure string) Pair {
	var b strings.Builder
	fmt.Fprintf(&b, "User Request: \"%s\"\n\n", request)
	b.WriteString("Current Project Structure:\n```\n")
	b.WriteString(structure)
	b.WriteString("\n```")
	return Pair{System: planSystem, User: b.String()}
}

// ForCode builds the code-generation prompt for one step. A nil or empty existing
// is treated as a new file.
func ForCode(step plan.Step, existing *string) Pair {
	var b strings.Builder
	fmt.Fprintf(&b, "Instruction: \"%s\"\n", step.Description)
	fmt.Fprintf(&b, "File Path: \"%s\"\n\n", step.File)
	if existing != nil && *existing != "" {
		b.WriteString("Here is the existing code in the file:\n```\n")
		b.WriteString(*existing)
		b.WriteString("\n```")
	} else {
		b.WriteString(NewFileMarker)
	}
	fmt.Fprintf(&b, "\n\nYour task: %s for the file \"%s\" to accomplish the instruction.", taskVerb(step.Action), step.File)
	return Pair{System: codeSystem, User: b.String()}
}

func taskVerb(a plan.Action) string {
	if a == plan.Create {
		return "Create the full code content"
	}
	return "Modify the existing content"
}
