package workspace

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"strings"
	"sync"
)

// ChangeTracker keeps the ordered history of applied files.
type ChangeTracker struct {
	mu      sync.Mutex
	changes []Change
}

func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{}
}

// Record appends c to the history.
func (t *ChangeTracker) Record(c Change) {
	t.mu.Lock()
	t.changes = append(t.changes, c)
	t.mu.Unlock()
}

// History returns a copy of the recorded changes, oldest first.
func (t *ChangeTracker) History() []Change {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Change(nil), t.changes...)
}

// edit is a single line of a diff.
type edit struct {
	tag byte // ' ' same, '+' add, '-' del
	txt string
}

func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}

// Diff renders a git-style unified diff of rel from oldB to newB with three lines of
// context. A nil oldB diffs against /dev/null. Identical inputs yield "".
func Diff(rel string, oldB, newB []byte) string {
	if oldB != nil && bytes.Equal(oldB, newB) {
		return ""
	}

	oldLines := splitLines(oldB)
	newLines := splitLines(newB)
	seq := lcsEdits(oldLines, newLines)

	var out strings.Builder
	fmt.Fprintf(&out, "diff --git a/%s b/%s\n", rel, rel)
	if oldB == nil {
		out.WriteString("new file mode 100644\n")
		fmt.Fprintf(&out, "index 0000000..%s\n", shortSHA(newB))
		out.WriteString("--- /dev/null\n")
	} else {
		fmt.Fprintf(&out, "index %s..%s 100644\n", shortSHA(oldB), shortSHA(newB))
		fmt.Fprintf(&out, "--- a/%s\n", rel)
	}
	fmt.Fprintf(&out, "+++ b/%s\n", rel)

	for _, h := range hunks(seq, 3) {
		fmt.Fprintf(&out, "@@ -%d,%d +%d,%d @@\n", h.oldStart, h.oldCount, h.newStart, h.newCount)
		for _, e := range h.edits {
			out.WriteByte(e.tag)
			out.WriteString(e.txt)
			out.WriteByte('\n')
		}
	}
	return out.String()
}

func lcsEdits(a, b []string) []edit {
	n, m := len(a), len(b)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				lcs[i][j] = lcs[i+1][j+1] + 1
			case lcs[i+1][j] >= lcs[i][j+1]:
				lcs[i][j] = lcs[i+1][j]
			default:
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var seq []edit
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			seq = append(seq, edit{' ', a[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			seq = append(seq, edit{'-', a[i]})
			i++
		default:
			seq = append(seq, edit{'+', b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		seq = append(seq, edit{'-', a[i]})
	}
	for ; j < m; j++ {
		seq = append(seq, edit{'+', b[j]})
	}
	return seq
}

type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	edits              []edit
}

// hunks groups changed lines with ctx lines of surrounding context. Line numbers are 1-based.
func hunks(seq []edit, ctx int) []hunk {
	// old/new line number before each edit
	oldAt := make([]int, len(seq)+1)
	newAt := make([]int, len(seq)+1)
	for k, e := range seq {
		oldAt[k+1], newAt[k+1] = oldAt[k], newAt[k]
		if e.tag != '+' {
			oldAt[k+1]++
		}
		if e.tag != '-' {
			newAt[k+1]++
		}
	}

	var out []hunk
	k := 0
	for k < len(seq) {
		if seq[k].tag == ' ' {
			k++
			continue
		}
		start := max(0, k-ctx)
		end := k
		for end < len(seq) {
			if seq[end].tag != ' ' {
				end++
				continue
			}
			run := end
			for run < len(seq) && seq[run].tag == ' ' {
				run++
			}
			if run == len(seq) || run-end > 2*ctx {
				end = min(len(seq), end+ctx)
				break
			}
			end = run
		}

		h := hunk{edits: append([]edit(nil), seq[start:end]...)}
		for _, e := range h.edits {
			if e.tag != '+' {
				h.oldCount++
			}
			if e.tag != '-' {
				h.newCount++
			}
		}
		h.oldStart = oldAt[start] + 1
		h.newStart = newAt[start] + 1
		if h.oldCount == 0 {
			h.oldStart = oldAt[start]
		}
		if h.newCount == 0 {
			h.newStart = newAt[start]
		}
		out = append(out, h)
		k = end
	}
	return out
}

// shortSHA returns a 7-hex-digit label like git's abbreviated object names.
func shortSHA(b []byte) string {
	h := sha1.Sum(b)
	return fmt.Sprintf("%x", h[:4])[:7]
}
