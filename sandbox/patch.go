package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// PatchResult reports the outcome of ApplyPatch. ChangedFiles lists the
// relative paths mutated so far; on a mid-batch failure it holds the files
// changed before the failing operation. Partial applications are not rolled
// back.
type PatchResult struct {
	Applied      bool     `json:"applied"`
	Summary      string   `json:"summary"`
	ChangedFiles []string `json:"changedFiles"`
}

// ApplyPatch decides the patch dialect by content sniffing and applies it
// inside the workspace. Unrecognized input changes nothing.
func (s *Sandbox) ApplyPatch(patchText string) PatchResult {
	switch {
	case strings.Contains(patchText, envelopeBegin):
		return s.applyEnvelope(patchText)
	case hasUnifiedMarkers(patchText):
		return s.applyUnified(patchText)
	default:
		return PatchResult{Summary: "Unrecognized patch format"}
	}
}

const (
	envelopeBegin  = "*** Begin Patch"
	envelopeEnd    = "*** End Patch"
	envelopeAdd    = "*** Add File: "
	envelopeUpdate = "*** Update File: "
	envelopeDelete = "*** Delete File: "
)

type envelopeOp struct {
	kind    string // "add", "update" or "delete"
	path    string
	content string
}

func (s *Sandbox) applyEnvelope(text string) PatchResult {
	ops, err := parseEnvelope(text)
	if err != nil {
		return PatchResult{Summary: err.Error()}
	}
	changed := make([]string, 0, len(ops))
	for _, op := range ops {
		r, err := s.Resolve(op.path)
		if err != nil {
			return PatchResult{Summary: err.Error(), ChangedFiles: changed}
		}
		switch op.kind {
		case "add":
			if _, lerr := os.Lstat(r.Abs); lerr == nil {
				return PatchResult{Summary: "add target already exists: " + r.Rel, ChangedFiles: changed}
			}
			if msg := writePatchFile(r, op.content); msg != "" {
				return PatchResult{Summary: msg, ChangedFiles: changed}
			}
		case "update":
			if _, lerr := os.Lstat(r.Abs); lerr != nil {
				return PatchResult{Summary: "update target not found: " + r.Rel, ChangedFiles: changed}
			}
			if msg := writePatchFile(r, op.content); msg != "" {
				return PatchResult{Summary: msg, ChangedFiles: changed}
			}
		case "delete":
			if err := os.Remove(r.Abs); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return PatchResult{Summary: "delete target not found: " + r.Rel, ChangedFiles: changed}
				}
				return PatchResult{Summary: fmt.Sprintf("delete %s: %v", r.Rel, err), ChangedFiles: changed}
			}
		}
		changed = append(changed, r.Rel)
	}
	return PatchResult{
		Applied:      true,
		Summary:      fmt.Sprintf("%d file(s) changed", len(changed)),
		ChangedFiles: changed,
	}
}

// parseEnvelope reads the directives between Begin Patch and End Patch.
// Content for Add/Update is every following line up to the next directive,
// joined by newlines with no implicit trailing newline.
func parseEnvelope(text string) ([]envelopeOp, error) {
	lines := strings.Split(text, "\n")
	var ops []envelopeOp
	var current *envelopeOp
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.content = strings.Join(body, "\n")
		ops = append(ops, *current)
		current = nil
		body = nil
	}

	inPatch := false
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		if !inPatch {
			if strings.TrimSpace(line) == envelopeBegin {
				inPatch = true
			}
			continue
		}
		switch {
		case strings.TrimSpace(line) == envelopeEnd:
			flush()
			return ops, nil
		case strings.HasPrefix(line, envelopeAdd):
			flush()
			current = &envelopeOp{kind: "add", path: strings.TrimSpace(strings.TrimPrefix(line, envelopeAdd))}
		case strings.HasPrefix(line, envelopeUpdate):
			flush()
			current = &envelopeOp{kind: "update", path: strings.TrimSpace(strings.TrimPrefix(line, envelopeUpdate))}
		case strings.HasPrefix(line, envelopeDelete):
			flush()
			ops = append(ops, envelopeOp{kind: "delete", path: strings.TrimSpace(strings.TrimPrefix(line, envelopeDelete))})
		case strings.HasPrefix(line, "***"):
			return nil, fmt.Errorf("unrecognized patch line: %q", line)
		default:
			if current == nil {
				if strings.TrimSpace(line) == "" {
					continue
				}
				return nil, fmt.Errorf("unrecognized patch line: %q", line)
			}
			body = append(body, line)
		}
	}
	return nil, fmt.Errorf("missing %q line", envelopeEnd)
}

func writePatchFile(r Resolved, content string) string {
	if err := os.MkdirAll(filepath.Dir(r.Abs), 0o755); err != nil {
		return fmt.Sprintf("create parent directories for %s: %v", r.Rel, err)
	}
	if err := os.WriteFile(r.Abs, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("write %s: %v", r.Rel, err)
	}
	return ""
}

type fileDiff struct {
	oldPath string
	newPath string
	delete  bool
	hunks   []hunk
}

func (d fileDiff) target() string {
	if d.delete {
		return d.oldPath
	}
	if d.newPath != "" {
		return d.newPath
	}
	return d.oldPath
}

type hunk struct {
	oldStart int
	oldLines int
	newStart int
	newLines int
	lines    []string
}

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

func hasUnifiedMarkers(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "diff --git") || strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ") {
			return true
		}
	}
	return false
}

func (s *Sandbox) applyUnified(text string) PatchResult {
	diffs, err := parseUnifiedDiff(text)
	if err != nil {
		return PatchResult{Summary: err.Error()}
	}
	changed := make([]string, 0, len(diffs))
	for _, d := range diffs {
		r, err := s.Resolve(d.target())
		if err != nil {
			return PatchResult{Summary: err.Error(), ChangedFiles: changed}
		}
		if d.delete {
			if err := os.Remove(r.Abs); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return PatchResult{Summary: "delete target not found: " + r.Rel, ChangedFiles: changed}
				}
				return PatchResult{Summary: fmt.Sprintf("delete %s: %v", r.Rel, err), ChangedFiles: changed}
			}
			changed = append(changed, r.Rel)
			continue
		}
		existing := ""
		if data, rerr := os.ReadFile(r.Abs); rerr == nil {
			existing = string(data)
		} else if !errors.Is(rerr, fs.ErrNotExist) {
			return PatchResult{Summary: fmt.Sprintf("read %s: %v", r.Rel, rerr), ChangedFiles: changed}
		}
		updated, aerr := applyHunks(existing, d.hunks)
		if aerr != nil {
			return PatchResult{Summary: fmt.Sprintf("%s: %v", r.Rel, aerr), ChangedFiles: changed}
		}
		if msg := writePatchFile(r, updated); msg != "" {
			return PatchResult{Summary: msg, ChangedFiles: changed}
		}
		changed = append(changed, r.Rel)
	}
	return PatchResult{
		Applied:      true,
		Summary:      fmt.Sprintf("%d file(s) changed", len(changed)),
		ChangedFiles: changed,
	}
}

func parseUnifiedDiff(text string) ([]fileDiff, error) {
	lines := strings.Split(text, "\n")
	var diffs []fileDiff
	var current *fileDiff
	var currentHunk *hunk
	oldLeft, newLeft := 0, 0

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSuffix(lines[i], "\r")
		switch {
		case strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "index "):
			currentHunk = nil
		case strings.HasPrefix(line, "--- "):
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return nil, fmt.Errorf("invalid patch: missing +++ header")
			}
			oldPath := stripDiffPrefix(strings.TrimSpace(strings.TrimPrefix(line, "--- ")))
			newPath := stripDiffPrefix(strings.TrimSpace(strings.TrimPrefix(strings.TrimSuffix(lines[i+1], "\r"), "+++ ")))
			diffs = append(diffs, fileDiff{
				oldPath: oldPath,
				newPath: newPath,
				delete:  newPath == "/dev/null",
			})
			current = &diffs[len(diffs)-1]
			currentHunk = nil
			i++
		case strings.HasPrefix(line, "@@ "):
			if current == nil {
				return nil, fmt.Errorf("invalid patch: hunk without file header")
			}
			match := hunkHeader.FindStringSubmatch(line)
			if match == nil {
				return nil, fmt.Errorf("invalid patch: malformed hunk header: %s", line)
			}
			current.hunks = append(current.hunks, hunk{
				oldStart: atoi(match[1]),
				oldLines: atoiDefault(match[2], 1),
				newStart: atoi(match[3]),
				newLines: atoiDefault(match[4], 1),
			})
			currentHunk = &current.hunks[len(current.hunks)-1]
			oldLeft, newLeft = currentHunk.oldLines, currentHunk.newLines
		default:
			if currentHunk == nil {
				continue
			}
			if line == "\\ No newline at end of file" {
				continue
			}
			// The hunk body ends once the declared line counts are
			// consumed; anything after that is trailer noise.
			if oldLeft <= 0 && newLeft <= 0 {
				currentHunk = nil
				continue
			}
			if line == "" {
				// blank context line with the marker space stripped
				line = " "
			}
			switch line[:1] {
			case " ":
				oldLeft--
				newLeft--
			case "-":
				oldLeft--
			case "+":
				newLeft--
			default:
				return nil, fmt.Errorf("invalid patch line: %s", line)
			}
			currentHunk.lines = append(currentHunk.lines, line)
		}
	}

	if len(diffs) == 0 {
		return nil, fmt.Errorf("invalid patch: no file headers found")
	}
	return diffs, nil
}

// applyHunks applies unified-diff hunks in order against content. Hunk
// offsets shift by the running line delta of earlier hunks, and the
// trailing-newline state of the original content is preserved.
func applyHunks(content string, hunks []hunk) (string, error) {
	if len(hunks) == 0 {
		return content, nil
	}
	hadTrailing := strings.HasSuffix(content, "\n")
	trimmed := strings.TrimSuffix(content, "\n")
	var lines []string
	if trimmed != "" {
		lines = strings.Split(trimmed, "\n")
	}

	offset := 0
	for _, h := range hunks {
		idx := h.oldStart - 1 + offset
		if idx < 0 {
			idx = 0
		}
		delta := 0
		for _, line := range h.lines {
			prefix := line[:1]
			text := ""
			if len(line) > 1 {
				text = line[1:]
			}
			switch prefix {
			case " ":
				if idx >= len(lines) || lines[idx] != text {
					return "", fmt.Errorf("context mismatch at line %d", idx+1)
				}
				idx++
			case "-":
				if idx >= len(lines) || lines[idx] != text {
					return "", fmt.Errorf("delete mismatch at line %d", idx+1)
				}
				lines = append(lines[:idx], lines[idx+1:]...)
				delta--
			case "+":
				lines = append(lines[:idx], append([]string{text}, lines[idx:]...)...)
				idx++
				delta++
			}
		}
		offset += delta
	}

	result := strings.Join(lines, "\n")
	if hadTrailing && result != "" {
		result += "\n"
	}
	return result, nil
}

func stripDiffPrefix(p string) string {
	if p == "/dev/null" {
		return p
	}
	if strings.HasPrefix(p, "a/") {
		return p[2:]
	}
	if strings.HasPrefix(p, "b/") {
		return p[2:]
	}
	return p
}

func atoi(value string) int {
	var out int
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0
		}
		out = out*10 + int(r-'0')
	}
	return out
}

func atoiDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if parsed := atoi(value); parsed != 0 {
		return parsed
	}
	return fallback
}
