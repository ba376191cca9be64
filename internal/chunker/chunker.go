package chunker

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/codemem/codemem-mcp/pkg/types"
)

const (
	// MaxSectionTokens caps each SECTION chunk; oversized blank-line
	// blocks are split further, never silently truncated.
	MaxSectionTokens = 160

	// MaxFileTokens caps the FILE-level chunk; content beyond the cap is
	// dropped from this level and is covered by SECTION chunks instead.
	MaxFileTokens = 1200
)

// Extractor splits source text into SIG, SECTION and FILE level chunks.
// It is a pure function of its input; a binary or unreadable file yields
// types.ErrExtractionSkipped rather than a fatal error.
type Extractor struct {
	now func() time.Time
}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{now: time.Now}
}

// Extract splits content into chunks for one file. Language is a hint:
// recognized languages get SIG and SECTION chunks, unrecognized ones fall
// back to a single FILE-level chunk.
func (e *Extractor) Extract(repoPath, content, language string) ([]types.Chunk, error) {
	if repoPath == "" {
		return nil, fmt.Errorf("repo path is required")
	}
	if looksBinary(content) {
		return nil, fmt.Errorf("%w: %s: binary or non-UTF8 content", types.ErrExtractionSkipped, repoPath)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %s: empty content", types.ErrExtractionSkipped, repoPath)
	}

	lines := strings.Split(content, "\n")
	ts := e.now()

	strategy := StrategyFor(language)
	seen := make(map[string]bool)
	var chunks []types.Chunk

	emit := func(level types.Level, code string, start, end int) {
		code = strings.TrimRight(code, "\n")
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		chunks = append(chunks, types.Chunk{
			RepoPath:  repoPath,
			Level:     level,
			Code:      code,
			LocStart:  start,
			LocEnd:    end,
			Timestamp: ts,
		})
	}

	if strategy != nil {
		if sig, start, end, ok := extractSig(lines, strategy); ok {
			emit(types.LevelSig, sig, start, end)
		}
		for _, sec := range extractSections(lines) {
			emit(types.LevelSection, sec.code, sec.start, sec.end)
		}
	}

	fileCode, fileEnd := capLines(lines, MaxFileTokens)
	emit(types.LevelFile, fileCode, 1, fileEnd)

	return chunks, nil
}

// extractSig returns the first non-blank line plus any immediately
// following doc-comment lines.
func extractSig(lines []string, strategy Strategy) (code string, start, end int, ok bool) {
	head := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			head = i
			break
		}
	}
	if head < 0 {
		return "", 0, 0, false
	}

	tail := head
	for i := head + 1; i < len(lines); i++ {
		if !strategy.IsDocLine(lines[i]) {
			break
		}
		tail = i
	}

	return strings.Join(lines[head:tail+1], "\n"), head + 1, tail + 1, true
}

type section struct {
	code       string
	start, end int
}

// extractSections splits on blank-line boundaries and re-splits any block
// exceeding MaxSectionTokens.
func extractSections(lines []string) []section {
	var sections []section
	blockStart := -1

	flush := func(start, end int) {
		if start < 0 {
			return
		}
		block := lines[start:end]
		sections = append(sections, splitBlock(block, start+1)...)
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush(blockStart, i)
			blockStart = -1
			continue
		}
		if blockStart < 0 {
			blockStart = i
		}
	}
	flush(blockStart, len(lines))

	return sections
}

// splitBlock turns one blank-line block into sections of at most
// MaxSectionTokens each, splitting at line boundaries. A single line
// over the cap is split within the line so no section escapes it.
func splitBlock(block []string, firstLine int) []section {
	var out []section
	start := 0
	tokens := 0

	flush := func(end int) {
		if start < end {
			out = append(out, section{
				code:  strings.Join(block[start:end], "\n"),
				start: firstLine + start,
				end:   firstLine + end - 1,
			})
		}
	}

	for i, line := range block {
		lineTokens := types.EstimateTokens(line) + 1
		if lineTokens > MaxSectionTokens {
			flush(i)
			for _, piece := range splitLongLine(line, MaxSectionTokens) {
				out = append(out, section{code: piece, start: firstLine + i, end: firstLine + i})
			}
			start = i + 1
			tokens = 0
			continue
		}
		if tokens > 0 && tokens+lineTokens > MaxSectionTokens {
			flush(i)
			start = i
			tokens = 0
		}
		tokens += lineTokens
	}
	flush(len(block))
	return out
}

// splitLongLine slices one line into rune-aligned pieces of at most
// maxTokens each.
func splitLongLine(line string, maxTokens int) []string {
	maxChars := maxTokens * types.TokensPerChar
	var pieces []string
	for len(line) > maxChars {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		pieces = append(pieces, line[:cut])
		line = line[cut:]
	}
	if line != "" {
		pieces = append(pieces, line)
	}
	return pieces
}

// capLines joins lines up to the token budget and reports the last line
// included.
func capLines(lines []string, maxTokens int) (string, int) {
	tokens := 0
	end := 0
	for i, line := range lines {
		lineTokens := types.EstimateTokens(line) + 1
		if tokens+lineTokens > maxTokens && end > 0 {
			break
		}
		tokens += lineTokens
		end = i + 1
	}
	return strings.Join(lines[:end], "\n"), end
}

// looksBinary reports content that should be skipped: NUL bytes or
// invalid UTF-8.
func looksBinary(content string) bool {
	if strings.ContainsRune(content, 0) {
		return true
	}
	return !utf8.ValidString(content)
}
