package types

import "fmt"

// Level is the granularity at which a chunk was extracted.
type Level string

const (
	// LevelSig is the signature/doc-comment head of a definition.
	LevelSig Level = "sig"
	// LevelSection is a heuristic mid-size block of the file.
	LevelSection Level = "section"
	// LevelFile is the residual whole-file tail.
	LevelFile Level = "file"
)

// AllLevels lists every valid level in canonical order.
var AllLevels = []Level{LevelSig, LevelSection, LevelFile}

// ParseLevel converts a string into a Level, rejecting unknown values.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelSig, LevelSection, LevelFile:
		return Level(s), nil
	default:
		return "", fmt.Errorf("%w: %q (allowed: sig, section, file)", ErrUnknownLevel, s)
	}
}

// ParseLevels converts a string slice into levels, rejecting unknown values
// and duplicates.
func ParseLevels(ss []string) ([]Level, error) {
	if len(ss) == 0 {
		return append([]Level(nil), AllLevels...), nil
	}
	seen := make(map[Level]bool, len(ss))
	levels := make([]Level, 0, len(ss))
	for _, s := range ss {
		lvl, err := ParseLevel(s)
		if err != nil {
			return nil, err
		}
		if seen[lvl] {
			continue
		}
		seen[lvl] = true
		levels = append(levels, lvl)
	}
	return levels, nil
}
