// Package grade is the persistent record of who scored what. The backing
// store is a directory tree: one directory per question tag, whose root
// holds the not-yet-graded crops and whose subdirectories are score
// buckets. Exactly one bucket holds a given respondent's file at any time.
package grade

import (
	"errors"
	"fmt"
	"strconv"
)

// SkipBucket is the directory name of the skipped bucket.
const SkipBucket = "skip"

var (
	// ErrNotFound reports a respondent file absent from every bucket.
	ErrNotFound = errors.New("grade: file not found in any bucket")
	// ErrNoData reports a query with nothing to act on.
	ErrNoData = errors.New("grade: no grading data")
)

// Kind discriminates the three score states.
type Kind int

const (
	Ungraded Kind = iota
	Skipped
	Scored
)

// ScoreState is the tagged union of a grading unit's state. Points is
// meaningful only when Kind is Scored.
type ScoreState struct {
	Kind   Kind
	Points int
}

// Score returns the state for a numeric score.
func Score(points int) ScoreState { return ScoreState{Kind: Scored, Points: points} }

// Skip returns the skipped state.
func Skip() ScoreState { return ScoreState{Kind: Skipped} }

// Bucket returns the directory name encoding the state, or "" for Ungraded
// (whose files live directly in the tag root).
func (s ScoreState) Bucket() string {
	switch s.Kind {
	case Skipped:
		return SkipBucket
	case Scored:
		return strconv.Itoa(s.Points)
	}
	return ""
}

func (s ScoreState) String() string {
	switch s.Kind {
	case Skipped:
		return SkipBucket
	case Scored:
		return strconv.Itoa(s.Points)
	}
	return "ungraded"
}

// ParseBucket maps a bucket directory name back to a state. Directory names
// that are neither "skip" nor a non-negative integer are not score buckets.
func ParseBucket(name string) (ScoreState, bool) {
	if name == SkipBucket {
		return Skip(), true
	}
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 {
		return ScoreState{}, false
	}
	return Score(n), true
}

// ParseScore interprets user input as a grading target: a non-negative
// integer or the literal skip marker. Ungraded is not a valid target; a
// unit returns to it only by re-trimming.
func ParseScore(s string) (ScoreState, error) {
	if s == SkipBucket {
		return Skip(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return ScoreState{}, fmt.Errorf("grade: invalid score %q", s)
	}
	return Score(n), nil
}
