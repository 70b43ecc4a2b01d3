package grade

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mizutanik/saiten/raster"
	"github.com/mizutanik/saiten/region"
)

// DirStore implements Repository on the directory tree the trimmer
// produces. It assumes single-writer access; concurrent movers of the same
// file race on the rename and the last one wins.
type DirStore struct {
	root string
}

// NewDirStore opens the store rooted at the trimmer's output directory.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Root returns the directory backing the store.
func (s *DirStore) Root() string { return s.root }

func (s *DirStore) tagDir(tag string) string { return filepath.Join(s.root, tag) }

// Tags lists every tag directory including the identity strip, sorted.
func (s *DirStore) Tags() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("grade: read store root %s: %w", s.root, err)
	}
	var tags []string
	for _, e := range entries {
		if e.IsDir() {
			tags = append(tags, e.Name())
		}
	}
	sort.Strings(tags)
	return tags, nil
}

func (s *DirStore) QuestionTags() ([]string, error) {
	tags, err := s.Tags()
	if err != nil {
		return nil, err
	}
	out := tags[:0]
	for _, t := range tags {
		if t != region.NameTag {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *DirStore) ListUngraded(tag string) ([]string, error) {
	dir := s.tagDir(tag)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("grade: read tag %s: %w", tag, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && raster.IsImageFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *DirStore) LoadGrades(tag string) (map[string]ScoreState, error) {
	dir := s.tagDir(tag)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("grade: read tag %s: %w", tag, err)
	}
	grades := make(map[string]ScoreState)
	for _, e := range entries {
		if !e.IsDir() {
			if raster.IsImageFile(e.Name()) {
				grades[e.Name()] = ScoreState{Kind: Ungraded}
			}
			continue
		}
		state, ok := ParseBucket(e.Name())
		if !ok {
			continue
		}
		bucket, err := os.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("grade: read bucket %s/%s: %w", tag, e.Name(), err)
		}
		for _, f := range bucket {
			if !f.IsDir() && raster.IsImageFile(f.Name()) {
				grades[f.Name()] = state
			}
		}
	}
	return grades, nil
}

func (s *DirStore) MaxScore(tag string) (int, error) {
	dir := s.tagDir(tag)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("grade: read tag %s: %w", tag, err)
	}
	max := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		state, ok := ParseBucket(e.Name())
		if ok && state.Kind == Scored && state.Points > max {
			max = state.Points
		}
	}
	return max, nil
}

func (s *DirStore) Locate(tag, filename string) (string, error) {
	dir := s.tagDir(tag)
	direct := filepath.Join(dir, filename)
	if fi, err := os.Stat(direct); err == nil && !fi.IsDir() {
		return direct, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("grade: read tag %s: %w", tag, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := ParseBucket(e.Name()); !ok {
			continue
		}
		p := filepath.Join(dir, e.Name(), filename)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s/%s", ErrNotFound, tag, filename)
}

func (s *DirStore) GradeAnswer(tag, filename string, score ScoreState) error {
	if score.Kind == Ungraded {
		return fmt.Errorf("grade: cannot grade %s/%s back to ungraded", tag, filename)
	}
	src, err := s.Locate(tag, filename)
	if err != nil {
		return err
	}
	destDir := filepath.Join(s.tagDir(tag), score.Bucket())
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("grade: create bucket %s: %w", destDir, err)
	}
	dest := filepath.Join(destDir, filename)
	if src == dest {
		return nil
	}
	if err := os.Rename(src, dest); err != nil {
		return fmt.Errorf("grade: move %s: %w", filename, err)
	}
	return nil
}

// Counts summarizes one tag's progress for caller-side ratio displays.
type Counts struct {
	Ungraded int
	Skipped  int
	Scored   int
}

// Total is the number of respondents observed under the tag.
func (c Counts) Total() int { return c.Ungraded + c.Skipped + c.Scored }

// GradedCounts tallies the bucket occupancy under tag.
func (s *DirStore) GradedCounts(tag string) (Counts, error) {
	grades, err := s.LoadGrades(tag)
	if err != nil {
		return Counts{}, err
	}
	var c Counts
	for _, g := range grades {
		switch g.Kind {
		case Ungraded:
			c.Ungraded++
		case Skipped:
			c.Skipped++
		case Scored:
			c.Scored++
		}
	}
	return c, nil
}

// Respondents returns the union of filenames observed across every
// question tag, sorted.
func (s *DirStore) Respondents() ([]string, error) {
	tags, err := s.QuestionTags()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, tag := range tags {
		grades, err := s.LoadGrades(tag)
		if err != nil {
			return nil, err
		}
		for name := range grades {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadAll pivots the store into per-respondent form: filename → tag →
// state. The identity strip is excluded; its bucket position is location
// bookkeeping, not a score.
func (s *DirStore) LoadAll() (map[string]map[string]ScoreState, error) {
	tags, err := s.QuestionTags()
	if err != nil {
		return nil, err
	}
	all := make(map[string]map[string]ScoreState)
	for _, tag := range tags {
		grades, err := s.LoadGrades(tag)
		if err != nil {
			return nil, err
		}
		for name, state := range grades {
			if all[name] == nil {
				all[name] = make(map[string]ScoreState)
			}
			all[name][tag] = state
		}
	}
	return all, nil
}
