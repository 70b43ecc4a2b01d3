package grade

// Repository is the store contract consumed by the report builder and the
// annotator. The directory tree is the production implementation; the
// interface keeps the consumers independent of the backing layout.
type Repository interface {
	// QuestionTags lists the question tags present in the store, sorted.
	// The identity strip is not a question and is excluded.
	QuestionTags() ([]string, error)

	// ListUngraded returns the filenames still in tag's root bucket, sorted.
	ListUngraded(tag string) ([]string, error)

	// LoadGrades returns the state of every respondent observed under tag.
	LoadGrades(tag string) (map[string]ScoreState, error)

	// MaxScore returns the largest numeric bucket under tag, or 0 if none.
	MaxScore(tag string) (int, error)

	// GradeAnswer relocates filename into the bucket for score. The move is
	// atomic; ErrNotFound if the file is in no bucket under tag.
	GradeAnswer(tag, filename string, score ScoreState) error

	// Locate returns the current path of filename under tag, searching the
	// root bucket first and then every score bucket.
	Locate(tag, filename string) (string, error)
}
