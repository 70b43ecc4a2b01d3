// Package region holds the calibrated crop rectangles shared by the
// trimmer, the report builder and the annotator. A catalog is created once
// per grading run; re-calibration replaces it wholesale and invalidates any
// grading state recorded against the previous one.
package region

import (
	"errors"
	"fmt"
	"image"
)

// NameTag marks the respondent-identity strip. Every other tag denotes a
// question, conventionally zero-padded (Q_0001).
const NameTag = "name"

var ErrInvalidCatalog = errors.New("region: invalid catalog")

// Region is one named rectangle in the pixel space of the reference image
// used for calibration.
type Region struct {
	Tag    string
	Left   int
	Top    int
	Right  int
	Bottom int
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

func (r Region) Width() int  { return r.Right - r.Left }
func (r Region) Height() int { return r.Bottom - r.Top }

func (r Region) validate() error {
	if r.Tag == "" {
		return fmt.Errorf("%w: empty tag", ErrInvalidCatalog)
	}
	if r.Right <= r.Left || r.Bottom <= r.Top {
		return fmt.Errorf("%w: degenerate rectangle for %q (%d,%d)-(%d,%d)",
			ErrInvalidCatalog, r.Tag, r.Left, r.Top, r.Right, r.Bottom)
	}
	return nil
}

// Catalog is an ordered set of regions. Order is the calibration order and
// is preserved across load/save.
type Catalog []Region

// Validate checks every region and rejects an empty catalog.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("%w: no regions", ErrInvalidCatalog)
	}
	for _, r := range c {
		if err := r.validate(); err != nil {
			return err
		}
	}
	return nil
}

// QuestionTags returns the tags of all non-identity regions in catalog order.
func (c Catalog) QuestionTags() []string {
	tags := make([]string, 0, len(c))
	for _, r := range c {
		if r.Tag != NameTag {
			tags = append(tags, r.Tag)
		}
	}
	return tags
}

// NameRegion returns the identity-strip region, if the catalog has one.
func (c Catalog) NameRegion() (Region, bool) {
	for _, r := range c {
		if r.Tag == NameTag {
			return r, true
		}
	}
	return Region{}, false
}
