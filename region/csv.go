package region

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

var csvHeader = []string{"tag", "start_x", "start_y", "end_x", "end_y"}

// Load reads a catalog from its delimited text form. The file must carry
// the header row and one row per region; rows with fewer than five columns
// are rejected.
func Load(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("region: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("region: parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidCatalog, path)
	}

	catalog := make(Catalog, 0, len(rows)-1)
	for i, row := range rows[1:] { // skip header
		if len(row) < 5 {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrInvalidCatalog, i+2, len(row))
		}
		coords := make([]int, 4)
		for j, s := range row[1:5] {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %s: %v", ErrInvalidCatalog, i+2, csvHeader[j+1], err)
			}
			coords[j] = v
		}
		catalog = append(catalog, Region{
			Tag:    row[0],
			Left:   coords[0],
			Top:    coords[1],
			Right:  coords[2],
			Bottom: coords[3],
		})
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Save writes the catalog in the same delimited form Load reads, preserving
// region order so a load/save cycle reproduces the file row for row.
func (c Catalog) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("region: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return fmt.Errorf("region: write %s: %w", path, err)
	}
	for _, r := range c {
		row := []string{
			r.Tag,
			strconv.Itoa(r.Left),
			strconv.Itoa(r.Top),
			strconv.Itoa(r.Right),
			strconv.Itoa(r.Bottom),
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("region: write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("region: write %s: %w", path, err)
	}
	return f.Close()
}
