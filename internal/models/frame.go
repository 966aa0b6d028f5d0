package models

// Frame is the canonical in-memory table flowing through the pipeline.
// Row order is preserved across stages except where dedup explicitly
// re-orders by preference.
type Frame struct {
	Rows []*Job
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{Rows: make([]*Job, 0)}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Append adds rows to the end of the frame.
func (f *Frame) Append(rows ...*Job) {
	f.Rows = append(f.Rows, rows...)
}

// Concat appends all rows of other, preserving order. Memory rows first,
// fresh rows last, so exact-id dedup's keep-last policy prefers fresh.
func (f *Frame) Concat(other *Frame) {
	if other == nil {
		return
	}
	f.Rows = append(f.Rows, other.Rows...)
}

// Select returns the rows matching pred, in order, without copying row data.
func (f *Frame) Select(pred func(*Job) bool) []*Job {
	var out []*Job
	for _, row := range f.Rows {
		if pred(row) {
			out = append(out, row)
		}
	}
	return out
}

// ByJobID returns an index from id.job to the last row carrying it.
func (f *Frame) ByJobID() map[string]*Job {
	idx := make(map[string]*Job, len(f.Rows))
	for _, row := range f.Rows {
		if row.ID.Job != "" {
			idx[row.ID.Job] = row
		}
	}
	return idx
}
