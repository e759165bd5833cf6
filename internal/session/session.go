package session

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"coding-interface/internal/dataset"
	"coding-interface/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrUnknownClassification indicates a value outside the configured taxonomy.
	ErrUnknownClassification = errors.New("unknown classification")

	// ErrNotesTooLong indicates notes above the 500 character cap.
	ErrNotesTooLong = errors.New("notes too long")

	// ErrUnknownItem indicates a coding_id absent from the loaded table.
	ErrUnknownItem = errors.New("unknown coding_id")

	// ErrInvalidResumeFile indicates a resume file lacking required columns.
	ErrInvalidResumeFile = errors.New("invalid resume file")

	// ErrNoMatchingRecords indicates a resume file sharing no coding_ids with
	// the current table.
	ErrNoMatchingRecords = errors.New("no matching records")
)

// State is the full labeling session: cursor position, accumulated label
// records in save order, the set of labeled coding_ids, and the coder identity
// once locked. It has no hidden companions; callers own the value and pass it
// into every operation.
type State struct {
	ID      string
	Cursor  int
	Records []models.LabelRecord
	Labeled map[string]bool
	Coder   string // empty until locked by the first Save or a successful Import
}

// NewState creates an empty session positioned at the first item.
func NewState() *State {
	return &State{
		ID:      uuid.New().String(),
		Labeled: make(map[string]bool),
	}
}

// Advance moves the cursor forward one item; a no-op at the last item.
func (s *State) Advance(itemCount int) {
	if s.Cursor < itemCount-1 {
		s.Cursor++
	}
}

// Retreat moves the cursor back one item; a no-op at the first item.
func (s *State) Retreat() {
	if s.Cursor > 0 {
		s.Cursor--
	}
}

// JumpTo sets the cursor to an arbitrary position, clamped into range rather
// than erroring, matching the original's UI min/max behavior.
func (s *State) JumpTo(position, itemCount int) {
	if position < 0 {
		position = 0
	}
	if position > itemCount-1 {
		position = itemCount - 1
	}
	if position < 0 {
		position = 0
	}
	s.Cursor = position
}

// ClampCursor pulls the cursor back into range after the item table changed
// underneath the session.
func (s *State) ClampCursor(itemCount int) {
	if itemCount == 0 {
		s.Cursor = 0
		return
	}
	if s.Cursor > itemCount-1 {
		s.Cursor = itemCount - 1
	}
}

// Reset returns the cursor to the first item. Records and the locked coder
// identity survive.
func (s *State) Reset() {
	s.Cursor = 0
}

// Record returns the existing label for a coding_id, if any.
func (s *State) Record(codingID string) (models.LabelRecord, bool) {
	for _, r := range s.Records {
		if r.CodingID == codingID {
			return r, true
		}
	}
	return models.LabelRecord{}, false
}

// Save stores one labeling decision. The first save locks the coder identity;
// every later save keeps the locked name regardless of what was passed.
// Re-saving a coding_id replaces its record in place. On success the cursor
// auto-advances unless already at the last item.
func (s *State) Save(req models.SaveRequest, taxonomy *models.Taxonomy, table *dataset.Table, now time.Time) (models.LabelRecord, error) {
	if !taxonomy.Contains(req.Classification) {
		return models.LabelRecord{}, fmt.Errorf("%w: %q", ErrUnknownClassification, req.Classification)
	}
	if utf8.RuneCountInString(req.Notes) > models.MaxNotesLength {
		return models.LabelRecord{}, fmt.Errorf("%w: %d characters (max %d)",
			ErrNotesTooLong, utf8.RuneCountInString(req.Notes), models.MaxNotesLength)
	}
	if _, ok := table.ByID(req.CodingID); !ok {
		return models.LabelRecord{}, fmt.Errorf("%w: %q", ErrUnknownItem, req.CodingID)
	}

	if s.Coder == "" {
		s.Coder = req.CoderName
	}

	record := models.LabelRecord{
		CodingID:       req.CodingID,
		CoderName:      s.Coder,
		Classification: req.Classification,
		Notes:          req.Notes,
		CodedAt:        now,
	}

	replaced := false
	for i, r := range s.Records {
		if r.CodingID == req.CodingID {
			s.Records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		s.Records = append(s.Records, record)
	}
	s.Labeled[req.CodingID] = true

	if s.Cursor < table.Len()-1 {
		s.Cursor++
	}

	return record, nil
}
