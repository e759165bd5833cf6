package models

import "time"

// Column names of the input and output tables.
const (
	ColCodingID              = "coding_id"
	ColOriginalIndex         = "original_index"
	ColCoderName             = "coder_name"
	ColClassification        = "classification"
	ColCreditChannel         = "claude_credit_channel"
	ColCreditChannelCategory = "claude_credit_channel_category"
	ColQuotation             = "quotation"
	ColDescription           = "description"
	ColExplanation           = "explanation"
	ColVariable              = "variable"
	ColSpeaker               = "stablespeaker"
	ColYMD                   = "ymd"
	ColNotes                 = "notes"
	ColCodedAt               = "coded_at"
)

// OutputColumns is the fixed column order of exported results. Columns absent
// from the loaded source table are omitted from the output rather than erroring.
var OutputColumns = []string{
	ColCodingID, ColOriginalIndex, ColCoderName, ColClassification,
	ColCreditChannel, ColCreditChannelCategory,
	ColQuotation, ColDescription, ColVariable, ColSpeaker, ColYMD,
	ColNotes, ColCodedAt,
}

// MaxNotesLength caps the free-text notes attached to a label.
const MaxNotesLength = 500

// Item is one excerpt to be labeled. The claude_* fields hold the prior automated
// classification; they are hidden from the coder during labeling and re-attached
// only at export time, so they never serialize into API responses.
type Item struct {
	CodingID              string `json:"coding_id"`
	OriginalIndex         string `json:"original_index"`
	Quotation             string `json:"quotation"`
	Description           string `json:"description,omitempty"`
	Explanation           string `json:"explanation,omitempty"`
	Variable              string `json:"variable,omitempty"`
	Speaker               string `json:"stablespeaker,omitempty"`
	YMD                   string `json:"ymd,omitempty"`
	CreditChannel         string `json:"-"`
	CreditChannelCategory string `json:"-"`
}

// LabelRecord is one human-supplied classification for an Item. Re-saving the
// same coding_id replaces the record in place; records are never deleted.
type LabelRecord struct {
	CodingID       string    `json:"coding_id"`
	CoderName      string    `json:"coder_name"`
	Classification string    `json:"classification"`
	Notes          string    `json:"notes"`
	CodedAt        time.Time `json:"coded_at"`
}

// ClassificationOption is one entry of the configured label taxonomy.
type ClassificationOption struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
	Guide string `yaml:"guide,omitempty" json:"guide,omitempty"`
}

// Taxonomy is the externally supplied classification table. The label set and
// its default changed between study iterations, so it is configuration rather
// than a hard-coded constant.
type Taxonomy struct {
	Name    string                 `yaml:"name" json:"name"`
	Options []ClassificationOption `yaml:"options" json:"options"`
	Default string                 `yaml:"default" json:"default"`
}

// Contains reports whether value is a member of the taxonomy.
func (t *Taxonomy) Contains(value string) bool {
	for _, opt := range t.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// Values returns the taxonomy values in display order.
func (t *Taxonomy) Values() []string {
	values := make([]string, 0, len(t.Options))
	for _, opt := range t.Options {
		values = append(values, opt.Value)
	}
	return values
}

// SaveRequest carries one labeling decision from the UI.
type SaveRequest struct {
	CodingID       string `json:"coding_id" binding:"required"`
	Classification string `json:"classification" binding:"required"`
	Notes          string `json:"notes"`
	CoderName      string `json:"coder_name" binding:"required"`
}

// JumpRequest moves the cursor to an arbitrary position (zero-based).
type JumpRequest struct {
	Position int `json:"position"`
}

// SessionView is what the UI needs to render the current position: the item
// under the cursor (hidden columns stripped), progress counts, the locked
// coder identity, and any previous coding of the current item for prefill.
type SessionView struct {
	SessionID    string       `json:"session_id"`
	Cursor       int          `json:"cursor"`
	Total        int          `json:"total"`
	LabeledCount int          `json:"labeled_count"`
	CoderName    string       `json:"coder_name,omitempty"`
	CoderLocked  bool         `json:"coder_locked"`
	AllReviewed  bool         `json:"all_reviewed"`
	Item         *Item        `json:"item,omitempty"`
	AlreadyCoded bool         `json:"already_coded"`
	Previous     *LabelRecord `json:"previous,omitempty"`
}

// ImportResult reports the outcome of resuming from a previously exported file.
type ImportResult struct {
	Accepted    int      `json:"accepted"`
	Rejected    int      `json:"rejected"`
	RejectedIDs []string `json:"rejected_ids,omitempty"`
	Warning     string   `json:"warning,omitempty"`
}
