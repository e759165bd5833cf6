package session

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"coding-interface/internal/dataset"
	"coding-interface/internal/models"
)

// resumeColumns must be present in a resume file; notes and coded_at are
// optional and defaulted.
var resumeColumns = []string{models.ColCodingID, models.ColCoderName, models.ColClassification}

// codedAtLayouts accepted when parsing coded_at values from resume files. The
// second covers ISO timestamps written without a zone offset.
var codedAtLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"}

// ExportTable is the flat results table: one row per surviving label record,
// left-joined against the loaded items on coding_id.
type ExportTable struct {
	Header  []string
	Rows    [][]string
	Dropped []string // coding_ids no longer present in the loaded table
}

// Export builds the results table in the fixed output column order. Columns the
// source file never carried are omitted. Records whose coding_id no longer
// exists in the table are dropped from the output but reported in Dropped so
// the caller can warn instead of losing them silently.
func (s *State) Export(table *dataset.Table) *ExportTable {
	recordColumns := map[string]bool{
		models.ColCodingID:       true,
		models.ColCoderName:      true,
		models.ColClassification: true,
		models.ColNotes:          true,
		models.ColCodedAt:        true,
	}

	var header []string
	for _, col := range models.OutputColumns {
		if recordColumns[col] || table.HasColumn(col) {
			header = append(header, col)
		}
	}

	out := &ExportTable{Header: header}

	for _, record := range s.Records {
		item, ok := table.ByID(record.CodingID)
		if !ok {
			out.Dropped = append(out.Dropped, record.CodingID)
			continue
		}

		row := make([]string, 0, len(header))
		for _, col := range header {
			row = append(row, exportValue(col, record, item))
		}
		out.Rows = append(out.Rows, row)
	}

	return out
}

func exportValue(column string, record models.LabelRecord, item models.Item) string {
	switch column {
	case models.ColCodingID:
		return record.CodingID
	case models.ColOriginalIndex:
		return item.OriginalIndex
	case models.ColCoderName:
		return record.CoderName
	case models.ColClassification:
		return record.Classification
	case models.ColCreditChannel:
		return item.CreditChannel
	case models.ColCreditChannelCategory:
		return item.CreditChannelCategory
	case models.ColQuotation:
		return item.Quotation
	case models.ColDescription:
		return item.Description
	case models.ColVariable:
		return item.Variable
	case models.ColSpeaker:
		return item.Speaker
	case models.ColYMD:
		return item.YMD
	case models.ColNotes:
		return record.Notes
	case models.ColCodedAt:
		return record.CodedAt.Format(time.RFC3339)
	}
	return ""
}

// WriteCSV streams the export table to w.
func (t *ExportTable) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ParseResume reads a previously exported results CSV back into label records.
// It fails with ErrInvalidResumeFile when coding_id, coder_name or
// classification is absent; notes defaults to empty and coded_at to now.
func ParseResume(r io.Reader, now time.Time) ([]models.LabelRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrInvalidResumeFile, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}

	var missing []string
	for _, name := range resumeColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", ErrInvalidResumeFile, strings.Join(missing, ", "))
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []models.LabelRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read row: %v", ErrInvalidResumeFile, err)
		}

		records = append(records, models.LabelRecord{
			CodingID:       field(row, models.ColCodingID),
			CoderName:      field(row, models.ColCoderName),
			Classification: field(row, models.ColClassification),
			Notes:          field(row, models.ColNotes),
			CodedAt:        parseCodedAt(field(row, models.ColCodedAt), now),
		})
	}

	return records, nil
}

func parseCodedAt(value string, now time.Time) time.Time {
	for _, layout := range codedAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return now
}

// Import resumes the session from parsed resume records. Records whose
// coding_id is absent from the current table are dropped and reported; an
// empty intersection aborts with ErrNoMatchingRecords and leaves the state
// untouched. On success the record collection and labeled set are replaced
// wholesale, the coder identity is locked to the first accepted record's
// stored name, and the cursor moves to the first unlabeled item (or the last
// item when everything is labeled).
func (s *State) Import(records []models.LabelRecord, table *dataset.Table) (*models.ImportResult, error) {
	var accepted []models.LabelRecord
	var rejectedIDs []string
	seenRejected := make(map[string]bool)

	for _, record := range records {
		if _, ok := table.ByID(record.CodingID); ok {
			accepted = append(accepted, record)
		} else if !seenRejected[record.CodingID] {
			seenRejected[record.CodingID] = true
			rejectedIDs = append(rejectedIDs, record.CodingID)
		}
	}

	if len(accepted) == 0 {
		return nil, ErrNoMatchingRecords
	}

	labeled := make(map[string]bool, len(accepted))
	for _, record := range accepted {
		labeled[record.CodingID] = true
	}

	s.Records = accepted
	s.Labeled = labeled
	s.Coder = accepted[0].CoderName

	s.Cursor = table.Len() - 1
	for i := 0; i < table.Len(); i++ {
		if !labeled[table.At(i).CodingID] {
			s.Cursor = i
			break
		}
	}

	result := &models.ImportResult{
		Accepted:    len(accepted),
		Rejected:    len(rejectedIDs),
		RejectedIDs: rejectedIDs,
	}
	if result.Rejected > 0 {
		result.Warning = fmt.Sprintf("%d coding_ids in resume file not found in current data (ignored)", result.Rejected)
	}

	return result, nil
}
