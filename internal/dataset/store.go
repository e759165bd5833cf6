package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"coding-interface/internal/models"

	"go.uber.org/zap"
)

// ErrMissingColumns indicates the input table lacks required fields.
var ErrMissingColumns = errors.New("missing required columns")

// requiredColumns must be present in every coding CSV; everything else is
// optional and simply tracked for export.
var requiredColumns = []string{models.ColCodingID, models.ColQuotation}

// Table is one loaded, immutable item table in source order.
type Table struct {
	items   []models.Item
	byID    map[string]int
	columns map[string]bool
}

// Parse reads a coding CSV into a Table. It fails with ErrMissingColumns when
// coding_id or quotation is absent; all other columns are optional.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	columns := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, ok := index[name]; !ok {
			index[name] = i
		}
		columns[name] = true
	}

	var missing []string
	for _, name := range requiredColumns {
		if !columns[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	table := &Table{
		byID:    make(map[string]int),
		columns: columns,
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		item := models.Item{
			CodingID:              field(row, models.ColCodingID),
			OriginalIndex:         field(row, models.ColOriginalIndex),
			Quotation:             field(row, models.ColQuotation),
			Description:           field(row, models.ColDescription),
			Explanation:           field(row, models.ColExplanation),
			Variable:              field(row, models.ColVariable),
			Speaker:               field(row, models.ColSpeaker),
			YMD:                   field(row, models.ColYMD),
			CreditChannel:         field(row, models.ColCreditChannel),
			CreditChannelCategory: field(row, models.ColCreditChannelCategory),
		}

		if _, dup := table.byID[item.CodingID]; !dup {
			table.byID[item.CodingID] = len(table.items)
		}
		table.items = append(table.items, item)
	}

	return table, nil
}

// Len returns the number of items.
func (t *Table) Len() int {
	return len(t.items)
}

// At returns the item at position i in source order.
func (t *Table) At(i int) models.Item {
	return t.items[i]
}

// Items returns the underlying item slice in source order.
func (t *Table) Items() []models.Item {
	return t.items
}

// ByID looks up an item by its coding_id.
func (t *Table) ByID(id string) (models.Item, bool) {
	i, ok := t.byID[id]
	if !ok {
		return models.Item{}, false
	}
	return t.items[i], true
}

// HasColumn reports whether the source file carried the named column.
func (t *Table) HasColumn(name string) bool {
	return t.columns[name]
}

// Store holds the currently loaded item table.
type Store struct {
	logger *zap.Logger
	table  *Table
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger}
}

// LoadFile loads the table from a CSV on disk.
func (s *Store) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open coding file: %w", err)
	}
	defer file.Close()

	return s.LoadReader(file)
}

// LoadReader replaces the current table with one parsed from r. The previous
// table stays in place when parsing fails.
func (s *Store) LoadReader(r io.Reader) error {
	table, err := Parse(r)
	if err != nil {
		return err
	}

	s.table = table
	s.logger.Info("Coding table loaded", zap.Int("items", table.Len()))
	return nil
}

// Table returns the current table, or nil when nothing has been loaded.
func (s *Store) Table() *Table {
	return s.table
}
