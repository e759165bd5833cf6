package service

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"coding-interface/internal/dataset"
	"coding-interface/internal/models"
	"coding-interface/internal/session"

	"go.uber.org/zap"
)

// ErrNoDataset indicates that no coding table has been loaded yet; session
// operations stay blocked until a valid source is supplied.
var ErrNoDataset = errors.New("no coding table loaded")

// Coder orchestrates one labeling session over the loaded item table. The
// session state itself is single-threaded; the mutex only serializes the HTTP
// boundary, which may deliver requests concurrently.
type Coder struct {
	mu       sync.Mutex
	state    *session.State
	store    *dataset.Store
	taxonomy models.Taxonomy
	logger   *zap.Logger
}

// NewCoder creates the coding service with an empty session.
func NewCoder(store *dataset.Store, taxonomy models.Taxonomy, logger *zap.Logger) *Coder {
	return &Coder{
		state:    session.NewState(),
		store:    store,
		taxonomy: taxonomy,
		logger:   logger,
	}
}

// Taxonomy returns the configured classification table.
func (c *Coder) Taxonomy() models.Taxonomy {
	return c.taxonomy
}

// table returns the loaded item table or ErrNoDataset. Callers hold c.mu.
func (c *Coder) table() (*dataset.Table, error) {
	table := c.store.Table()
	if table == nil || table.Len() == 0 {
		return nil, ErrNoDataset
	}
	return table, nil
}

// Session returns the view of the current cursor position.
func (c *Coder) Session() (*models.SessionView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := c.table()
	if err != nil {
		return nil, err
	}
	return c.view(table), nil
}

func (c *Coder) view(table *dataset.Table) *models.SessionView {
	view := &models.SessionView{
		SessionID:    c.state.ID,
		Cursor:       c.state.Cursor,
		Total:        table.Len(),
		LabeledCount: len(c.state.Labeled),
		CoderName:    c.state.Coder,
		CoderLocked:  c.state.Coder != "",
		AllReviewed:  len(c.state.Labeled) >= table.Len(),
	}

	item := table.At(c.state.Cursor)
	view.Item = &item
	view.AlreadyCoded = c.state.Labeled[item.CodingID]
	if previous, ok := c.state.Record(item.CodingID); ok {
		view.Previous = &previous
	}

	return view
}

// Advance moves to the next item.
func (c *Coder) Advance() (*models.SessionView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := c.table()
	if err != nil {
		return nil, err
	}
	c.state.Advance(table.Len())
	return c.view(table), nil
}

// Retreat moves to the previous item.
func (c *Coder) Retreat() (*models.SessionView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := c.table()
	if err != nil {
		return nil, err
	}
	c.state.Retreat()
	return c.view(table), nil
}

// Jump moves to an arbitrary position, clamped into range.
func (c *Coder) Jump(position int) (*models.SessionView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := c.table()
	if err != nil {
		return nil, err
	}
	c.state.JumpTo(position, table.Len())
	return c.view(table), nil
}

// Reset returns the cursor to the first item.
func (c *Coder) Reset() (*models.SessionView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := c.table()
	if err != nil {
		return nil, err
	}
	c.state.Reset()
	return c.view(table), nil
}

// Save records one labeling decision and returns the advanced view.
func (c *Coder) Save(req models.SaveRequest) (*models.SessionView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := c.table()
	if err != nil {
		return nil, err
	}

	record, err := c.state.Save(req, &c.taxonomy, table, time.Now())
	if err != nil {
		return nil, err
	}

	c.logger.Info("Label saved",
		zap.String("session_id", c.state.ID),
		zap.String("coding_id", record.CodingID),
		zap.String("classification", record.Classification),
		zap.Int("total_labeled", len(c.state.Labeled)))

	return c.view(table), nil
}

// ExportCSV streams the results table to w and returns the number of records
// dropped because their coding_id no longer exists in the loaded table.
func (c *Coder) ExportCSV(w io.Writer) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := c.table()
	if err != nil {
		return 0, err
	}

	export := c.state.Export(table)
	if len(export.Dropped) > 0 {
		c.logger.Warn("Export dropped records not present in current table",
			zap.String("session_id", c.state.ID),
			zap.Strings("coding_ids", export.Dropped))
	}

	if err := export.WriteCSV(w); err != nil {
		return len(export.Dropped), fmt.Errorf("failed to write export: %w", err)
	}
	return len(export.Dropped), nil
}

// ExportFilename builds the download name from the locked coder and taxonomy,
// matching the original's coded_<name>_<study>_<timestamp>.csv convention.
func (c *Coder) ExportFilename(now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.state.Coder
	if name == "" {
		name = "coder"
	}
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")

	return fmt.Sprintf("coded_%s_%s_%s.csv", name, c.taxonomy.Name, now.Format("20060102_150405"))
}

// Resume replaces the session's records with those parsed from a previously
// exported results file. Prior state is untouched when the file is invalid or
// shares no coding_ids with the current table.
func (c *Coder) Resume(r io.Reader) (*models.ImportResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := c.table()
	if err != nil {
		return nil, err
	}

	records, err := session.ParseResume(r, time.Now())
	if err != nil {
		return nil, err
	}

	result, err := c.state.Import(records, table)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Session resumed",
		zap.String("session_id", c.state.ID),
		zap.String("coder", c.state.Coder),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", result.Rejected),
		zap.Int("cursor", c.state.Cursor))

	return result, nil
}

// LoadDataset replaces the item table from an uploaded CSV. Existing records
// and the cursor deliberately survive a table switch; the cursor is only
// clamped into the new range.
func (c *Coder) LoadDataset(r io.Reader) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.LoadReader(r); err != nil {
		return 0, err
	}

	table := c.store.Table()
	c.state.ClampCursor(table.Len())

	c.logger.Info("Coding table replaced",
		zap.String("session_id", c.state.ID),
		zap.Int("items", table.Len()),
		zap.Int("existing_records", len(c.state.Records)))

	return table.Len(), nil
}
