package view

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Mode enumerates the editor states.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

var (
	// ErrBusy signals a submit or delete raced an in-flight one. The guard
	// stands in for request de-duplication the backing store does not offer.
	ErrBusy = errors.New("view: editor is busy")
	// ErrNotConfirmed signals a delete without an affirmed confirmation step.
	ErrNotConfirmed = errors.New("view: delete not confirmed")
)

// ValidationError reports a missing or malformed required field. It is raised
// before any remote call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("view: validation failed on %s: %s", e.Field, e.Message)
}

// UploadError wraps an asset-host failure. The form contents survive for retry.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("view: upload failed: %v", e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// WriteError wraps a collection mutation failure. Prior state is preserved.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("view: %s failed: %v", e.Op, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// FileInput carries the bytes of a chosen image file.
type FileInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// Collection is the remote document collection the editor writes to.
type Collection interface {
	Add(ctx context.Context, fields map[string]any) (string, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

// Uploader pushes a file to the asset host and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, file FileInput) (string, error)
}

// EditorConfig wires a form editor to its collaborators and field layout.
type EditorConfig struct {
	Collection Collection
	Uploader   Uploader

	// Fields lists the text inputs the form manages, in render order.
	Fields []string
	// RequiredFields must be non-empty at submit.
	RequiredFields []string
	// NumericFields are validated as decimal numbers and written as such.
	NumericFields []string
	// ImageField names the stored URL field fed by the file input. Empty
	// disables file handling.
	ImageField string
	// RequireImageOnCreate rejects creates without a chosen file.
	RequireImageOnCreate bool

	// Refresh reloads the associated listing after a successful submit.
	Refresh func(ctx context.Context) error
	// Remove drops a listing entry after a confirmed delete succeeds.
	Remove func(key string)
}

// Editor drives a single form through create and edit cycles against one
// remote collection.
type Editor struct {
	cfg EditorConfig

	mu        sync.Mutex
	mode      Mode
	editingID string
	fields    map[string]string
	file      *FileInput
	busy      bool
}

// NewEditor validates the wiring and returns an editor in create mode.
func NewEditor(cfg EditorConfig) (*Editor, error) {
	if cfg.Collection == nil {
		return nil, errors.New("view: editor requires a collection")
	}
	if len(cfg.Fields) == 0 {
		return nil, errors.New("view: editor requires at least one field")
	}
	if cfg.ImageField != "" && cfg.Uploader == nil {
		return nil, errors.New("view: editor with an image field requires an uploader")
	}

	known := make(map[string]struct{}, len(cfg.Fields))
	for _, field := range cfg.Fields {
		known[field] = struct{}{}
	}
	for _, field := range append(append([]string{}, cfg.RequiredFields...), cfg.NumericFields...) {
		if _, ok := known[field]; !ok {
			return nil, fmt.Errorf("view: editor field %q is not part of the form", field)
		}
	}

	editor := &Editor{cfg: cfg}
	editor.resetLocked()
	return editor, nil
}

// StartCreate clears the form and enters create mode.
func (e *Editor) StartCreate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

// StartEdit populates the form from an existing record and enters edit mode.
func (e *Editor) StartEdit(id string, values map[string]string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("view: edit requires a record id")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
	e.mode = ModeEdit
	e.editingID = id
	for _, field := range e.cfg.Fields {
		if value, ok := values[field]; ok {
			e.fields[field] = value
		}
	}
	return nil
}

// Cancel abandons an edit, restoring the same state as a fresh StartCreate.
func (e *Editor) Cancel() {
	e.StartCreate()
}

// SetField records a form input value. Unknown fields fail fast instead of
// silently going nowhere.
func (e *Editor) SetField(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.fields[name]; !ok {
		return fmt.Errorf("view: unknown form field %q", name)
	}
	e.fields[name] = value
	return nil
}

// AttachFile records the chosen image file for the next submit.
func (e *Editor) AttachFile(file FileInput) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.file = &file
}

// SubmitResult reports a successful submit.
type SubmitResult struct {
	Mode Mode
	ID   string
}

// Submit validates the form and writes it to the collection. Validation
// failures never reach the network. A chosen file is uploaded first; only on
// upload success does the write proceed. Edit submits carry exactly the form
// fields; the image field is included only when a new file was uploaded, so an
// edit without one never blanks the stored image. The editor is busy for the
// whole cycle and released on every exit path.
func (e *Editor) Submit(ctx context.Context) (SubmitResult, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return SubmitResult{}, ErrBusy
	}
	e.busy = true
	mode := e.mode
	editingID := e.editingID
	fields := make(map[string]string, len(e.fields))
	for name, value := range e.fields {
		fields[name] = value
	}
	file := e.file
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	payload, vErr := e.buildPayload(mode, fields, file != nil)
	if vErr != nil {
		return SubmitResult{}, vErr
	}

	if file != nil && e.cfg.ImageField != "" {
		url, err := e.cfg.Uploader.Upload(ctx, *file)
		if err != nil {
			return SubmitResult{}, &UploadError{Err: err}
		}
		payload[e.cfg.ImageField] = url
	}

	result := SubmitResult{Mode: mode, ID: editingID}
	switch mode {
	case ModeEdit:
		if err := e.cfg.Collection.Update(ctx, editingID, payload); err != nil {
			return SubmitResult{}, &WriteError{Op: "update", Err: err}
		}
	default:
		id, err := e.cfg.Collection.Add(ctx, payload)
		if err != nil {
			return SubmitResult{}, &WriteError{Op: "create", Err: err}
		}
		result.ID = id
	}

	if e.cfg.Refresh != nil {
		// The listing controller surfaces its own load failures; a stale
		// list after a successful write is not a submit failure.
		_ = e.cfg.Refresh(ctx)
	}

	e.mu.Lock()
	e.resetLocked()
	e.mu.Unlock()
	return result, nil
}

// Delete removes a record after an affirmed confirmation. Without
// confirmation no remote call is made and the listing entry stays. On success
// the entry is removed from the listing without a full reload.
func (e *Editor) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return &ValidationError{Field: "id", Message: "record id is required"}
	}

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	e.busy = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	if err := e.cfg.Collection.Delete(ctx, id); err != nil {
		return &WriteError{Op: "delete", Err: err}
	}
	if e.cfg.Remove != nil {
		e.cfg.Remove(id)
	}

	e.mu.Lock()
	if e.mode == ModeEdit && e.editingID == id {
		e.resetLocked()
	}
	e.mu.Unlock()
	return nil
}

// FormModel is the rendered state of the editor.
type FormModel struct {
	Mode          Mode
	EditingID     string
	Fields        map[string]string
	HasFile       bool
	Busy          bool
	CancelVisible bool
}

// Render produces a snapshot of the form state.
func (e *Editor) Render() FormModel {
	e.mu.Lock()
	defer e.mu.Unlock()

	fields := make(map[string]string, len(e.fields))
	for name, value := range e.fields {
		fields[name] = value
	}
	return FormModel{
		Mode:          e.mode,
		EditingID:     e.editingID,
		Fields:        fields,
		HasFile:       e.file != nil,
		Busy:          e.busy,
		CancelVisible: e.mode == ModeEdit,
	}
}

func (e *Editor) resetLocked() {
	e.mode = ModeCreate
	e.editingID = ""
	e.file = nil
	e.fields = make(map[string]string, len(e.cfg.Fields))
	for _, field := range e.cfg.Fields {
		e.fields[field] = ""
	}
}

// buildPayload validates the captured form and converts it into the write
// payload. The image field is never part of the payload here; Submit adds it
// after a successful upload.
func (e *Editor) buildPayload(mode Mode, fields map[string]string, hasFile bool) (map[string]any, error) {
	numeric := make(map[string]struct{}, len(e.cfg.NumericFields))
	for _, field := range e.cfg.NumericFields {
		numeric[field] = struct{}{}
	}

	for _, field := range e.cfg.RequiredFields {
		if strings.TrimSpace(fields[field]) == "" {
			return nil, &ValidationError{Field: field, Message: field + " is required"}
		}
	}
	if mode == ModeCreate && e.cfg.RequireImageOnCreate && !hasFile {
		return nil, &ValidationError{Field: e.cfg.ImageField, Message: "an image file is required"}
	}

	payload := make(map[string]any, len(fields))
	for _, field := range e.cfg.Fields {
		raw := fields[field]
		if _, isNumeric := numeric[field]; isNumeric {
			value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, &ValidationError{Field: field, Message: field + " must be a number"}
			}
			payload[field] = value
			continue
		}
		payload[field] = strings.TrimSpace(raw)
	}
	return payload, nil
}
