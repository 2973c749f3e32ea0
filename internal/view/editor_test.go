package view

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type fakeCollection struct {
	addPayloads    []map[string]any
	updateIDs      []string
	updatePayloads []map[string]any
	deleteIDs      []string

	addErr    error
	updateErr error
	deleteErr error

	addGate chan struct{}
}

func (f *fakeCollection) Add(_ context.Context, fields map[string]any) (string, error) {
	if f.addGate != nil {
		<-f.addGate
	}
	if f.addErr != nil {
		return "", f.addErr
	}
	f.addPayloads = append(f.addPayloads, fields)
	return "generated-id", nil
}

func (f *fakeCollection) Update(_ context.Context, id string, fields map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updateIDs = append(f.updateIDs, id)
	f.updatePayloads = append(f.updatePayloads, fields)
	return nil
}

func (f *fakeCollection) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteIDs = append(f.deleteIDs, id)
	return nil
}

func (f *fakeCollection) calls() int {
	return len(f.addPayloads) + len(f.updatePayloads) + len(f.deleteIDs)
}

type fakeUploader struct {
	url   string
	err   error
	calls int
}

func (f *fakeUploader) Upload(_ context.Context, _ FileInput) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func productEditor(t *testing.T, coll *fakeCollection, up *fakeUploader, refresh func(context.Context) error, remove func(string)) *Editor {
	t.Helper()
	editor, err := NewEditor(EditorConfig{
		Collection:           coll,
		Uploader:             up,
		Fields:               []string{"name", "price", "description"},
		RequiredFields:       []string{"name", "price", "description"},
		NumericFields:        []string{"price"},
		ImageField:           "imageUrl",
		RequireImageOnCreate: true,
		Refresh:              refresh,
		Remove:               remove,
	})
	if err != nil {
		t.Fatalf("NewEditor: %v", err)
	}
	return editor
}

func TestNewEditorRejectsUnknownConfiguredFields(t *testing.T) {
	_, err := NewEditor(EditorConfig{
		Collection:     &fakeCollection{},
		Fields:         []string{"name"},
		RequiredFields: []string{"title"},
	})
	if err == nil {
		t.Fatalf("expected error for required field outside the form")
	}
}

func TestCancelAfterStartEditMatchesFreshCreate(t *testing.T) {
	editor := productEditor(t, &fakeCollection{}, &fakeUploader{url: "u"}, nil, nil)
	fresh := editor.Render()

	if err := editor.StartEdit("p1", map[string]string{"name": "Mocha", "price": "5", "description": "sweet"}); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	if model := editor.Render(); model.Mode != ModeEdit || !model.CancelVisible {
		t.Fatalf("expected edit mode with cancel affordance, got %+v", model)
	}

	editor.Cancel()
	got := editor.Render()
	if !reflect.DeepEqual(got, fresh) {
		t.Fatalf("cancel should restore fresh create state\nfresh: %+v\ngot:   %+v", fresh, got)
	}
}

func TestSubmitValidationShortCircuitsNetwork(t *testing.T) {
	coll := &fakeCollection{}
	up := &fakeUploader{url: "u"}
	editor := productEditor(t, coll, up, nil, nil)

	editor.AttachFile(FileInput{Name: "cup.jpg", ContentType: "image/jpeg", Data: []byte("x")})
	_ = editor.SetField("name", "Latte")
	_ = editor.SetField("price", "4.5")
	// description left empty

	_, err := editor.Submit(context.Background())
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Field != "description" {
		t.Fatalf("expected the missing field to be named, got %q", vErr.Field)
	}
	if coll.calls() != 0 {
		t.Fatalf("validation failure must not reach the collection, saw %d calls", coll.calls())
	}
	if up.calls != 0 {
		t.Fatalf("validation failure must not reach the uploader, saw %d calls", up.calls)
	}
}

func TestSubmitCreateRequiresImage(t *testing.T) {
	coll := &fakeCollection{}
	editor := productEditor(t, coll, &fakeUploader{url: "u"}, nil, nil)

	_ = editor.SetField("name", "Latte")
	_ = editor.SetField("price", "4.5")
	_ = editor.SetField("description", "hot")

	_, err := editor.Submit(context.Background())
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for missing image, got %v", err)
	}
	if coll.calls() != 0 {
		t.Fatalf("rejected create must not reach the collection")
	}
}

func TestSubmitCreateUploadsThenWrites(t *testing.T) {
	coll := &fakeCollection{}
	up := &fakeUploader{url: "https://cdn.example.com/products/latte.jpg"}
	refreshed := 0
	editor := productEditor(t, coll, up, func(context.Context) error { refreshed++; return nil }, nil)

	_ = editor.SetField("name", "Latte")
	_ = editor.SetField("price", "4.5")
	_ = editor.SetField("description", "hot")
	editor.AttachFile(FileInput{Name: "latte.jpg", ContentType: "image/jpeg", Data: []byte("x")})

	result, err := editor.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Mode != ModeCreate || result.ID != "generated-id" {
		t.Fatalf("unexpected result %+v", result)
	}

	if len(coll.addPayloads) != 1 {
		t.Fatalf("expected a single insert, got %d", len(coll.addPayloads))
	}
	want := map[string]any{
		"name":        "Latte",
		"price":       4.5,
		"description": "hot",
		"imageUrl":    "https://cdn.example.com/products/latte.jpg",
	}
	if !reflect.DeepEqual(coll.addPayloads[0], want) {
		t.Fatalf("unexpected insert payload %+v", coll.addPayloads[0])
	}
	if refreshed != 1 {
		t.Fatalf("expected one listing refresh, got %d", refreshed)
	}
	if model := editor.Render(); model.Mode != ModeCreate || model.Fields["name"] != "" || model.HasFile {
		t.Fatalf("editor should reset after a successful submit, got %+v", model)
	}
}

func TestSubmitEditWithoutFileOmitsImageField(t *testing.T) {
	coll := &fakeCollection{}
	editor := productEditor(t, coll, &fakeUploader{url: "u"}, nil, nil)

	if err := editor.StartEdit("p1", map[string]string{"name": "Mocha", "price": "5", "description": "rich"}); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	_ = editor.SetField("price", "5.5")

	if _, err := editor.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(coll.updateIDs) != 1 || coll.updateIDs[0] != "p1" {
		t.Fatalf("expected one update of p1, got %v", coll.updateIDs)
	}
	want := map[string]any{"name": "Mocha", "price": 5.5, "description": "rich"}
	if !reflect.DeepEqual(coll.updatePayloads[0], want) {
		t.Fatalf("partial update payload mismatch: %+v", coll.updatePayloads[0])
	}
	if _, present := coll.updatePayloads[0]["imageUrl"]; present {
		t.Fatalf("update without a new file must not carry imageUrl")
	}
}

func TestSubmitUploadFailurePreservesForm(t *testing.T) {
	coll := &fakeCollection{}
	up := &fakeUploader{err: errors.New("asset host unreachable")}
	editor := productEditor(t, coll, up, nil, nil)

	_ = editor.SetField("name", "Latte")
	_ = editor.SetField("price", "4.5")
	_ = editor.SetField("description", "hot")
	editor.AttachFile(FileInput{Name: "latte.jpg", ContentType: "image/jpeg", Data: []byte("x")})

	_, err := editor.Submit(context.Background())
	var upErr *UploadError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if coll.calls() != 0 {
		t.Fatalf("upload failure must abort before the collection write")
	}

	model := editor.Render()
	if model.Fields["name"] != "Latte" || !model.HasFile {
		t.Fatalf("form contents must survive an upload failure for retry, got %+v", model)
	}
	if model.Busy {
		t.Fatalf("busy guard must be released after a failed submit")
	}
}

func TestSubmitWriteFailureReleasesBusy(t *testing.T) {
	coll := &fakeCollection{addErr: errors.New("permission denied")}
	up := &fakeUploader{url: "u"}
	editor := productEditor(t, coll, up, nil, nil)

	_ = editor.SetField("name", "Latte")
	_ = editor.SetField("price", "4.5")
	_ = editor.SetField("description", "hot")
	editor.AttachFile(FileInput{Name: "latte.jpg", ContentType: "image/jpeg", Data: []byte("x")})

	_, err := editor.Submit(context.Background())
	var wErr *WriteError
	if !errors.As(err, &wErr) {
		t.Fatalf("expected WriteError, got %v", err)
	}

	// A retry must not be rejected as busy.
	coll.addErr = nil
	if _, err := editor.Submit(context.Background()); err != nil {
		t.Fatalf("retry after write failure: %v", err)
	}
}

func TestSubmitWhileInFlightReturnsBusy(t *testing.T) {
	gate := make(chan struct{})
	coll := &fakeCollection{addGate: gate}
	up := &fakeUploader{url: "u"}
	editor := productEditor(t, coll, up, nil, nil)

	_ = editor.SetField("name", "Latte")
	_ = editor.SetField("price", "4.5")
	_ = editor.SetField("description", "hot")
	editor.AttachFile(FileInput{Name: "latte.jpg", ContentType: "image/jpeg", Data: []byte("x")})

	done := make(chan error, 1)
	go func() {
		_, err := editor.Submit(context.Background())
		done <- err
	}()

	waitUntil(t, func() bool { return editor.Render().Busy })

	if _, err := editor.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for re-entrant submit, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if editor.Render().Busy {
		t.Fatalf("busy guard must be released after completion")
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	coll := &fakeCollection{}
	removed := []string{}
	editor := productEditor(t, coll, &fakeUploader{url: "u"}, nil, func(id string) { removed = append(removed, id) })

	if err := editor.Delete(context.Background(), "p1", false); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if coll.calls() != 0 {
		t.Fatalf("unconfirmed delete must make no remote call")
	}
	if len(removed) != 0 {
		t.Fatalf("unconfirmed delete must leave the listing entry in place")
	}
}

func TestDeleteConfirmedRemovesListEntry(t *testing.T) {
	coll := &fakeCollection{}
	removed := []string{}
	editor := productEditor(t, coll, &fakeUploader{url: "u"}, nil, func(id string) { removed = append(removed, id) })

	if err := editor.Delete(context.Background(), "p1", true); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(coll.deleteIDs) != 1 || coll.deleteIDs[0] != "p1" {
		t.Fatalf("expected remote delete of p1, got %v", coll.deleteIDs)
	}
	if len(removed) != 1 || removed[0] != "p1" {
		t.Fatalf("expected listing entry removal without reload, got %v", removed)
	}
}

func TestDeleteFailureLeavesEntry(t *testing.T) {
	coll := &fakeCollection{deleteErr: errors.New("permission denied")}
	removed := []string{}
	editor := productEditor(t, coll, &fakeUploader{url: "u"}, nil, func(id string) { removed = append(removed, id) })

	err := editor.Delete(context.Background(), "p1", true)
	var wErr *WriteError
	if !errors.As(err, &wErr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("failed delete must leave the listing entry in place")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never became true")
}
