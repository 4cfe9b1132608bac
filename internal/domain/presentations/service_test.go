package presentations_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/muvico/platform/internal/blob"
	"github.com/muvico/platform/internal/domain/media"
	"github.com/muvico/platform/internal/domain/presentations"
	"github.com/muvico/platform/internal/storage/memory"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	mp3Bytes = append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), bytes.Repeat([]byte{0}, 64)...)

	owner    = presentations.Actor{UserID: "owner"}
	stranger = presentations.Actor{UserID: "stranger"}
	admin    = presentations.Actor{UserID: "root", Admin: true}
)

type fixture struct {
	svc   presentations.Service
	repo  presentations.Repository
	store *blob.MemoryStore
}

func newFixture(t *testing.T, limits media.Limits) fixture {
	t.Helper()
	repo := memory.NewPresentationRepository()
	store := blob.NewMemoryStore("test")
	return fixture{
		svc:   presentations.NewService(presentations.Options{Repo: repo, Store: store, Limits: limits}),
		repo:  repo,
		store: store,
	}
}

func (f fixture) create(t *testing.T, screens, indexes int) presentations.Presentation {
	t.Helper()
	p, err := f.svc.Create(context.Background(), owner, presentations.CreateInput{Name: "Show", ScreenCount: screens, IndexCount: indexes})
	if err != nil {
		t.Fatalf("create presentation failed: %v", err)
	}
	return p
}

func pngUpload(name string) *presentations.Upload {
	return &presentations.Upload{Name: name, ContentType: "image/png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes)}
}

func mp3Upload(name string) *presentations.Upload {
	return &presentations.Upload{Name: name, ContentType: "audio/mpeg", Size: int64(len(mp3Bytes)), Body: bytes.NewReader(mp3Bytes)}
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	f := newFixture(t, media.Limits{})
	ctx := context.Background()

	p, err := f.svc.Create(ctx, owner, presentations.CreateInput{Name: "  Premiere  "})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if p.Name != "Premiere" || p.ScreenCount != presentations.DefaultScreenCount || p.IndexCount != presentations.DefaultIndexCount {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.UserID != owner.UserID || p.Version != 1 {
		t.Fatalf("unexpected owner or version: %+v", p)
	}

	var verr *presentations.ValidationError
	if _, err := f.svc.Create(ctx, owner, presentations.CreateInput{Name: "   "}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if _, err := f.svc.Create(ctx, owner, presentations.CreateInput{Name: strings.Repeat("x", 101)}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for long name, got %v", err)
	}
	if _, err := f.svc.Create(ctx, owner, presentations.CreateInput{Name: "x", ScreenCount: 9}); !errors.Is(err, presentations.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestAccessControl(t *testing.T) {
	f := newFixture(t, media.Limits{})
	ctx := context.Background()
	p := f.create(t, 2, 2)

	if _, err := f.svc.Get(ctx, stranger, p.ID); !errors.Is(err, presentations.ErrNotFound) {
		t.Fatalf("expected stranger to get ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Rename(ctx, stranger, p.ID, "mine now"); !errors.Is(err, presentations.ErrNotFound) {
		t.Fatalf("expected stranger rename to fail, got %v", err)
	}
	if _, err := f.svc.ListForUser(ctx, stranger, owner.UserID); !errors.Is(err, presentations.ErrNotFound) {
		t.Fatalf("expected stranger list to fail, got %v", err)
	}
	if _, err := f.svc.Get(ctx, admin, p.ID); err != nil {
		t.Fatalf("expected admin access, got %v", err)
	}
	list, err := f.svc.ListForUser(ctx, admin, owner.UserID)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected admin to list owner's presentations, got %d (%v)", len(list), err)
	}
}

func TestAddCueWithFile(t *testing.T) {
	f := newFixture(t, media.Limits{})
	ctx := context.Background()
	p := f.create(t, 2, 3)

	saved, cue, err := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{
		Index: 0, Screen: 1, Name: "Logo", Color: "#FF0000", File: pngUpload("logo.png"),
	})
	if err != nil {
		t.Fatalf("add cue failed: %v", err)
	}
	if cue.Media == nil || cue.Media.Kind != media.KindImage || cue.Media.ContentType != "image/png" {
		t.Fatalf("unexpected media: %+v", cue.Media)
	}
	if cue.Color != "#ff0000" {
		t.Fatalf("expected normalized color, got %q", cue.Color)
	}
	if !strings.HasPrefix(cue.URL, "memory://test/presentations/"+p.ID+"/") {
		t.Fatalf("expected signed url, got %q", cue.URL)
	}
	if saved.TotalFileSize != int64(len(pngBytes)) {
		t.Fatalf("expected total size %d, got %d", len(pngBytes), saved.TotalFileSize)
	}
	obj, ok := f.store.Get(cue.Media.Key)
	if !ok || !bytes.Equal(obj.Data, pngBytes) {
		t.Fatalf("expected file in store")
	}

	_, blank, err := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 1, Screen: 2, Name: "Black"})
	if err != nil {
		t.Fatalf("add blank cue failed: %v", err)
	}
	if !blank.Blank() || blank.URL != "" {
		t.Fatalf("expected blank cue, got %+v", blank)
	}
}

func TestAddCueRejections(t *testing.T) {
	f := newFixture(t, media.Limits{MaxFileSize: 1 << 20, MaxPresentationSize: int64(len(pngBytes)) + 10})
	ctx := context.Background()
	p := f.create(t, 1, 2)

	if _, _, err := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 0, Screen: 1, Name: "a", File: pngUpload("a.png")}); err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	cases := []struct {
		name  string
		input presentations.CueInput
		want  error
	}{
		{"occupied", presentations.CueInput{Index: 0, Screen: 1, Name: "b"}, presentations.ErrSlotOccupied},
		{"audio on visual screen", presentations.CueInput{Index: 1, Screen: 1, Name: "b", File: mp3Upload("b.mp3")}, presentations.ErrMediaScreenMismatch},
		{"quota", presentations.CueInput{Index: 1, Screen: 1, Name: "b", File: pngUpload("b.png")}, media.ErrQuotaExceeded},
		{"unsupported", presentations.CueInput{Index: 1, Screen: 1, Name: "b", File: &presentations.Upload{
			Name: "notes.txt", ContentType: "text/plain", Size: 5, Body: strings.NewReader("hello"),
		}}, media.ErrUnsupportedMedia},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := f.svc.AddCue(ctx, owner, p.ID, tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if f.store.Len() != 1 {
		t.Fatalf("rejected uploads must not leave objects behind, store has %d", f.store.Len())
	}
}

func TestAddCueRejectsDisguisedFile(t *testing.T) {
	f := newFixture(t, media.Limits{})
	ctx := context.Background()
	p := f.create(t, 1, 1)

	pdf := "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"
	_, _, err := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 0, Screen: 1, Name: "doc", File: &presentations.Upload{
		Name: "logo.png", ContentType: "image/png", Size: int64(len(pdf)), Body: strings.NewReader(pdf),
	}})
	if !errors.Is(err, media.ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}
	if f.store.Len() != 0 {
		t.Fatalf("rejected file was stored")
	}
}

func TestAudioCueOnAudioScreen(t *testing.T) {
	f := newFixture(t, media.Limits{})
	ctx := context.Background()
	p := f.create(t, 2, 2)

	_, cue, err := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 0, Screen: 3, Name: "Theme", Loop: true, File: mp3Upload("theme.mp3")})
	if err != nil {
		t.Fatalf("add audio cue failed: %v", err)
	}
	if cue.Media.Kind != media.KindAudio || !cue.Loop {
		t.Fatalf("unexpected audio cue: %+v", cue)
	}

	updated, err := f.svc.SetScreenCount(ctx, owner, p.ID, 4)
	if err != nil {
		t.Fatalf("set screen count failed: %v", err)
	}
	if updated.Cues[0].Screen != 5 {
		t.Fatalf("expected audio cue to move to screen 5, got %d", updated.Cues[0].Screen)
	}
}

func TestUpdateCue(t *testing.T) {
	f := newFixture(t, media.Limits{})
	ctx := context.Background()
	p := f.create(t, 2, 3)

	_, a, _ := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 0, Screen: 1, Name: "a", File: pngUpload("a.png")})
	_, b, _ := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 1, Screen: 1, Name: "b"})
	oldKey := a.Media.Key

	name, loop := "renamed", true
	index, screen := 1, 1
	if _, err := f.svc.UpdateCue(ctx, owner, p.ID, a.ID, presentations.CueUpdate{Index: &index, Screen: &screen}); !errors.Is(err, presentations.ErrSlotOccupied) {
		t.Fatalf("expected ErrSlotOccupied, got %v", err)
	}

	updated, err := f.svc.UpdateCue(ctx, owner, p.ID, a.ID, presentations.CueUpdate{
		Name: &name, Loop: &loop, Index: &index, Screen: &screen, Swap: true,
	})
	if err != nil {
		t.Fatalf("swap update failed: %v", err)
	}
	for _, c := range updated.Cues {
		switch c.ID {
		case a.ID:
			if c.Index != 1 || c.Name != "renamed" || !c.Loop {
				t.Fatalf("unexpected cue a: %+v", c)
			}
		case b.ID:
			if c.Index != 0 {
				t.Fatalf("expected cue b swapped to index 0, got %d", c.Index)
			}
		}
	}

	replaced, err := f.svc.UpdateCue(ctx, owner, p.ID, a.ID, presentations.CueUpdate{File: pngUpload("new.png")})
	if err != nil {
		t.Fatalf("replace file failed: %v", err)
	}
	if _, ok := f.store.Get(oldKey); ok {
		t.Fatalf("expected replaced file to be deleted")
	}
	if f.store.Len() != 1 {
		t.Fatalf("expected exactly one stored file, got %d", f.store.Len())
	}
	if replaced.TotalFileSize != int64(len(pngBytes)) {
		t.Fatalf("expected size to count the new file only, got %d", replaced.TotalFileSize)
	}

	if _, err := f.svc.UpdateCue(ctx, owner, p.ID, "missing", presentations.CueUpdate{Name: &name}); !errors.Is(err, presentations.ErrCueNotFound) {
		t.Fatalf("expected ErrCueNotFound, got %v", err)
	}
}

func TestRemoveAndCopyCue(t *testing.T) {
	f := newFixture(t, media.Limits{})
	ctx := context.Background()
	p := f.create(t, 2, 3)

	_, a, _ := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 0, Screen: 1, Name: "a", File: pngUpload("a.png")})

	saved, copied, err := f.svc.CopyCue(ctx, owner, p.ID, a.ID, 2, 2)
	if err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if copied.ID == a.ID || copied.Media.Key == a.Media.Key || copied.Name != "a" {
		t.Fatalf("expected independent copy, got %+v", copied)
	}
	if f.store.Len() != 2 || saved.TotalFileSize != 2*int64(len(pngBytes)) {
		t.Fatalf("expected copied file, store=%d size=%d", f.store.Len(), saved.TotalFileSize)
	}
	if _, _, err := f.svc.CopyCue(ctx, owner, p.ID, a.ID, 2, 2); !errors.Is(err, presentations.ErrSlotOccupied) {
		t.Fatalf("expected ErrSlotOccupied, got %v", err)
	}

	after, err := f.svc.RemoveCue(ctx, owner, p.ID, a.ID)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(after.Cues) != 1 {
		t.Fatalf("expected one cue left, got %d", len(after.Cues))
	}
	if _, ok := f.store.Get(a.Media.Key); ok {
		t.Fatalf("expected removed cue's file to be deleted")
	}
	if _, ok := f.store.Get(copied.Media.Key); !ok {
		t.Fatalf("expected copy's file to survive")
	}
}

func TestIndexOperations(t *testing.T) {
	f := newFixture(t, media.Limits{})
	ctx := context.Background()
	p := f.create(t, 1, 2)

	_, a, _ := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 0, Screen: 1, Name: "a"})
	_, b, _ := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 1, Screen: 1, Name: "b", File: pngUpload("b.png")})

	inserted, err := f.svc.InsertIndex(ctx, owner, p.ID, 0)
	if err != nil {
		t.Fatalf("insert index failed: %v", err)
	}
	if inserted.IndexCount != 3 || inserted.Cues[0].ID != a.ID || inserted.Cues[0].Index != 1 {
		t.Fatalf("unexpected grid after insert: %+v", inserted)
	}

	removed, err := f.svc.RemoveIndex(ctx, owner, p.ID, 2)
	if err != nil {
		t.Fatalf("remove index failed: %v", err)
	}
	if removed.IndexCount != 2 || len(removed.Cues) != 1 {
		t.Fatalf("unexpected grid after remove: %+v", removed)
	}
	if _, ok := f.store.Get(b.Media.Key); ok {
		t.Fatalf("expected file of dropped cue to be deleted")
	}

	resized, err := f.svc.SetIndexCount(ctx, owner, p.ID, 1)
	if err != nil {
		t.Fatalf("set index count failed: %v", err)
	}
	if resized.IndexCount != 1 || len(resized.Cues) != 0 {
		t.Fatalf("unexpected grid after resize: %+v", resized)
	}
}

func TestDeletePresentationRemovesFiles(t *testing.T) {
	f := newFixture(t, media.Limits{})
	ctx := context.Background()
	p := f.create(t, 1, 2)
	other := f.create(t, 1, 2)

	_, _, _ = f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 0, Screen: 1, Name: "a", File: pngUpload("a.png")})
	_, _, _ = f.svc.AddCue(ctx, owner, other.ID, presentations.CueInput{Index: 0, Screen: 2, Name: "m", File: mp3Upload("m.mp3")})

	if err := f.svc.Delete(ctx, stranger, p.ID); !errors.Is(err, presentations.ErrNotFound) {
		t.Fatalf("expected stranger delete to fail, got %v", err)
	}
	if err := f.svc.Delete(ctx, owner, p.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if f.store.Len() != 1 {
		t.Fatalf("expected one file left, got %d", f.store.Len())
	}

	if err := f.svc.DeleteAllForUser(ctx, owner.UserID); err != nil {
		t.Fatalf("delete all failed: %v", err)
	}
	if f.store.Len() != 0 {
		t.Fatalf("expected no files left, got %d", f.store.Len())
	}
	list, _ := f.svc.ListForUser(ctx, owner, owner.UserID)
	if len(list) != 0 {
		t.Fatalf("expected no presentations left, got %d", len(list))
	}
}

func TestMediaURL(t *testing.T) {
	f := newFixture(t, media.Limits{})
	ctx := context.Background()
	p := f.create(t, 1, 2)

	_, a, _ := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 0, Screen: 1, Name: "a", File: pngUpload("a.png")})
	_, blank, _ := f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 1, Screen: 1, Name: "blank"})

	url, err := f.svc.MediaURL(ctx, owner, p.ID, a.ID)
	if err != nil || !strings.Contains(url, a.Media.Key) {
		t.Fatalf("expected signed url for %s, got %q (%v)", a.Media.Key, url, err)
	}
	if _, err := f.svc.MediaURL(ctx, owner, p.ID, blank.ID); !errors.Is(err, presentations.ErrCueNotFound) {
		t.Fatalf("expected ErrCueNotFound for blank cue, got %v", err)
	}
}

// flakyRepo fails the first conflicts saves with ErrConflict and can be made
// to fail every save.
type flakyRepo struct {
	presentations.Repository
	conflicts int
	fail      error
}

func (r *flakyRepo) Save(ctx context.Context, p presentations.Presentation) (presentations.Presentation, error) {
	if p.ID != "" && r.fail != nil {
		return presentations.Presentation{}, r.fail
	}
	if p.ID != "" && r.conflicts > 0 {
		r.conflicts--
		return presentations.Presentation{}, presentations.ErrConflict
	}
	return r.Repository.Save(ctx, p)
}

func TestMutateRetriesConflicts(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{Repository: memory.NewPresentationRepository(), conflicts: 2}
	svc := presentations.NewService(presentations.Options{Repo: repo, Store: blob.NewMemoryStore("")})

	p, err := svc.Create(ctx, owner, presentations.CreateInput{Name: "Show"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	renamed, err := svc.Rename(ctx, owner, p.ID, "Retried")
	if err != nil {
		t.Fatalf("rename should survive two conflicts: %v", err)
	}
	if renamed.Name != "Retried" {
		t.Fatalf("expected rename to apply, got %q", renamed.Name)
	}

	repo.conflicts = 3
	if _, err := svc.Rename(ctx, owner, p.ID, "Again"); !errors.Is(err, presentations.ErrConflict) {
		t.Fatalf("expected ErrConflict after exhausting retries, got %v", err)
	}
}

func TestFailedSaveRemovesUpload(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{Repository: memory.NewPresentationRepository()}
	store := blob.NewMemoryStore("")
	svc := presentations.NewService(presentations.Options{Repo: repo, Store: store})

	p, err := svc.Create(ctx, owner, presentations.CreateInput{Name: "Show"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	repo.fail = errors.New("database offline")

	if _, _, err := svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 0, Screen: 1, Name: "a", File: pngUpload("a.png")}); err == nil {
		t.Fatalf("expected add to fail")
	}
	if store.Len() != 0 {
		t.Fatalf("expected uploaded file to be cleaned up, store has %d", store.Len())
	}
}

func TestUpdatePresentation(t *testing.T) {
	f := newFixture(t, media.Limits{})
	ctx := context.Background()
	p := f.create(t, 3, 4)

	_, _, _ = f.svc.AddCue(ctx, owner, p.ID, presentations.CueInput{Index: 3, Screen: 3, Name: "dropped", File: pngUpload("d.png")})

	name, screens, indexes := "Finale", 2, 3
	updated, err := f.svc.Update(ctx, owner, p.ID, presentations.PresentationUpdate{Name: &name, ScreenCount: &screens, IndexCount: &indexes})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Finale" || updated.ScreenCount != 2 || updated.IndexCount != 3 || len(updated.Cues) != 0 {
		t.Fatalf("unexpected presentation: %+v", updated)
	}
	if f.store.Len() != 0 {
		t.Fatalf("expected file of dropped cue to be deleted")
	}

	bad := 0
	if _, err := f.svc.Update(ctx, owner, p.ID, presentations.PresentationUpdate{Name: &name, IndexCount: &bad}); !errors.Is(err, presentations.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	current, _ := f.svc.Get(ctx, owner, p.ID)
	if current.Version != updated.Version {
		t.Fatalf("failed update must not be saved")
	}
}
