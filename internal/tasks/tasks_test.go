package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/fwdtodo/internal/format"
	"github.com/matheus3301/fwdtodo/internal/store"
)

var day = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func sample(id string, ts int64) Task {
	return Task{
		ID:        id,
		Timestamp: ts,
		Heading:   "https://t.me/alice alice buy milk",
		Tags:      []string{"family"},
		Body:      []string{"buy milk", "http://x X"},
		Scheduled: day,
	}
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFromRecord(t *testing.T) {
	rec := format.Record{Timestamp: 1000, Heading: "h", Tags: []string{"a"}, Body: []string{"b"}}
	a := FromRecord(rec, day)
	b := FromRecord(rec, day)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids %q and %q, want distinct non-empty", a.ID, b.ID)
	}
	if a.Timestamp != 1000 || a.Heading != "h" || !a.Scheduled.Equal(day) {
		t.Errorf("task = %+v", a)
	}
}

func TestRenderOrg(t *testing.T) {
	var buf bytes.Buffer
	task := sample("id-1", 1000)
	task.Tags = []string{"family", "to do"}
	RenderOrg(&buf, task, time.UTC)

	want := `* TODO https://t.me/alice alice buy milk :family:to_do:
  SCHEDULED: <2026-10-19 Mon>
  :PROPERTIES:
  :ID:       id-1
  :FWD_TS:   1000
  :END:
  buy milk
  http://x X

`
	if buf.String() != want {
		t.Errorf("RenderOrg() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestOrgFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo", "inbox.org")
	org := NewOrgFile(path, OrgOptions{FileTags: "telegram", Location: time.UTC})
	ctx := context.Background()

	h, err := org.CreateTask(ctx, sample("id-1", 1000))
	if err != nil {
		t.Fatal(err)
	}
	if h != "id-1" {
		t.Errorf("handle = %q, want id-1", h)
	}
	// Same heading again: a second entry, never merged.
	if _, err := org.CreateTask(ctx, sample("id-2", 1001)); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "#+FILETAGS: telegram\n# AUTOGENERATED by fwdtodo\n\n* TODO ") {
		t.Errorf("file does not start with the header:\n%s", content)
	}
	if n := strings.Count(content, "# AUTOGENERATED"); n != 1 {
		t.Errorf("header written %d times", n)
	}
	if n := strings.Count(content, "* TODO https://t.me/alice alice buy milk"); n != 2 {
		t.Errorf("got %d entries, want 2", n)
	}
	if !strings.Contains(content, ":FWD_TS:   1001") {
		t.Error("second entry missing")
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, time.UTC)
	if _, err := w.CreateTask(context.Background(), sample("x", 5)); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "* TODO ") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestLocalList(t *testing.T) {
	db := testDB(t)
	l := NewLocalList(db)
	ctx := context.Background()

	if _, err := l.CreateTask(ctx, sample("id-1", 1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.CreateTask(ctx, sample("id-2", 1000)); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListTasks(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tasks, want 2", len(got))
	}
	if got[0].Tags != "family" || got[0].Body != "buy milk\nhttp://x X" {
		t.Errorf("task = %+v", got[0])
	}
}

type failingStore struct{}

func (failingStore) CreateTask(context.Context, Task) (Handle, error) {
	return "", errors.New("sink down")
}

func TestJournal(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	j := NewJournal(NewLocalList(db), "local", db, nil)
	if _, err := j.CreateTask(ctx, sample("id-1", 1000)); err != nil {
		t.Fatal(err)
	}
	failing := NewJournal(failingStore{}, "broken", db, nil)
	if _, err := failing.CreateTask(ctx, sample("id-2", 2000)); err == nil {
		t.Error("Journal hid the sink error")
	}

	got, err := db.RecentEmissions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Sink != "local" || got[0].Handle != "id-1" || got[0].EventTS != 1000 {
		t.Errorf("ledger = %+v, want one local entry", got)
	}
}

func TestSign(t *testing.T) {
	params := url.Values{"yxz": {"foo"}, "feg": {"bar"}, "abc": {"baz"}}
	if got := Sign("BANANAS", params); got != "82044aae4dd676094f23f1ec152159ba" {
		t.Errorf("Sign() = %s", got)
	}
	params.Set("api_sig", "ignored")
	if got := Sign("BANANAS", params); got != "82044aae4dd676094f23f1ec152159ba" {
		t.Errorf("Sign() with api_sig = %s", got)
	}
}

func TestSmartAddName(t *testing.T) {
	got := SmartAddName("https://t.me/alice alice! call @home #now", []string{"tg", "big family"})
	want := "https: t.me alice alice call home now ^today #tg #big_family"
	if got != want {
		t.Errorf("SmartAddName() = %q, want %q", got, want)
	}
}

// fakeRTM records calls and answers like the REST API.
type fakeRTM struct {
	mu     sync.Mutex
	calls  []url.Values
	failOn string
}

func (f *fakeRTM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, r.PostForm)
	f.mu.Unlock()

	if Sign("secret", r.PostForm) != r.PostForm.Get("api_sig") {
		fmt.Fprint(w, `{"rsp":{"stat":"fail","err":{"code":"96","msg":"Invalid signature"}}}`)
		return
	}
	method := r.PostForm.Get("method")
	if method == f.failOn {
		fmt.Fprint(w, `{"rsp":{"stat":"fail","err":{"code":"98","msg":"Login failed"}}}`)
		return
	}
	switch method {
	case "rtm.timelines.create":
		fmt.Fprint(w, `{"rsp":{"stat":"ok","timeline":"tl1"}}`)
	case "rtm.tasks.add":
		fmt.Fprint(w, `{"rsp":{"stat":"ok","list":{"id":"L","taskseries":{"id":"S","task":[{"id":"T"}]}}}}`)
	case "rtm.tasks.notes.add":
		fmt.Fprint(w, `{"rsp":{"stat":"ok"}}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRTM) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Get("method"))
	}
	return out
}

func TestRTMCreateTask(t *testing.T) {
	fake := &fakeRTM{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	r := NewRTM(RTMOptions{APIKey: "key", Secret: "secret", Token: "tok", Tag: "tg", Endpoint: srv.URL}, nil)
	ctx := context.Background()

	h, err := r.CreateTask(ctx, sample("id-1", 1000))
	if err != nil {
		t.Fatal(err)
	}
	if h != "L/S/T" {
		t.Errorf("handle = %q, want L/S/T", h)
	}
	if _, err := r.CreateTask(ctx, sample("id-2", 1001)); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"rtm.timelines.create",
		"rtm.tasks.add", "rtm.tasks.notes.add", "rtm.tasks.notes.add",
		"rtm.tasks.add", "rtm.tasks.notes.add", "rtm.tasks.notes.add",
	}
	got := fake.methods()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("methods = %v, want %v", got, want)
	}

	add := fake.calls[1]
	if add.Get("name") != "https: t.me alice alice buy milk ^today #tg #family" {
		t.Errorf("name = %q", add.Get("name"))
	}
	if add.Get("parse") != "1" || add.Get("timeline") != "tl1" {
		t.Errorf("add params = %v", add)
	}
	if note := fake.calls[2]; note.Get("note_text") != "buy milk" || note.Get("task_id") != "T" {
		t.Errorf("note params = %v", note)
	}
}

func TestRTMError(t *testing.T) {
	srv := httptest.NewServer(&fakeRTM{failOn: "rtm.tasks.add"})
	defer srv.Close()

	r := NewRTM(RTMOptions{Secret: "secret", Endpoint: srv.URL}, nil)
	_, err := r.CreateTask(context.Background(), sample("id-1", 1000))
	var rtmErr *RTMError
	if !errors.As(err, &rtmErr) {
		t.Fatalf("err = %v, want *RTMError", err)
	}
	if rtmErr.Code != "98" || rtmErr.Method != "rtm.tasks.add" {
		t.Errorf("err = %+v", rtmErr)
	}
}
