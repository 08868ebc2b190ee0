package tasks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

var orgTagUnsafe = regexp.MustCompile(`[^\p{L}\p{N}_@#%]+`)

// OrgOptions configures an OrgFile.
type OrgOptions struct {
	// FileTags go into the #+FILETAGS header of a new file.
	FileTags string
	Location *time.Location
}

// OrgFile appends tasks as TODO entries to an org-mode outline.
type OrgFile struct {
	path string
	opts OrgOptions
	mu   sync.Mutex
}

// NewOrgFile returns a store appending to the outline at path.
func NewOrgFile(path string, opts OrgOptions) *OrgFile {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &OrgFile{path: path, opts: opts}
}

func (o *OrgFile) CreateTask(_ context.Context, t Task) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
		return "", fmt.Errorf("create org dir: %w", err)
	}
	f, err := os.OpenFile(o.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open org file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat org file: %w", err)
	}

	var b strings.Builder
	if info.Size() == 0 {
		b.WriteString(OrgHeader(o.opts.FileTags))
		b.WriteString("\n")
	}
	RenderOrg(&b, t, o.opts.Location)

	if _, err := io.WriteString(f, b.String()); err != nil {
		return "", fmt.Errorf("append org entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync org file: %w", err)
	}
	return Handle(t.ID), nil
}

// OrgHeader is written at the top of a freshly created outline.
func OrgHeader(fileTags string) string {
	var b strings.Builder
	if fileTags != "" {
		fmt.Fprintf(&b, "#+FILETAGS: %s\n", fileTags)
	}
	b.WriteString("# AUTOGENERATED by fwdtodo\n")
	return b.String()
}

// RenderOrg writes t as an org TODO entry followed by a blank line.
func RenderOrg(w io.Writer, t Task, loc *time.Location) {
	heading := "* TODO " + t.Heading
	if tags := orgTags(t.Tags); tags != "" {
		heading += " " + tags
	}
	scheduled := t.Scheduled
	if scheduled.IsZero() {
		scheduled = time.Now()
	}
	if loc != nil {
		scheduled = scheduled.In(loc)
	}

	fmt.Fprintln(w, heading)
	fmt.Fprintf(w, "  SCHEDULED: <%s>\n", scheduled.Format("2006-01-02 Mon"))
	fmt.Fprintln(w, "  :PROPERTIES:")
	fmt.Fprintf(w, "  :ID:       %s\n", t.ID)
	fmt.Fprintf(w, "  :FWD_TS:   %d\n", t.Timestamp)
	fmt.Fprintln(w, "  :END:")
	for _, line := range t.Body {
		for _, l := range strings.Split(line, "\n") {
			fmt.Fprintln(w, strings.TrimRight("  "+l, " \t\r"))
		}
	}
	fmt.Fprintln(w)
}

func orgTags(tags []string) string {
	var parts []string
	for _, t := range tags {
		if t = orgTagUnsafe.ReplaceAllString(t, "_"); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return ":" + strings.Join(parts, ":") + ":"
}
