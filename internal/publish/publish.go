// Package publish proposes hand-entered events to the upstream events
// repository: it writes the event to a per-city file on a fresh branch and
// opens a pull request.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	appLog "dancefeed/internal/log"
	"dancefeed/internal/model"
)

var (
	// ErrBranchExists is returned by Repository.CreateBranch on a name collision.
	ErrBranchExists = errors.New("branch already exists")
	// ErrNotFound is returned by Repository.GetFile for a missing file.
	ErrNotFound = errors.New("not found")
)

// SchemaHeader starts every newly created events file.
const SchemaHeader = "# yaml-language-server: $schema=../../events_schema.json"

// DefaultMaxBranchAttempts bounds the branch name suffix search.
const DefaultMaxBranchAttempts = 10

// Error is a failed submission. Err is the last underlying cause.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "publish: " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// File is the content of a repository file at some revision.
type File struct {
	Content []byte
	SHA     string
}

// FileUpdate creates or replaces a file. SHA is the blob being replaced, or
// empty to create.
type FileUpdate struct {
	Path    string
	Branch  string
	Message string
	Content []byte
	SHA     string
}

type PullRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
}

// Repository is the subset of a hosted git API the workflow needs.
type Repository interface {
	HeadSHA(ctx context.Context, branch string) (string, error)
	CreateBranch(ctx context.Context, name, sha string) error
	GetFile(ctx context.Context, path, ref string) (File, error)
	PutFile(ctx context.Context, u FileUpdate) error
	// CreatePullRequest returns the web URL of the new pull request.
	CreatePullRequest(ctx context.Context, pr PullRequest) (string, error)
}

// Publisher runs the submission workflow against one repository.
type Publisher struct {
	repo        Repository
	mainBranch  string
	maxAttempts int
}

// New returns a Publisher. A non-positive maxAttempts uses
// DefaultMaxBranchAttempts.
func New(repo Repository, mainBranch string, maxAttempts int) *Publisher {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxBranchAttempts
	}
	if mainBranch == "" {
		mainBranch = "main"
	}
	return &Publisher{repo: repo, mainBranch: mainBranch, maxAttempts: maxAttempts}
}

// Submit validates e and proposes it for its region's file.
func (p *Publisher) Submit(ctx context.Context, e model.Event) (string, error) {
	if err := e.Validate(); err != nil {
		return "", &Error{Op: "validate", Err: err}
	}
	return p.AddEvent(ctx, e, FilenameFor(e))
}

// AddEvent appends e to filename (creating it if needed) on a new branch and
// opens a pull request. It returns the pull request URL.
func (p *Publisher) AddEvent(ctx context.Context, e model.Event, filename string) (string, error) {
	doc, err := encode(e)
	if err != nil {
		return "", &Error{Op: "encode", Err: err}
	}

	head, err := p.repo.HeadSHA(ctx, p.mainBranch)
	if err != nil {
		return "", &Error{Op: "resolve " + p.mainBranch, Err: err}
	}
	branch, err := p.createBranch(ctx, e, head)
	if err != nil {
		return "", err
	}

	message := fmt.Sprintf("Add %s in %s", e.Name, e.City)
	update := FileUpdate{Path: filename, Branch: branch, Message: message}

	existing, err := p.repo.GetFile(ctx, filename, branch)
	switch {
	case err == nil:
		var buf bytes.Buffer
		buf.Write(bytes.TrimRight(existing.Content, "\n"))
		buf.WriteByte('\n')
		buf.Write(bytes.TrimPrefix(doc, []byte("events:\n")))
		update.Content = buf.Bytes()
		update.SHA = existing.SHA
		appLog.Info("publish: appending to existing file", "path", filename, "sha", existing.SHA)
	case errors.Is(err, ErrNotFound):
		update.Content = append([]byte(SchemaHeader+"\n"), doc...)
		appLog.Info("publish: creating file", "path", filename)
	default:
		return "", &Error{Op: "read " + filename, Err: err}
	}

	if err := p.repo.PutFile(ctx, update); err != nil {
		return "", &Error{Op: "write " + filename, Err: err}
	}

	url, err := p.repo.CreatePullRequest(ctx, PullRequest{
		Title: message,
		Head:  branch,
		Base:  p.mainBranch,
		Body:  "Added from web form.",
	})
	if err != nil {
		return "", &Error{Op: "open pull request", Err: err}
	}
	appLog.Info("publish: opened pull request", "url", url, "branch", branch)
	return url, nil
}

// createBranch tries the base name and then numbered suffixes, at most
// p.maxAttempts times in total. Only name collisions are retried.
func (p *Publisher) createBranch(ctx context.Context, e model.Event, sha string) (string, error) {
	base := BranchName(e)
	last := ErrBranchExists
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		name := base
		if attempt > 0 {
			name = base + strconv.Itoa(attempt)
		}
		appLog.Info("publish: creating branch", "branch", name)
		err := p.repo.CreateBranch(ctx, name, sha)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, ErrBranchExists) {
			return "", &Error{Op: "create branch " + name, Err: err}
		}
		last = err
	}
	appLog.Warn("publish: no free branch name", "base", base, "attempts", p.maxAttempts, "err", last)
	return "", &Error{Op: fmt.Sprintf("create branch %s after %d attempts", base, p.maxAttempts), Err: last}
}

// BranchName is the unsuffixed branch for proposing e.
func BranchName(e model.Event) string {
	return "add-" + ToSafeFilename(e.Country) + "-" + ToSafeFilename(e.City) + "-" + ToSafeFilename(e.Name)
}

// FilenameFor is the repository path holding events in e's city.
func FilenameFor(e model.Event) string {
	return path.Join("events", ToSafeFilename(e.Country), ToSafeFilename(e.City)+".yaml")
}

// ToSafeFilename lower-cases s, turns spaces into underscores, drops
// everything but ASCII letters, digits, '_' and '-' and truncates to 30
// bytes.
func ToSafeFilename(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), " ", "_")
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 30 {
		out = out[:30]
	}
	return out
}

// encode renders e as a one-event document with two-space indentation.
func encode(e model.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(model.Document{Events: []model.Event{e}}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
