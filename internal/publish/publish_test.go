package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"dancefeed/internal/model"
)

type fakeRepo struct {
	files     map[string]File
	taken     map[string]bool
	branchErr error

	attempts []string
	puts     []FileUpdate
	prs      []PullRequest
}

func (r *fakeRepo) HeadSHA(context.Context, string) (string, error) { return "abc123", nil }

func (r *fakeRepo) CreateBranch(_ context.Context, name, sha string) error {
	r.attempts = append(r.attempts, name)
	if r.branchErr != nil {
		return r.branchErr
	}
	if r.taken[name] {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}
	return nil
}

func (r *fakeRepo) GetFile(_ context.Context, path, _ string) (File, error) {
	if f, ok := r.files[path]; ok {
		return f, nil
	}
	return File{}, ErrNotFound
}

func (r *fakeRepo) PutFile(_ context.Context, u FileUpdate) error {
	r.puts = append(r.puts, u)
	return nil
}

func (r *fakeRepo) CreatePullRequest(_ context.Context, pr PullRequest) (string, error) {
	r.prs = append(r.prs, pr)
	return "https://github.com/o/r/pull/1", nil
}

func testEvent(t *testing.T) model.Event {
	t.Helper()
	d := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	et, err := model.DateOnly(d, d)
	require.NoError(t, err)
	return model.Event{
		Name:    "Summer Ceilidh",
		Links:   []string{"https://example.org/ceilidh"},
		Time:    et,
		Country: "UK",
		City:    "Southend-on-Sea",
		Styles:  []model.DanceStyle{model.EnglishCeilidh},
		Social:  true,
	}
}

func TestToSafeFilename(t *testing.T) {
	assert.Equal(t, "southend-on-sea", ToSafeFilename("Southend-on-Sea"))
	assert.Equal(t, "weird_characters", ToSafeFilename(`weird'"@\/ characters`))
	assert.Equal(t, "zrich", ToSafeFilename("Zürich"))
	assert.Len(t, ToSafeFilename(strings.Repeat("a", 45)), 30)
}

func TestNames(t *testing.T) {
	e := testEvent(t)
	assert.Equal(t, "events/uk/southend-on-sea.yaml", FilenameFor(e))
	assert.Equal(t, "add-uk-southend-on-sea-summer_ceilidh", BranchName(e))
}

func TestAddEventCreatesFile(t *testing.T) {
	repo := &fakeRepo{}
	p := New(repo, "main", 0)

	url, err := p.Submit(context.Background(), testEvent(t))
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/o/r/pull/1", url)

	require.Len(t, repo.puts, 1)
	put := repo.puts[0]
	assert.Equal(t, "events/uk/southend-on-sea.yaml", put.Path)
	assert.Equal(t, "add-uk-southend-on-sea-summer_ceilidh", put.Branch)
	assert.Empty(t, put.SHA)
	assert.True(t, strings.HasPrefix(string(put.Content), SchemaHeader+"\nevents:\n  - name: Summer Ceilidh\n"), string(put.Content))

	events, err := model.UnmarshalEvents(put.Content)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Summer Ceilidh", events[0].Name)

	require.Len(t, repo.prs, 1)
	assert.Equal(t, PullRequest{
		Title: "Add Summer Ceilidh in Southend-on-Sea",
		Head:  put.Branch,
		Base:  "main",
		Body:  "Added from web form.",
	}, repo.prs[0])
}

func TestAddEventAppendsToExistingFile(t *testing.T) {
	existing := SchemaHeader + "\nevents:\n  - name: Old Dance\n    links:\n      - https://example.org/old\n    start_date: \"2024-01-01\"\n    end_date: \"2024-01-01\"\n    country: UK\n    city: Southend-on-Sea\n    styles:\n      - e-ceilidh\n    workshop: false\n    social: true\n"
	repo := &fakeRepo{files: map[string]File{
		"events/uk/southend-on-sea.yaml": {Content: []byte(existing), SHA: "blob1"},
	}}
	p := New(repo, "main", 0)

	_, err := p.Submit(context.Background(), testEvent(t))
	require.NoError(t, err)
	require.Len(t, repo.puts, 1)
	put := repo.puts[0]
	assert.Equal(t, "blob1", put.SHA)
	assert.True(t, strings.HasPrefix(string(put.Content), existing))
	assert.Equal(t, 1, strings.Count(string(put.Content), "events:"))

	var doc struct {
		Events []map[string]any `yaml:"events"`
	}
	require.NoError(t, yaml.Unmarshal(put.Content, &doc))
	require.Len(t, doc.Events, 2)
	assert.Equal(t, "Summer Ceilidh", doc.Events[1]["name"])
}

func TestBranchCollisionUsesSuffix(t *testing.T) {
	base := BranchName(testEvent(t))
	repo := &fakeRepo{taken: map[string]bool{base: true, base + "1": true}}
	p := New(repo, "main", 0)

	_, err := p.Submit(context.Background(), testEvent(t))
	require.NoError(t, err)
	assert.Equal(t, []string{base, base + "1", base + "2"}, repo.attempts)
	assert.Equal(t, base+"2", repo.puts[0].Branch)
}

func TestBranchAttemptsAreBounded(t *testing.T) {
	base := BranchName(testEvent(t))
	taken := map[string]bool{base: true}
	for i := 1; i < 20; i++ {
		taken[fmt.Sprintf("%s%d", base, i)] = true
	}
	repo := &fakeRepo{taken: taken}
	p := New(repo, "main", 4)

	_, err := p.Submit(context.Background(), testEvent(t))
	require.Error(t, err)
	assert.Len(t, repo.attempts, 4)
	assert.ErrorIs(t, err, ErrBranchExists)
	assert.Contains(t, err.Error(), base+"3")

	var pubErr *Error
	require.ErrorAs(t, err, &pubErr)
	assert.Empty(t, repo.puts)
	assert.Empty(t, repo.prs)
}

func TestBranchOtherErrorStops(t *testing.T) {
	repo := &fakeRepo{branchErr: errors.New("forbidden")}
	_, err := New(repo, "main", 0).Submit(context.Background(), testEvent(t))
	require.Error(t, err)
	assert.Len(t, repo.attempts, 1)
	assert.NotErrorIs(t, err, ErrBranchExists)
}

func TestSubmitValidates(t *testing.T) {
	e := testEvent(t)
	e.City = ""
	repo := &fakeRepo{}
	_, err := New(repo, "main", 0).Submit(context.Background(), e)
	require.Error(t, err)
	assert.Empty(t, repo.attempts)
}
