package manager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/texture/internal/apperr"
	"github.com/starford/texture/internal/binder"
	"github.com/starford/texture/internal/catalog"
	"github.com/starford/texture/internal/editor"
	"github.com/starford/texture/internal/latex"
	"github.com/starford/texture/internal/models"
	"github.com/starford/texture/internal/testutil"
)

// fakeCompiler writes a PDF for every job except those whose file is listed
// in fail.
type fakeCompiler struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (f *fakeCompiler) Compile(_ context.Context, job latex.Job) error {
	f.mu.Lock()
	f.calls = append(f.calls, job.File)
	fail := f.fail[job.File]
	f.mu.Unlock()
	if fail {
		return errors.Join(apperr.ErrCompileFailed, errors.New(job.File))
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(latex.OutputPDF(job), []byte("%PDF"), 0o644)
}

func (f *fakeCompiler) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fixture struct {
	root     string
	store    *catalog.Store
	binder   *binder.Binder
	compiler *fakeCompiler
	mgr      *Manager
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	root, b := testutil.TestBinder(t)
	store := testutil.TestCatalog(t)
	fc := &fakeCompiler{fail: map[string]bool{}}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &fixture{
		root:     root,
		store:    store,
		binder:   b,
		compiler: fc,
		mgr:      New(store, b, fc, opts),
	}
}

func (f *fixture) add(t *testing.T, args ...string) *Report {
	t.Helper()
	return f.run(t, KindAdd, args...)
}

func (f *fixture) run(t *testing.T, kind Kind, args ...string) *Report {
	t.Helper()
	req, err := ParseRequest(kind, args)
	require.NoError(t, err)
	report, err := f.mgr.Execute(context.Background(), req)
	require.NoError(t, err)
	return report
}

func (f *fixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.root, binder.NotesDirName}, parts...)...)
}

func titlesOf(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Title
	}
	return out
}

func TestAdd_SubjectsBeforeNotes(t *testing.T) {
	f := newFixture(t, Options{})
	report := f.add(t, "--note", "Calculus", "Precalculus Review", "Limits", "--subject", "Calculus")
	require.NoError(t, report.Err())

	subjects, err := f.store.ListSubjects(catalog.SortID)
	require.NoError(t, err)
	require.Len(t, subjects, 1)

	notes, err := f.store.ListNotes("Calculus", models.AllSelector)
	require.NoError(t, err)
	assert.Equal(t, []string{"Precalculus Review", "Limits"}, titlesOf(notes))

	assert.FileExists(t, f.path("calculus", "precalculus-review.tex"))
	assert.FileExists(t, f.path("calculus", "limits.tex"))
	assert.FileExists(t, f.path("calculus", "main.tex"))
	assert.DirExists(t, f.path("calculus", "graphics"))
	assert.Equal(t, OpAddSubject, report.Outcomes[0].Op)
	assert.Equal(t, "created", report.Outcomes[0].Detail)
}

func TestAdd_Idempotent(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--subject", "Calculus").Err())
	report := f.add(t, "--subject", "Calculus", "Calculus")
	require.NoError(t, report.Err())

	subjects, err := f.store.ListSubjects(catalog.SortID)
	require.NoError(t, err)
	assert.Len(t, subjects, 1)
	for _, o := range report.Outcomes {
		assert.Equal(t, "exists", o.Detail)
	}
}

func TestAdd_ImplicitSubject(t *testing.T) {
	f := newFixture(t, Options{})
	report := f.add(t, "--note", "NewSubj", "Note1")
	require.NoError(t, report.Err())

	n, err := f.store.GetNote("NewSubj", "Note1")
	require.NoError(t, err)
	assert.Equal(t, "newsubj", n.SubjectSlug)
	assert.FileExists(t, f.path("newsubj", "note1.tex"))
}

func TestAdd_ValidationAbortsWithoutMutation(t *testing.T) {
	f := newFixture(t, Options{})
	req := Request{
		Kind:     KindAdd,
		Subjects: []string{"Good", "Bad/Name"},
		Notes:    []NoteGroup{{Subject: "Good", Titles: []string{"Graphics", "graphics notes", ":all:"}}},
	}
	report, err := f.mgr.Execute(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, apperr.ErrInvalidCharacters)
	assert.ErrorIs(t, err, apperr.ErrReservedName)
	assert.True(t, apperr.IsNameError(err))

	subjects, err := f.store.ListSubjects(catalog.SortID)
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func TestAdd_DuplicateNoteContinuesBatch(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "Limits").Err())

	report := f.add(t, "--note", "Calculus", "Limits", "Derivatives")
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, apperr.ErrDuplicateNote)
	assert.Equal(t, "Limits", failed[0].Note)

	_, err := f.store.GetNote("Calculus", "Derivatives")
	assert.NoError(t, err)
	assert.Error(t, report.Err())
}

func TestAdd_ExistingFileCompensatesCatalog(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--subject", "Calculus").Err())
	require.NoError(t, os.WriteFile(f.path("calculus", "limits.tex"), []byte("mine"), 0o644))

	report := f.add(t, "--note", "Calculus", "Limits")
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, apperr.ErrAlreadyExists)
	assert.True(t, apperr.IsIOError(failed[0].Err))

	_, err := f.store.GetNote("Calculus", "Limits")
	assert.ErrorIs(t, err, apperr.ErrUnknownNote)
	data, err := os.ReadFile(f.path("calculus", "limits.tex"))
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))
}

func TestAdd_SlugCollision(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--subject", "Linear Algebra").Err())
	report := f.add(t, "--subject", "linear-algebra")
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, apperr.ErrDuplicateSubject)
}

func TestAdd_TitlesWithSameSlugGetDistinctFiles(t *testing.T) {
	f := newFixture(t, Options{})
	report := f.add(t, "--note", "Calculus", "Limits", "limits", "Limits!")
	require.NoError(t, report.Err())

	notes, err := f.store.ListNotes("Calculus", models.AllSelector)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	seen := map[string]bool{}
	for _, n := range notes {
		path, err := f.binder.NotePath(n)
		require.NoError(t, err)
		assert.FileExists(t, path)
		assert.False(t, seen[path], "%q shares a file", n.Title)
		seen[path] = true
	}
	assert.FileExists(t, f.path("calculus", "limits.tex"))

	report = f.run(t, KindCompile, "--note", "Calculus", ":all:")
	require.NoError(t, report.Err())
	assert.Len(t, f.compiler.Calls(), 3)
}

func TestRemove_AllKeepsMain(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "A", "B").Err())

	report := f.run(t, KindRemove, "--note", "Calculus", ":all:")
	require.NoError(t, report.Err())
	assert.Len(t, report.Outcomes, 2)

	notes, err := f.store.AllNotes("Calculus", catalog.SortID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.MainNoteTitle}, titlesOf(notes))
	assert.NoFileExists(t, f.path("calculus", "a.tex"))
	assert.NoFileExists(t, f.path("calculus", "b.tex"))
	assert.FileExists(t, f.path("calculus", "main.tex"))
}

func TestRemove_SubjectCascades(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "A", "B").Err())

	require.NoError(t, f.run(t, KindRemove, "--subject", "Calculus").Err())

	_, err := f.store.GetSubject("Calculus")
	assert.ErrorIs(t, err, apperr.ErrUnknownSubject)
	count, err := f.store.CountNotes()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoDirExists(t, f.path("calculus"))
}

func TestRemove_GroupWithoutTitlesRemovesSubject(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--subject", "Calculus").Err())
	require.NoError(t, f.run(t, KindRemove, "--note", "Calculus").Err())
	assert.NoDirExists(t, f.path("calculus"))
}

func TestRemove_UnknownItemsDoNotStopBatch(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "A").Err())

	report := f.run(t, KindRemove, "--subject", "Nope", "--note", "Calculus", "Missing", "A")
	failed := report.Failed()
	require.Len(t, failed, 2)
	assert.ErrorIs(t, failed[0].Err, apperr.ErrUnknownSubject)
	assert.ErrorIs(t, failed[1].Err, apperr.ErrUnknownNote)
	assert.True(t, apperr.IsCatalogError(failed[1].Err))

	_, err := f.store.GetNote("Calculus", "A")
	assert.ErrorIs(t, err, apperr.ErrUnknownNote)
}

func TestRemove_UnknownNoteSubjectIsAResolveFailure(t *testing.T) {
	f := newFixture(t, Options{})
	report := f.run(t, KindRemove, "--note", "Nope", "Limits")
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, OpResolveSubject, failed[0].Op)
	assert.ErrorIs(t, failed[0].Err, apperr.ErrUnknownSubject)

	report = f.run(t, KindRemove, "--note", "Nope")
	failed = report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, OpRemoveSubject, failed[0].Op)
}

func TestRemove_MissingFileStillDeletesRecord(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "A").Err())
	require.NoError(t, os.Remove(f.path("calculus", "a.tex")))

	require.NoError(t, f.run(t, KindRemove, "--note", "Calculus", "A").Err())
	_, err := f.store.GetNote("Calculus", "A")
	assert.ErrorIs(t, err, apperr.ErrUnknownNote)
}

func TestRemove_MainNoteRefused(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--subject", "Calculus").Err())

	report := f.run(t, KindRemove, "--note", "Calculus", models.MainNoteTitle)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, apperr.ErrMainNote)
	assert.FileExists(t, f.path("calculus", "main.tex"))
}

func TestRemove_AllSubjects(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--subject", "Calculus", "Physics").Err())

	report := f.run(t, KindRemove, "--subject", ":ALL:")
	require.NoError(t, report.Err())
	assert.Len(t, report.Outcomes, 2)

	subjects, err := f.store.ListSubjects(catalog.SortID)
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func TestCompile_SubjectRendersAndCompilesMain(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "Limits", "Derivatives").Err())

	report := f.run(t, KindCompile, "--subject", "Calculus")
	require.NoError(t, report.Err())
	assert.Equal(t, []string{"main.tex"}, f.compiler.Calls())

	main, err := os.ReadFile(f.path("calculus", "main.tex"))
	require.NoError(t, err)
	assert.Contains(t, string(main), `\part{Limits}`)
	assert.Contains(t, string(main), `\inputchilddocument{derivatives}`)
	assert.FileExists(t, filepath.Join(f.root, binder.OutputDirName, "calculus", "main.pdf"))
}

func TestCompile_FailuresDoNotAbort(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "Limits", "Derivatives").Err())
	f.compiler.fail["limits.tex"] = true

	report := f.run(t, KindCompile, "--note", "Calculus", ":all:")
	require.Len(t, report.Outcomes, 2)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "Limits", failed[0].Note)
	assert.True(t, latex.IsCompileError(failed[0].Err))
	assert.True(t, report.Outcomes[1].OK())
}

func TestCompile_TargetsAreDeduplicated(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "Limits", "Derivatives").Err())

	report := f.run(t, KindCompile,
		"--subject", "Calculus",
		"--note", "Calculus", "Limits", "Limits",
		"--note", "Calculus", ":all:",
		"--note", "Calculus")
	require.NoError(t, report.Err())
	assert.ElementsMatch(t, []string{"main.tex", "limits.tex", "derivatives.tex"}, f.compiler.Calls())
}

func TestCompile_AllSubjects(t *testing.T) {
	f := newFixture(t, Options{Jobs: 4})
	require.NoError(t, f.add(t, "--note", "Calculus", "Limits", "--note", "Physics", "Optics", "Waves").Err())

	report := f.run(t, KindCompile, "--note", ":all:", ":all:")
	require.NoError(t, report.Err())
	assert.ElementsMatch(t, []string{"limits.tex", "optics.tex", "waves.tex"}, f.compiler.Calls())
	assert.Equal(t, "Limits", report.Outcomes[0].Note)
}

func TestCompile_Cache(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "Limits").Err())

	require.NoError(t, f.run(t, KindCompile, "--cache", "--note", "Calculus", "Limits").Err())
	n, err := f.store.GetNote("Calculus", "Limits")
	require.NoError(t, err)
	assert.NotEmpty(t, n.CompiledChecksum)

	report := f.run(t, KindCompile, "--note", "Calculus", "Limits", "--cache")
	require.NoError(t, report.Err())
	assert.True(t, report.Outcomes[0].Skipped)
	assert.Len(t, f.compiler.Calls(), 1)

	require.NoError(t, os.WriteFile(f.path("calculus", "limits.tex"), []byte("changed"), 0o644))
	report = f.run(t, KindCompile, "--note", "Calculus", "Limits", "--cache")
	require.NoError(t, report.Err())
	assert.False(t, report.Outcomes[0].Skipped)
	assert.Len(t, f.compiler.Calls(), 2)
}

func TestCompile_DanglingNote(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "Limits").Err())
	require.NoError(t, os.Remove(f.path("calculus", "limits.tex")))

	report := f.run(t, KindCompile, "--note", "Calculus", "Limits")
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, apperr.ErrDangling)
	assert.Empty(t, f.compiler.Calls())
}

func TestCompile_UnknownNote(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--subject", "Calculus").Err())

	report := f.run(t, KindCompile, "--note", "Calculus", "Nope")
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, OpResolveNote, failed[0].Op)
	assert.ErrorIs(t, failed[0].Err, apperr.ErrUnknownNote)
}

func TestWatch_RecompilesOnChange(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "Limits").Err())

	req, err := ParseRequest(KindCompile, []string{"--note", "Calculus", "Limits", "--watch"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var passes int
	done := make(chan error, 1)
	go func() {
		done <- f.mgr.Watch(ctx, req, func(*Report) {
			mu.Lock()
			passes++
			mu.Unlock()
		})
	}()
	passCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return passes
	}

	require.Eventually(t, func() bool { return passCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	// Writes are spaced wider than the debounce so one of them lands after
	// the watcher is registered.
	require.Eventually(t, func() bool {
		if passCount() >= 2 {
			return true
		}
		_ = os.WriteFile(f.path("calculus", "limits.tex"), []byte("edited"), 0o644)
		return false
	}, 5*time.Second, 500*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.GreaterOrEqual(t, len(f.compiler.Calls()), 2)
}

func TestList(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Physics", "Waves", "Optics", "--note", "Calculus", "Limits").Err())
	require.NoError(t, os.Remove(f.path("physics", "waves.tex")))

	listing, err := f.mgr.List(context.Background(), nil, SortTitle)
	require.NoError(t, err)
	require.Len(t, listing, 2)
	assert.Equal(t, "Calculus", listing[0].Subject.Name)

	physics := listing[1]
	require.Len(t, physics.Notes, 3)
	assert.Equal(t, []string{"Main", "Optics", "Waves"}, []string{
		physics.Notes[0].Note.Title, physics.Notes[1].Note.Title, physics.Notes[2].Note.Title,
	})
	assert.False(t, physics.Notes[1].Dangling)
	assert.True(t, physics.Notes[2].Dangling)

	listing, err = f.mgr.List(context.Background(), []string{"Physics"}, SortID)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, "Waves", listing[0].Notes[1].Note.Title)

	_, err = f.mgr.List(context.Background(), []string{"Nope"}, SortID)
	assert.ErrorIs(t, err, apperr.ErrUnknownSubject)
	_, err = f.mgr.List(context.Background(), nil, "size")
	assert.Error(t, err)

	listing, err = f.mgr.List(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Calculus", listing[0].Subject.Name, "empty sort orders by title")
}

func TestOpen(t *testing.T) {
	var gotTemplate, gotPath string
	f := newFixture(t, Options{
		Editor: "vim",
		OpenEditor: func(_ context.Context, template, path string, _ editor.Streams) error {
			gotTemplate, gotPath = template, path
			return nil
		},
	})
	require.NoError(t, f.add(t, "--note", "Calculus", "Limits").Err())

	ctx := context.Background()
	require.NoError(t, f.mgr.Open(ctx, OpenRequest{Subject: "Calculus", Title: "Limits"}, editor.Streams{}))
	assert.Equal(t, "vim", gotTemplate)
	assert.Equal(t, f.path("calculus", "limits.tex"), gotPath)

	n, err := f.store.GetNote("Calculus", "Limits")
	require.NoError(t, err)
	require.NoError(t, f.mgr.Open(ctx, OpenRequest{ID: n.ID, Command: "code {note}"}, editor.Streams{}))
	assert.Equal(t, "code {note}", gotTemplate)

	err = f.mgr.Open(ctx, OpenRequest{Subject: "Calculus", Title: "Nope"}, editor.Streams{})
	assert.ErrorIs(t, err, apperr.ErrUnknownNote)

	require.NoError(t, os.Remove(f.path("calculus", "limits.tex")))
	err = f.mgr.Open(ctx, OpenRequest{ID: n.ID}, editor.Streams{})
	assert.ErrorIs(t, err, apperr.ErrDangling)
}

func TestCheck(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.add(t, "--note", "Calculus", "Limits", "--subject", "Physics").Err())

	divs, err := f.mgr.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, divs)

	require.NoError(t, os.Remove(f.path("calculus", "limits.tex")))
	require.NoError(t, os.RemoveAll(f.path("physics")))
	require.NoError(t, os.Mkdir(f.path("stray"), 0o755))

	divs, err = f.mgr.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, divs, 3)
	assert.Equal(t, models.DivergenceMissingDir, divs[0].Kind, "subjects are walked in id order")
	assert.Equal(t, "Physics", divs[0].Subject)
	assert.Equal(t, models.DivergenceMissingFile, divs[1].Kind)
	assert.Equal(t, "Calculus", divs[1].Subject)
	assert.Equal(t, "Limits", divs[1].Note)
	assert.Equal(t, models.DivergenceUntrackedDir, divs[2].Kind)
	assert.Equal(t, f.path("stray"), divs[2].Path)

	_, err = f.store.GetNote("Calculus", "Limits")
	assert.NoError(t, err, "check must not repair")
}
