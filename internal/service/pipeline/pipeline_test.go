package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookforge/backend/config"
	"github.com/bookforge/backend/internal/eventbus"
	"github.com/bookforge/backend/internal/model"
	"github.com/bookforge/backend/internal/service/author"
	"github.com/bookforge/backend/internal/store"
)

type mockOutline struct {
	chapters []model.Chapter
	quote    string
	err      error
}

func (m *mockOutline) Generate(ctx context.Context, title, synopsis, genre, style string) ([]model.Chapter, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.chapters, m.quote, nil
}

type mockAuthor struct {
	failAt    int // 1 基章节号，0 表示不失败
	calls     int
	summaries []string                                 // 每次调用收到的累积摘要
	onWrite   func(book *model.Book, chapterIndex int) // 写作时刻的钩子
}

func (m *mockAuthor) WriteChapter(ctx context.Context, book *model.Book, chapterIndex int, runningSummary string) (*author.Result, error) {
	m.calls++
	m.summaries = append(m.summaries, runningSummary)
	if m.onWrite != nil {
		m.onWrite(book, chapterIndex)
	}
	number := book.Chapters[chapterIndex].Number
	if m.failAt != 0 && number == m.failAt {
		return nil, errors.New("model exploded")
	}
	return &author.Result{
		Content:    fmt.Sprintf("Content of chapter %d.", number),
		NewSummary: fmt.Sprintf("Summary of chapter %d.", number),
	}, nil
}

type mockIllustrator struct {
	image string
	ok    bool
	calls []string
}

func (m *mockIllustrator) Illustrate(ctx context.Context, chapterContent, genre string) (string, bool) {
	m.calls = append(m.calls, chapterContent)
	return m.image, m.ok
}

type mockSubmitter struct {
	submitted []string
	cancelled []string
	submitErr error
	cancelOK  bool
}

func (m *mockSubmitter) Submit(bookID string) error {
	m.submitted = append(m.submitted, bookID)
	return m.submitErr
}

func (m *mockSubmitter) Cancel(bookID string) bool {
	m.cancelled = append(m.cancelled, bookID)
	return m.cancelOK
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func testGenCfg() *config.GeneratorConfig {
	return &config.GeneratorConfig{
		TotalChapters:        12,
		IllustrationInterval: 2,
		MaxRetries:           3,
		RetryInitialDelay:    time.Millisecond,
		ChapterPacingDelay:   time.Millisecond,
	}
}

func outlineChapters(n int) []model.Chapter {
	chapters := make([]model.Chapter, n)
	for i := range chapters {
		chapters[i] = model.Chapter{
			Number:  i + 1,
			Title:   fmt.Sprintf("Chapter Title %d", i+1),
			Summary: fmt.Sprintf("Planned summary %d.", i+1),
		}
	}
	return chapters
}

type fixture struct {
	controller  *Controller
	store       *store.BookStore
	bus         *eventbus.RunEventBus
	outline     *mockOutline
	author      *mockAuthor
	illustrator *mockIllustrator
	submitter   *mockSubmitter
}

func newFixture(chapterCount int) *fixture {
	f := &fixture{
		store:       store.NewBookStore(),
		bus:         eventbus.NewRunEventBus(),
		outline:     &mockOutline{chapters: outlineChapters(chapterCount), quote: "A quote."},
		author:      &mockAuthor{},
		illustrator: &mockIllustrator{image: "img-data", ok: true},
		submitter:   &mockSubmitter{cancelOK: true},
	}
	f.controller = NewController(f.store, f.bus, f.outline, f.author, f.illustrator, testGenCfg()).WithSleep(noSleep)
	f.controller.SetSubmitter(f.submitter)
	return f
}

func (f *fixture) createBook(t *testing.T) *model.Book {
	t.Helper()
	book, err := f.controller.Create(&CreateBookRequest{
		Title:    "The Fall",
		Author:   "Jane Doe",
		Synopsis: "A city falls.",
		Genre:    "Fantasy",
		Style:    "Lyrical",
		ThemeID:  "vintage",
	})
	require.NoError(t, err)
	return book
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	f := newFixture(3)
	_, err := f.controller.Create(&CreateBookRequest{Title: " ", Synopsis: "s", Genre: "g", Style: "st"})
	require.Error(t, err)
	assert.Empty(t, f.submitter.submitted)
}

func TestCreateSubmitsRun(t *testing.T) {
	f := newFixture(3)
	book := f.createBook(t)

	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "planning", book.Status)
	assert.Equal(t, "vintage", book.ThemeID)
	assert.Equal(t, []string{book.ID}, f.submitter.submitted)

	stored, err := f.store.Get(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Fall", stored.Title)
}

func TestCreateUnknownThemeFallsBack(t *testing.T) {
	f := newFixture(3)
	book, err := f.controller.Create(&CreateBookRequest{
		Title: "T", Synopsis: "S", Genre: "G", Style: "St", ThemeID: "no-such-theme",
	})
	require.NoError(t, err)
	assert.Equal(t, "classic", book.ThemeID)
}

func TestCreateSubmitFailureRollsBack(t *testing.T) {
	f := newFixture(3)
	f.submitter.submitErr = errors.New("pool closed")

	_, err := f.controller.Create(&CreateBookRequest{
		Title: "T", Synopsis: "S", Genre: "G", Style: "St",
	})
	require.Error(t, err)
	assert.Empty(t, f.store.List())
}

func TestExecuteRunCompletesBook(t *testing.T) {
	f := newFixture(6)
	book := f.createBook(t)

	require.NoError(t, f.controller.ExecuteRun(context.Background(), book.ID))

	final, err := f.store.Get(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", final.Status)
	assert.Equal(t, "A quote.", final.Quote)
	assert.Equal(t, 6, final.TotalChapters)
	require.Len(t, final.Chapters, 6)
	for i, ch := range final.Chapters {
		assert.True(t, ch.IsFinished, "chapter %d", i+1)
		assert.Equal(t, fmt.Sprintf("Content of chapter %d.", i+1), ch.Content)
		assert.Equal(t, fmt.Sprintf("Summary of chapter %d.", i+1), ch.Summary)
	}

	progress, err := f.store.GetProgress(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Binding Book", progress.Stage)
	assert.Equal(t, float64(100), progress.Percent)
}

func TestExecuteRunFullTwelveChapterBook(t *testing.T) {
	f := newFixture(12)
	book, err := f.controller.Create(&CreateBookRequest{
		Title:    "The Last Starship",
		Synopsis: "A robot discovers it has a soul",
		Genre:    "Science Fiction",
		Style:    "Poetic & Descriptive",
	})
	require.NoError(t, err)

	require.NoError(t, f.controller.ExecuteRun(context.Background(), book.ID))

	final, err := f.store.Get(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", final.Status)
	assert.NotEmpty(t, final.Quote)
	require.Len(t, final.Chapters, 12)
	assert.Equal(t, 12, final.TotalChapters)

	var illustrated []int
	for i, ch := range final.Chapters {
		require.True(t, ch.IsFinished)
		require.NotEmpty(t, ch.Content)
		require.NotEmpty(t, ch.Summary)
		if ch.Illustration != "" {
			illustrated = append(illustrated, i)
		}
	}
	assert.Equal(t, []int{0, 2, 4, 6, 8, 10}, illustrated)
}

func TestExecuteRunRunningSummaryAppendOnly(t *testing.T) {
	f := newFixture(4)
	book := f.createBook(t)

	require.NoError(t, f.controller.ExecuteRun(context.Background(), book.ID))

	require.Len(t, f.author.summaries, 4)
	assert.Contains(t, f.author.summaries[0], "The story begins.")
	for i := 1; i < len(f.author.summaries); i++ {
		// 前一章收到的摘要始终是后一章摘要的前缀
		assert.True(t, strings.HasPrefix(f.author.summaries[i], f.author.summaries[i-1]),
			"summary for chapter %d should extend chapter %d's", i+1, i)
		assert.Contains(t, f.author.summaries[i], fmt.Sprintf("Chapter %d Summary:", i))
	}
}

func TestExecuteRunIllustratesAlternateChapters(t *testing.T) {
	f := newFixture(6)
	book := f.createBook(t)

	require.NoError(t, f.controller.ExecuteRun(context.Background(), book.ID))

	final, _ := f.store.Get(book.ID)
	for i, ch := range final.Chapters {
		if i%2 == 0 {
			assert.Equal(t, "img-data", ch.Illustration, "chapter index %d", i)
		} else {
			assert.Empty(t, ch.Illustration, "chapter index %d", i)
		}
	}
	assert.Len(t, f.illustrator.calls, 3)
}

func TestExecuteRunIllustrationFailureDoesNotBlock(t *testing.T) {
	f := newFixture(4)
	f.illustrator.image = ""
	f.illustrator.ok = false
	book := f.createBook(t)

	require.NoError(t, f.controller.ExecuteRun(context.Background(), book.ID))

	final, _ := f.store.Get(book.ID)
	assert.Equal(t, "completed", final.Status)
	for _, ch := range final.Chapters {
		assert.Empty(t, ch.Illustration)
	}
}

func TestExecuteRunOutlineFailureFailsBook(t *testing.T) {
	f := newFixture(3)
	f.outline.err = errors.New("bad json")
	book := f.createBook(t)

	require.Error(t, f.controller.ExecuteRun(context.Background(), book.ID))

	final, _ := f.store.Get(book.ID)
	assert.Equal(t, "failed", final.Status)
	assert.Empty(t, final.Chapters)
	assert.Zero(t, f.author.calls)
	assert.Empty(t, f.illustrator.calls)

	progress, _ := f.store.GetProgress(book.ID)
	assert.Equal(t, "Failed", progress.Stage)
	assert.NotContains(t, progress.CurrentAction, "bad json")
}

func TestExecuteRunAuthorFailureKeepsFinishedChapters(t *testing.T) {
	f := newFixture(5)
	f.author.failAt = 3
	book := f.createBook(t)

	require.Error(t, f.controller.ExecuteRun(context.Background(), book.ID))

	final, _ := f.store.Get(book.ID)
	assert.Equal(t, "failed", final.Status)
	require.Len(t, final.Chapters, 5)
	assert.True(t, final.Chapters[0].IsFinished)
	assert.True(t, final.Chapters[1].IsFinished)
	// 失败章节的部分产物不落库
	assert.False(t, final.Chapters[2].IsFinished)
	assert.Empty(t, final.Chapters[2].Content)
	assert.False(t, final.Chapters[3].IsFinished)
}

func TestExecuteRunExposesCurrentChapterWhileDrafting(t *testing.T) {
	f := newFixture(4)
	book := f.createBook(t)

	f.author.onWrite = func(b *model.Book, chapterIndex int) {
		stored, err := f.store.Get(book.ID)
		require.NoError(t, err)
		// 写作期间读到的快照已指向本章，而非上一章
		assert.Equal(t, chapterIndex, stored.CurrentChapterIndex)
		assert.False(t, stored.Chapters[chapterIndex].IsFinished)
	}

	require.NoError(t, f.controller.ExecuteRun(context.Background(), book.ID))
	assert.Equal(t, 4, f.author.calls)
}

func TestExecuteRunDeletedBookNotResurrected(t *testing.T) {
	f := newFixture(4)
	book := f.createBook(t)

	f.author.onWrite = func(b *model.Book, chapterIndex int) {
		if chapterIndex == 1 {
			require.NoError(t, f.store.Delete(book.ID))
		}
	}

	require.Error(t, f.controller.ExecuteRun(context.Background(), book.ID))

	// 删除后的提交不会把书写回来
	_, err := f.store.Get(book.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 2, f.author.calls)
}

func TestExecuteRunProgressMonotonic(t *testing.T) {
	f := newFixture(6)
	book := f.createBook(t)

	var mu sync.Mutex
	var percents []float64
	unsubscribe := f.bus.Subscribe(eventbus.RunEventProgress, func(ctx context.Context, event eventbus.RunEvent) error {
		mu.Lock()
		defer mu.Unlock()
		percents = append(percents, event.Progress.Percent)
		return nil
	})
	defer unsubscribe()

	require.NoError(t, f.controller.ExecuteRun(context.Background(), book.ID))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
	assert.Equal(t, float64(100), percents[len(percents)-1])
}

func TestExecuteRunPublishesFinished(t *testing.T) {
	f := newFixture(2)
	book := f.createBook(t)

	var finished []eventbus.RunEvent
	f.bus.Subscribe(eventbus.RunEventFinished, func(ctx context.Context, event eventbus.RunEvent) error {
		finished = append(finished, event)
		return nil
	})

	require.NoError(t, f.controller.ExecuteRun(context.Background(), book.ID))
	require.Len(t, finished, 1)
	assert.Equal(t, book.ID, finished[0].BookID)
	assert.Equal(t, "completed", finished[0].Book.Status)
}

func TestExecuteRunCancelledContextFailsBook(t *testing.T) {
	f := newFixture(3)
	book := f.createBook(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, f.controller.ExecuteRun(ctx, book.ID))

	final, _ := f.store.Get(book.ID)
	assert.Equal(t, "failed", final.Status)
}

func TestExecuteRunUnknownBook(t *testing.T) {
	f := newFixture(3)
	require.Error(t, f.controller.ExecuteRun(context.Background(), "missing"))
}

func TestCancelDelegatesToSubmitter(t *testing.T) {
	f := newFixture(3)
	book := f.createBook(t)

	ok, err := f.controller.Cancel(book.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{book.ID}, f.submitter.cancelled)
}

func TestCancelUnknownBook(t *testing.T) {
	f := newFixture(3)
	_, err := f.controller.Cancel("missing")
	require.Error(t, err)
}
