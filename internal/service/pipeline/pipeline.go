package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/bookforge/backend/config"
	"github.com/bookforge/backend/internal/eventbus"
	"github.com/bookforge/backend/internal/model"
	"github.com/bookforge/backend/internal/service/author"
	"github.com/bookforge/backend/internal/service/statemachine"
	"github.com/bookforge/backend/internal/store"
	"github.com/bookforge/backend/internal/themes"
)

// OutlineGenerator 大纲生成接口
type OutlineGenerator interface {
	Generate(ctx context.Context, title, synopsis, genre, style string) ([]model.Chapter, string, error)
}

// ChapterAuthor 章节写作接口
type ChapterAuthor interface {
	WriteChapter(ctx context.Context, book *model.Book, chapterIndex int, runningSummary string) (*author.Result, error)
}

// Illustrator 插图接口
type Illustrator interface {
	Illustrate(ctx context.Context, chapterContent, genre string) (string, bool)
}

// RunSubmitter 运行提交接口
type RunSubmitter interface {
	Submit(bookID string) error
	Cancel(bookID string) bool
}

// CreateBookRequest 创建书籍请求
type CreateBookRequest struct {
	Title    string `json:"title" binding:"required"`
	Author   string `json:"author"`
	Synopsis string `json:"synopsis" binding:"required"`
	Genre    string `json:"genre" binding:"required"`
	Style    string `json:"style" binding:"required"`
	ThemeID  string `json:"theme_id"`
}

// Controller 流水线控制器
// 一次运行对应一本书，控制器是运行期间书籍文档的唯一写入方
// 各阶段顺序执行：大纲 → 逐章写作（部分章节配插图）→ 装订完成
type Controller struct {
	store       *store.BookStore
	bus         *eventbus.RunEventBus
	outline     OutlineGenerator
	author      ChapterAuthor
	illustrator Illustrator
	submitter   RunSubmitter
	sm          *statemachine.BookStateMachine
	genCfg      *config.GeneratorConfig

	sleep func(ctx context.Context, d time.Duration) error
}

// NewController 创建流水线控制器
func NewController(
	bookStore *store.BookStore,
	bus *eventbus.RunEventBus,
	outline OutlineGenerator,
	chapterAuthor ChapterAuthor,
	illustrator Illustrator,
	genCfg *config.GeneratorConfig,
) *Controller {
	return &Controller{
		store:       bookStore,
		bus:         bus,
		outline:     outline,
		author:      chapterAuthor,
		illustrator: illustrator,
		sm:          statemachine.NewBookStateMachine(),
		genCfg:      genCfg,
		sleep:       sleepContext,
	}
}

// SetSubmitter 注入运行提交方
// 运行器依赖控制器作为执行方，相互引用在装配阶段补齐
func (c *Controller) SetSubmitter(submitter RunSubmitter) {
	c.submitter = submitter
}

// WithSleep 替换等待实现
func (c *Controller) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Controller {
	c.sleep = sleep
	return c
}

// Create 创建书籍并提交生成流程
func (c *Controller) Create(req *CreateBookRequest) (*model.Book, error) {
	if strings.TrimSpace(req.Title) == "" ||
		strings.TrimSpace(req.Synopsis) == "" ||
		strings.TrimSpace(req.Genre) == "" ||
		strings.TrimSpace(req.Style) == "" {
		return nil, fmt.Errorf("标题、简介、体裁、文风均不能为空")
	}

	book := &model.Book{
		ID:            uuid.NewString(),
		Title:         strings.TrimSpace(req.Title),
		Author:        strings.TrimSpace(req.Author),
		Synopsis:      strings.TrimSpace(req.Synopsis),
		Genre:         strings.TrimSpace(req.Genre),
		Style:         strings.TrimSpace(req.Style),
		ThemeID:       themes.GetByID(req.ThemeID).ID,
		CreatedAt:     time.Now(),
		Status:        string(statemachine.BookStatusPlanning),
		TotalChapters: c.genCfg.TotalChapters,
	}
	c.store.Put(book)
	c.store.SetProgress(book.ID, model.GenerationProgress{
		Stage:         "Architecting",
		Percent:       0,
		CurrentAction: "Queued for generation...",
	})

	if err := c.submitter.Submit(book.ID); err != nil {
		c.store.Delete(book.ID)
		return nil, fmt.Errorf("提交生成流程失败: %w", err)
	}
	klog.V(6).Infof("[pipeline] 书籍已创建: bookID=%s, title=%s", book.ID, book.Title)
	return book, nil
}

// Cancel 取消运行中的生成流程
// 返回 false 表示该书没有运行中的流程（已完成、已失败或不存在运行）
func (c *Controller) Cancel(bookID string) (bool, error) {
	if _, err := c.store.Get(bookID); err != nil {
		return false, err
	}
	return c.submitter.Cancel(bookID), nil
}

// ExecuteRun 执行一本书的完整生成流程
// 由运行器在协程池中调用；任何不可恢复错误都把书置为失败终止态
func (c *Controller) ExecuteRun(ctx context.Context, bookID string) error {
	book, err := c.store.Get(bookID)
	if err != nil {
		return fmt.Errorf("加载书籍失败: %w", err)
	}

	if err := c.run(ctx, book); err != nil {
		c.fail(ctx, book, err)
		return err
	}
	return nil
}

func (c *Controller) run(ctx context.Context, book *model.Book) error {
	c.setProgress(ctx, book, model.GenerationProgress{
		Stage:         "Architecting",
		Percent:       5,
		CurrentAction: "Designing chapter outline and theme...",
	})

	chapters, quote, err := c.outline.Generate(ctx, book.Title, book.Synopsis, book.Genre, book.Style)
	if err != nil {
		return fmt.Errorf("大纲生成失败: %w", err)
	}
	book.Chapters = chapters
	book.TotalChapters = len(chapters)
	book.Quote = quote

	if err := c.transition(ctx, book, statemachine.BookStatusWriting); err != nil {
		return err
	}

	runningSummary := "The story begins. " + book.Synopsis

	total := len(book.Chapters)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		chapter := book.Chapters[i]
		book.CurrentChapterIndex = i
		// 章节开工即对外可见，读取方能看到当前写到第几章
		if err := c.store.Update(book); err != nil {
			return fmt.Errorf("书籍快照落库失败: %w", err)
		}
		c.publish(ctx, eventbus.RunEventBookDirty, book, model.GenerationProgress{})

		c.setProgress(ctx, book, model.GenerationProgress{
			Stage:         fmt.Sprintf("Writing Chapter %d/%d", i+1, total),
			Percent:       10 + float64(i)/float64(total)*80,
			CurrentAction: "Drafting: " + chapter.Title,
		})

		result, err := c.author.WriteChapter(ctx, book, i, runningSummary)
		if err != nil {
			return fmt.Errorf("第 %d 章写作失败: %w", chapter.Number, err)
		}
		runningSummary += fmt.Sprintf("\nChapter %d Summary: %s", chapter.Number, result.NewSummary)

		var illustration string
		if i%c.genCfg.IllustrationInterval == 0 {
			c.setProgress(ctx, book, model.GenerationProgress{
				Stage:         fmt.Sprintf("Writing Chapter %d/%d", i+1, total),
				Percent:       10 + float64(i)/float64(total)*80,
				CurrentAction: fmt.Sprintf("Illustrating Chapter %d...", chapter.Number),
			})
			illustration, _ = c.illustrator.Illustrate(ctx, result.Content, book.Genre)
		}

		// 单章原子提交：正文、摘要、插图、完成标记一起落下
		book.Chapters[i].Content = result.Content
		book.Chapters[i].Summary = result.NewSummary
		book.Chapters[i].Illustration = illustration
		book.Chapters[i].IsFinished = true
		if err := c.store.Update(book); err != nil {
			return fmt.Errorf("章节提交失败: %w", err)
		}
		c.publish(ctx, eventbus.RunEventBookDirty, book, model.GenerationProgress{})

		if i < total-1 {
			if err := c.sleep(ctx, c.genCfg.ChapterPacingDelay); err != nil {
				return err
			}
		}
	}

	if err := c.transition(ctx, book, statemachine.BookStatusCompleted); err != nil {
		return err
	}
	c.setProgress(ctx, book, model.GenerationProgress{
		Stage:         "Binding Book",
		Percent:       100,
		CurrentAction: "Finalizing formatting...",
	})
	c.publish(ctx, eventbus.RunEventFinished, book, model.GenerationProgress{
		Stage:         "Binding Book",
		Percent:       100,
		CurrentAction: "Finalizing formatting...",
	})
	klog.V(6).Infof("[pipeline] 生成完成: bookID=%s, chapters=%d", book.ID, len(book.Chapters))
	return nil
}

// fail 进入失败终止态
// 失败章节的部分产物不提交，书中只保留此前已完成的章节
func (c *Controller) fail(ctx context.Context, book *model.Book, cause error) {
	klog.Errorf("[pipeline] 生成失败: bookID=%s, err=%v", book.ID, cause)

	from := statemachine.BookStatus(book.Status)
	if err := c.sm.ValidateTransition(from, statemachine.BookStatusFailed); err != nil {
		klog.Warningf("[pipeline] 失败态迁移被拒绝: bookID=%s, err=%v", book.ID, err)
		return
	}
	book.Status = string(statemachine.BookStatusFailed)
	if err := c.store.Update(book); err != nil {
		// 书已被删除，失败结果无处落库
		klog.Warningf("[pipeline] 失败态落库被拒绝: bookID=%s, err=%v", book.ID, err)
		return
	}

	progress := model.GenerationProgress{
		Stage:         "Failed",
		Percent:       100,
		CurrentAction: "Generation stopped due to an error.",
	}
	c.store.SetProgress(book.ID, progress)
	c.publish(ctx, eventbus.RunEventProgress, book, progress)
	c.publish(ctx, eventbus.RunEventFinished, book, progress)
}

func (c *Controller) transition(ctx context.Context, book *model.Book, to statemachine.BookStatus) error {
	from := statemachine.BookStatus(book.Status)
	if err := c.sm.Transition(from, to, book.ID); err != nil {
		return err
	}
	book.Status = string(to)
	if err := c.store.Update(book); err != nil {
		return fmt.Errorf("书籍状态落库失败: %w", err)
	}
	c.publish(ctx, eventbus.RunEventBookDirty, book, model.GenerationProgress{})
	return nil
}

// setProgress 推进进度；单次运行内百分比单调不减
func (c *Controller) setProgress(ctx context.Context, book *model.Book, progress model.GenerationProgress) {
	if prev, err := c.store.GetProgress(book.ID); err == nil && progress.Percent < prev.Percent {
		progress.Percent = prev.Percent
	}
	c.store.SetProgress(book.ID, progress)
	c.publish(ctx, eventbus.RunEventProgress, book, progress)
}

func (c *Controller) publish(ctx context.Context, eventType eventbus.RunEventType, book *model.Book, progress model.GenerationProgress) {
	event := eventbus.RunEvent{
		Type:     eventType,
		BookID:   book.ID,
		Progress: progress,
		Book:     book.Clone(),
	}
	if err := c.bus.Publish(ctx, eventType, event); err != nil {
		klog.Warningf("[pipeline] 事件发布失败: bookID=%s, type=%s, err=%v", book.ID, eventType, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
