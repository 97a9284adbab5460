package author

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/bookforge/backend/internal/model"
	"github.com/bookforge/backend/internal/pkg/llm"
	"github.com/bookforge/backend/internal/pkg/retry"
)

const proseSystemPrompt = `You are an award-winning author writing a masterpiece. You follow formatting instructions exactly.`

const summarySystemPrompt = `You summarize fiction chapters precisely and concisely.`

// Result 单章写作结果
type Result struct {
	Content    string
	NewSummary string
}

// Service 章节作者
// 先写正文，再请求对正文的事后摘要；两次请求之间有固定的节流等待
type Service struct {
	chatModel          llm.ChatModel
	retry              *retry.Executor
	prosePacingDelay   time.Duration
	summaryPacingDelay time.Duration

	// sleep 可注入，测试中跳过真实等待
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService 创建章节作者
func NewService(chatModel llm.ChatModel, retryExec *retry.Executor, prosePacing, summaryPacing time.Duration) *Service {
	return &Service{
		chatModel:          chatModel,
		retry:              retryExec,
		prosePacingDelay:   prosePacing,
		summaryPacingDelay: summaryPacing,
		sleep:              sleepContext,
	}
}

// WithSleep 替换等待实现
func (s *Service) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Service {
	s.sleep = sleep
	return s
}

// WriteChapter 写作指定章节并返回清理后的正文与新摘要
// book 为只读快照；runningSummary 是此前所有章节的累积叙事摘要
// 摘要请求失败或为空时回退到该章的计划摘要，不视为致命错误
func (s *Service) WriteChapter(ctx context.Context, book *model.Book, chapterIndex int, runningSummary string) (*Result, error) {
	if chapterIndex < 0 || chapterIndex >= len(book.Chapters) {
		return nil, fmt.Errorf("章节索引越界: index=%d, total=%d", chapterIndex, len(book.Chapters))
	}
	chapter := book.Chapters[chapterIndex]
	klog.V(6).Infof("[author] 开始写作: bookID=%s, chapter=%d/%d", book.ID, chapter.Number, len(book.Chapters))

	storyContext := runningSummary
	if storyContext == "" {
		storyContext = "This is the beginning of the story."
	}

	prosePrompt := fmt.Sprintf(`Write Chapter %d: "%s".

**Book Context:**
Title: %s
Genre: %s
Style: %s (Maintain this voice strictly!)

**Plot Context:**
The story so far: %s

**Chapter Goal:**
%s

**Requirements:**
- Write approximately 800-1000 words.
- Use "Show, Don't Tell". Focus on sensory details, dialogue, and internal monologue.
- Maintain a poetic and immersive tone.
- End the chapter with a hook or emotional resonance.
- Format with Markdown (use **bold** for emphasis, *italics* for thoughts/emphasis). No other markup.
- CRITICAL: Do NOT output the chapter title, chapter number, or any headers (like # Chapter X) at the start. Start directly with the story text.`,
		chapter.Number, chapter.Title, book.Title, book.Genre, book.Style, storyContext, chapter.Summary)

	// 无条件节流等待，独立于重试退避，用于压住上游请求频率
	if err := s.sleep(ctx, s.prosePacingDelay); err != nil {
		return nil, err
	}

	rawContent, err := retry.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
		return llm.GenerateText(ctx, s.chatModel, proseSystemPrompt, prosePrompt)
	})
	if err != nil {
		return nil, fmt.Errorf("章节正文生成失败: chapter=%d, %w", chapter.Number, err)
	}

	content := CleanContent(rawContent, chapter.Title)

	if err := s.sleep(ctx, s.summaryPacingDelay); err != nil {
		return nil, err
	}

	summaryPrompt := fmt.Sprintf("Summarize the following chapter in 3 sentences, focusing on plot progression and character emotional state.\n\n%s", content)

	newSummary, err := retry.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
		return llm.GenerateText(ctx, s.chatModel, summarySystemPrompt, summaryPrompt)
	})
	if err != nil || strings.TrimSpace(newSummary) == "" {
		klog.Warningf("[author] 摘要生成失败，回退到计划摘要: chapter=%d, err=%v", chapter.Number, err)
		newSummary = chapter.Summary
	}

	klog.V(6).Infof("[author] 章节写作完成: chapter=%d, contentLength=%d", chapter.Number, len(content))
	return &Result{
		Content:    content,
		NewSummary: strings.TrimSpace(newSummary),
	}, nil
}

// CleanContent 删除模型违反指令输出的行首章节标题
// 按固定顺序应用模式，大小写不敏感且逐行锚定
func CleanContent(content string, chapterTitle string) string {
	quoted := regexp.QuoteMeta(chapterTitle)
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?im)^#+\s*Chapter\s*\d+.*$`),
		regexp.MustCompile(`(?im)^\*\*Chapter\s*\d+.*\*\*\s*$`),
		regexp.MustCompile(`(?im)^Chapter\s*\d+.*$`),
		regexp.MustCompile(`(?im)^#+\s*` + quoted + `.*$`),
		regexp.MustCompile(`(?im)^` + quoted + `\s*$`),
	}

	for _, pattern := range patterns {
		content = strings.TrimSpace(pattern.ReplaceAllString(content, ""))
	}
	return content
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
