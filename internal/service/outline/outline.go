package outline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"k8s.io/klog/v2"

	"github.com/bookforge/backend/internal/model"
	"github.com/bookforge/backend/internal/pkg/llm"
	"github.com/bookforge/backend/internal/pkg/retry"
	"github.com/bookforge/backend/internal/utils"
)

const systemPrompt = `Act as a master novelist and editor. You design detailed chapter outlines for books. Always return strictly valid JSON and nothing else.`

// outlineResponse 上游结构化响应
type outlineResponse struct {
	Chapters []outlineChapter `json:"chapters"`
	Quote    string           `json:"quote"`
}

type outlineChapter struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Service 大纲生成器
// 发起一次结构化生成请求，产出固定章数的章节骨架和一句主题引言
type Service struct {
	chatModel     llm.ChatModel
	retry         *retry.Executor
	totalChapters int
}

// NewService 创建大纲生成器
func NewService(chatModel llm.ChatModel, retryExec *retry.Executor, totalChapters int) *Service {
	return &Service{
		chatModel:     chatModel,
		retry:         retryExec,
		totalChapters: totalChapters,
	}
}

// Generate 生成章节大纲与主题引言
// 任何不可恢复的上游错误直接返回，由调用方判定整次运行失败
func (s *Service) Generate(ctx context.Context, title, synopsis, genre, style string) ([]model.Chapter, string, error) {
	klog.V(6).Infof("[outline] 开始生成大纲: title=%s, genre=%s", title, genre)

	userPrompt := fmt.Sprintf(`I need a detailed chapter outline for a book.

Title: %s
Genre: %s
Writing Style: %s
Premise: %s

Requirements:
- Create exactly %d chapters.
- The story must have a strong arc: Setup, Inciting Incident, Rising Action, Climax, Resolution.
- Ensure high suspense and emotional depth.
- Generate a profound, poetic quote that captures the theme of this book (it can be a fake quote from a fictional character in the book or a made-up philosopher).
- Return strictly JSON in the form {"chapters": [{"title": "...", "summary": "..."}], "quote": "..."} where each summary is a 2-sentence description of what happens in that chapter.`,
		title, genre, style, synopsis, s.totalChapters)

	content, err := retry.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
		return llm.GenerateText(ctx, s.chatModel, systemPrompt, userPrompt)
	})
	if err != nil {
		return nil, "", fmt.Errorf("大纲生成请求失败: %w", err)
	}

	var resp outlineResponse
	if err := json.Unmarshal([]byte(utils.ExtractJSON(content)), &resp); err != nil {
		return nil, "", fmt.Errorf("大纲响应解析失败: %w", err)
	}

	if len(resp.Chapters) == 0 {
		return nil, "", fmt.Errorf("大纲响应不含任何章节")
	}
	if len(resp.Chapters) != s.totalChapters {
		klog.Warningf("[outline] 章节数与要求不符: want=%d, got=%d", s.totalChapters, len(resp.Chapters))
	}

	chapters := make([]model.Chapter, 0, len(resp.Chapters))
	for i, item := range resp.Chapters {
		chapters = append(chapters, model.Chapter{
			Number:     i + 1,
			Title:      strings.TrimSpace(item.Title),
			Summary:    strings.TrimSpace(item.Summary),
			Content:    "",
			IsFinished: false,
		})
	}

	quote := strings.TrimSpace(resp.Quote)
	if quote == "" {
		quote = FallbackQuote(title)
	}

	klog.V(6).Infof("[outline] 大纲生成完成: chapters=%d", len(chapters))
	return chapters, quote, nil
}

// FallbackQuote 引言缺失时由书名推导的确定性回退文案
func FallbackQuote(title string) string {
	return fmt.Sprintf("\"%s is a journey into the unknown.\"", title)
}
