package model

import (
	"time"
)

// Book 一次生成运行期间由流水线控制器独占持有的书籍文档
// 静态输入（标题、前提、体裁、文风、主题）在运行开始后不再变化
type Book struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Author              string    `json:"author"`
	Synopsis            string    `json:"synopsis"`
	Genre               string    `json:"genre"`
	Style               string    `json:"style"`
	ThemeID             string    `json:"theme_id"` // 视觉主题，流水线不感知其内容
	CreatedAt           time.Time `json:"created_at"`
	Chapters            []Chapter `json:"chapters"`
	Status              string    `json:"status"` // planning, writing, completed, failed
	TotalChapters       int       `json:"total_chapters"`
	CurrentChapterIndex int       `json:"current_chapter_index"`
	Quote               string    `json:"quote,omitempty"`
}

// Chapter 书籍章节
// 大纲阶段创建占位章节，写作阶段恰好被改写一次为完成态
type Chapter struct {
	Number       int    `json:"number"` // 1 基序号，大纲阶段分配后不变
	Title        string `json:"title"`
	Summary      string `json:"summary"` // 大纲阶段为计划摘要，写作完成后被实际内容摘要覆盖
	Content      string `json:"content"`
	Illustration string `json:"illustration,omitempty"` // base64 编码的插图，仅部分章节存在
	IsFinished   bool   `json:"is_finished"`
}

// GenerationProgress 运行期间的进度快照，仅用于展示，不参与控制流
type GenerationProgress struct {
	Stage         string  `json:"stage"`
	Percent       float64 `json:"percent"` // 单次运行内单调不减，0-100
	CurrentAction string  `json:"current_action"`
}

// Clone 返回书籍的深拷贝，供观察方读取而不影响控制器的独占写入
func (b *Book) Clone() *Book {
	if b == nil {
		return nil
	}
	copied := *b
	copied.Chapters = make([]Chapter, len(b.Chapters))
	copy(copied.Chapters, b.Chapters)
	return &copied
}
