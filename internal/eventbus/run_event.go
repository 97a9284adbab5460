package eventbus

import "github.com/bookforge/backend/internal/model"

// RunEventType 生成运行事件类型
type RunEventType string

const (
	RunEventProgress  RunEventType = "Progress"  // 进度更新
	RunEventBookDirty RunEventType = "BookDirty" // 书籍文档发生变化（新章节提交、状态变化）
	RunEventFinished  RunEventType = "Finished"  // 运行进入终止态
)

// RunEvent 生成运行事件
// Book 为发布时刻的快照，订阅方只读
type RunEvent struct {
	Type     RunEventType
	BookID   string
	Progress model.GenerationProgress
	Book     *model.Book
}

type RunEventHandler = Handler[RunEvent]
type RunEventBus = Bus[RunEventType, RunEvent]

func NewRunEventBus() *RunEventBus {
	return NewBus[RunEventType, RunEvent]()
}
