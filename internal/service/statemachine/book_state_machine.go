package statemachine

import (
	"fmt"

	"k8s.io/klog/v2"
)

// BookStatus 定义书籍生成运行的所有可能状态
type BookStatus string

const (
	BookStatusPlanning  BookStatus = "planning"  // 正在生成大纲
	BookStatusWriting   BookStatus = "writing"   // 逐章写作中
	BookStatusCompleted BookStatus = "completed" // 全部章节完成
	BookStatusFailed    BookStatus = "failed"    // 不可恢复错误，终止态
)

// BookTransition 定义书籍状态迁移
type BookTransition struct {
	From BookStatus
	To   BookStatus
}

// BookStateMachine 书籍状态机
// 状态单调前进，failed 是从任意非终止态可达的吸收态
type BookStateMachine struct {
	allowedTransitions map[BookTransition]bool
}

// NewBookStateMachine 创建新的书籍状态机
func NewBookStateMachine() *BookStateMachine {
	sm := &BookStateMachine{
		allowedTransitions: make(map[BookTransition]bool),
	}

	// 合法迁移路径
	// planning -> writing -> completed
	// planning/writing -> failed（大纲或章节生成不可恢复失败）
	transitions := []BookTransition{
		{BookStatusPlanning, BookStatusWriting},
		{BookStatusWriting, BookStatusCompleted},
		{BookStatusPlanning, BookStatusFailed},
		{BookStatusWriting, BookStatusFailed},
	}

	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition 检查状态迁移是否合法
func (sm *BookStateMachine) CanTransition(from, to BookStatus) bool {
	if from == to {
		return false // 不允许状态不变
	}
	return sm.allowedTransitions[BookTransition{From: from, To: to}]
}

// ValidateTransition 验证状态迁移并返回错误
func (sm *BookStateMachine) ValidateTransition(from, to BookStatus) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStateTransitionError{
			From: string(from),
			To:   string(to),
		}
	}
	return nil
}

// Transition 执行状态迁移（带日志）
func (sm *BookStateMachine) Transition(from, to BookStatus, bookID string) error {
	if err := sm.ValidateTransition(from, to); err != nil {
		klog.V(6).Infof("书籍状态迁移被拒绝: bookID=%s, %s -> %s, error=%v",
			bookID, from, to, err)
		return err
	}

	klog.V(6).Infof("书籍状态迁移成功: bookID=%s, %s -> %s", bookID, from, to)
	return nil
}

// InvalidStateTransitionError 无效的状态迁移错误
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid book state transition: %s -> %s", e.From, e.To)
}

// IsTerminal 判断状态是否为终止态（不能再迁移）
func IsTerminal(status BookStatus) bool {
	return status == BookStatusCompleted || status == BookStatusFailed
}
