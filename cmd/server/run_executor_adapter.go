package main

import (
	"context"

	"github.com/bookforge/backend/internal/service/pipeline"
)

// runExecutorAdapter 将流水线控制器适配为 runner.RunExecutor 接口
// 避免 runner 和 pipeline 之间的循环依赖
type runExecutorAdapter struct {
	controller *pipeline.Controller
}

// ExecuteRun 执行一本书的生成流程
// 实现 runner.RunExecutor 接口
func (a *runExecutorAdapter) ExecuteRun(ctx context.Context, bookID string) error {
	return a.controller.ExecuteRun(ctx, bookID)
}
