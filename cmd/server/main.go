package main

import (
	"flag"
	"log"

	"k8s.io/klog/v2"

	"github.com/bookforge/backend/config"
	"github.com/bookforge/backend/internal/eventbus"
	"github.com/bookforge/backend/internal/handler"
	"github.com/bookforge/backend/internal/pkg/imagegen"
	"github.com/bookforge/backend/internal/pkg/llm"
	"github.com/bookforge/backend/internal/pkg/retry"
	"github.com/bookforge/backend/internal/router"
	"github.com/bookforge/backend/internal/service/author"
	"github.com/bookforge/backend/internal/service/illustrator"
	"github.com/bookforge/backend/internal/service/outline"
	"github.com/bookforge/backend/internal/service/pipeline"
	"github.com/bookforge/backend/internal/service/runner"
	"github.com/bookforge/backend/internal/store"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	chatModel, err := llm.NewLLMChatModel(&cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize chat model: %v", err)
	}

	bookStore := store.NewBookStore()
	bus := eventbus.NewRunEventBus()
	retryExec := retry.New(cfg.Generator.MaxRetries, cfg.Generator.RetryInitialDelay)
	images := imagegen.NewClient(&cfg.Image)

	// 初始化生成服务
	outlineService := outline.NewService(chatModel, retryExec, cfg.Generator.TotalChapters)
	authorService := author.NewService(chatModel, retryExec,
		cfg.Generator.ProsePacingDelay, cfg.Generator.SummaryPacingDelay)
	illustratorService := illustrator.NewService(chatModel, retryExec, images,
		cfg.Generator.ScenePacingDelay)

	controller := pipeline.NewController(bookStore, bus,
		outlineService, authorService, illustratorService, &cfg.Generator)

	// 初始化运行器
	// maxWorkers=2，避免并发过多打爆 LLM 配额
	runExecutor := &runExecutorAdapter{controller: controller}
	bookRunner, err := runner.NewRunner(2, runExecutor)
	if err != nil {
		log.Fatalf("Failed to initialize runner: %v", err)
	}
	controller.SetSubmitter(bookRunner)
	defer bookRunner.Stop()

	// 初始化 Handler
	bookHandler := handler.NewBookHandler(controller, bookStore, bus)
	themeHandler := handler.NewThemeHandler()
	configHandler := handler.NewConfigHandler()

	// 设置路由
	r := router.Setup(cfg, bookHandler, themeHandler, configHandler)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
