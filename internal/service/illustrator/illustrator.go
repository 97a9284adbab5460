package illustrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/bookforge/backend/internal/pkg/imagegen"
	"github.com/bookforge/backend/internal/pkg/llm"
	"github.com/bookforge/backend/internal/pkg/retry"
)

const sceneSystemPrompt = `You extract visual scene descriptions from prose for an illustrator.`

const fallbackScene = "A mysterious scene with dramatic lighting"

// excerptLimit 仅取章节开头用于场景提取，避免超长提示
const excerptLimit = 2000

// ImageFetcher 图片获取接口
type ImageFetcher interface {
	Fetch(ctx context.Context, prompt string, seed int64) (string, error)
	Seed() int64
}

// Service 插图师
// 插图是装饰性的：任何失败都只记日志并返回空结果，绝不让书的生成中断
type Service struct {
	chatModel        llm.ChatModel
	retry            *retry.Executor
	images           ImageFetcher
	scenePacingDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewService 创建插图师
func NewService(chatModel llm.ChatModel, retryExec *retry.Executor, images ImageFetcher, scenePacing time.Duration) *Service {
	return &Service{
		chatModel:        chatModel,
		retry:            retryExec,
		images:           images,
		scenePacingDelay: scenePacing,
		sleep:            sleepContext,
	}
}

// WithSleep 替换等待实现
func (s *Service) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Service {
	s.sleep = sleep
	return s
}

// Illustrate 从章节正文提取场景并生成插图
// 返回 base64 编码的图片数据；ok=false 表示本章不配图（失败被吞掉）
func (s *Service) Illustrate(ctx context.Context, chapterContent, genre string) (string, bool) {
	if err := s.sleep(ctx, s.scenePacingDelay); err != nil {
		klog.Warningf("[illustrator] 等待被取消: %v", err)
		return "", false
	}

	scene := s.extractScene(ctx, chapterContent)
	prompt := fmt.Sprintf("%s. Art style: Highly detailed, oil painting, cinematic lighting, %s aesthetic, professional book illustration, dramatic composition", scene, genre)

	// 图片接口与文本接口独立限流，取图前同样节流一次
	if err := s.sleep(ctx, s.scenePacingDelay); err != nil {
		klog.Warningf("[illustrator] 等待被取消: %v", err)
		return "", false
	}

	image, err := s.images.Fetch(ctx, prompt, s.images.Seed())
	if err != nil {
		klog.Warningf("[illustrator] 图片获取失败: %v", err)
		return "", false
	}
	klog.V(6).Infof("[illustrator] 插图生成完成: promptLength=%d, imageLength=%d", len(prompt), len(image))
	return image, true
}

// extractScene 请求模型提炼不超过 40 个词的视觉场景描述
// 失败时退回到通用场景
func (s *Service) extractScene(ctx context.Context, chapterContent string) string {
	excerpt := chapterContent
	if runes := []rune(excerpt); len(runes) > excerptLimit {
		excerpt = string(runes[:excerptLimit])
	}

	scenePrompt := fmt.Sprintf(`Read the following chapter excerpt and describe the single most visually striking scene in it, in at most 40 words. Mention lighting and mood. Output only the description, no preamble.

%s`, excerpt)

	scene, err := retry.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
		return llm.GenerateText(ctx, s.chatModel, sceneSystemPrompt, scenePrompt)
	})
	if err != nil || strings.TrimSpace(scene) == "" {
		klog.Warningf("[illustrator] 场景提取失败，使用通用场景: err=%v", err)
		return fallbackScene
	}
	return strings.TrimSpace(scene)
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

var _ ImageFetcher = (*imagegen.Client)(nil)
