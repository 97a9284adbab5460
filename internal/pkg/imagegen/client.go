package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"k8s.io/klog/v2"

	"github.com/bookforge/backend/config"
)

// Client 图像合成客户端
// 上游是一个以 URL 编码提示词为路径参数的 GET 接口，成功时响应体为原始图片字节
type Client struct {
	BaseURL string
	Width   int
	Height  int
	Client  *http.Client
}

// NewClient 创建图像合成客户端
func NewClient(cfg *config.ImageConfig) *Client {
	return &Client{
		BaseURL: cfg.APIURL,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Fetch 请求一张图片并返回 base64 编码的字节
// seed 用于避免不同章节命中相同的缓存结果
func (c *Client) Fetch(ctx context.Context, prompt string, seed int64) (string, error) {
	imageURL := fmt.Sprintf("%s/%s?width=%d&height=%d&seed=%d&nologo=true&enhance=true",
		c.BaseURL, url.PathEscape(prompt), c.Width, c.Height, seed)

	klog.V(6).Infof("[imagegen] 请求图片: width=%d, height=%d, seed=%d", c.Width, c.Height, seed)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("image generation failed: status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty image body")
	}

	klog.V(6).Infof("[imagegen] 图片获取成功: bytes=%d", len(body))
	return base64.StdEncoding.EncodeToString(body), nil
}

// Seed 默认的唯一性种子，取当前毫秒时间戳
func (c *Client) Seed() int64 {
	return time.Now().UnixMilli()
}
