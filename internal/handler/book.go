package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/bookforge/backend/internal/eventbus"
	"github.com/bookforge/backend/internal/model"
	"github.com/bookforge/backend/internal/service/pipeline"
	"github.com/bookforge/backend/internal/service/statemachine"
	"github.com/bookforge/backend/internal/store"
)

// BookService 书籍生成服务接口
type BookService interface {
	Create(req *pipeline.CreateBookRequest) (*model.Book, error)
	Cancel(bookID string) (bool, error)
}

type BookHandler struct {
	service BookService
	store   *store.BookStore
	bus     *eventbus.RunEventBus
}

func NewBookHandler(service BookService, bookStore *store.BookStore, bus *eventbus.RunEventBus) *BookHandler {
	return &BookHandler{
		service: service,
		store:   bookStore,
		bus:     bus,
	}
}

func (h *BookHandler) Create(c *gin.Context) {
	var req pipeline.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	book, err := h.service.Create(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, book)
}

func (h *BookHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.List())
}

func (h *BookHandler) Get(c *gin.Context) {
	book, err := h.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) GetProgress(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}

	progress, err := h.store.GetProgress(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no progress for book"})
		return
	}
	c.JSON(http.StatusOK, progress)
}

// StreamProgress 通过 SSE 推送生成进度
// 连接时先推一帧当前进度快照，运行结束后推 finished 帧并关闭
func (h *BookHandler) StreamProgress(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	events := make(chan eventbus.RunEvent, 32)
	forward := func(ctx context.Context, event eventbus.RunEvent) error {
		if event.BookID != id {
			return nil
		}
		select {
		case events <- event:
		default:
			klog.V(6).Infof("[handler] SSE 订阅队列已满，丢弃事件: bookID=%s", id)
		}
		return nil
	}
	unsubProgress := h.bus.Subscribe(eventbus.RunEventProgress, forward)
	defer unsubProgress()
	unsubFinished := h.bus.Subscribe(eventbus.RunEventFinished, forward)
	defer unsubFinished()

	// 订阅之后再读状态：订阅前一刻进入终止态的运行不会再发事件
	book, err := h.store.Get(id)
	if err != nil {
		c.SSEvent("finished", gin.H{"status": "deleted"})
		return
	}

	if progress, err := h.store.GetProgress(id); err == nil {
		c.SSEvent("progress", progress)
		c.Writer.Flush()
	}

	// 已在终止态的书不会再有事件，推一帧后直接结束
	if statemachine.IsTerminal(statemachine.BookStatus(book.Status)) {
		c.SSEvent("finished", gin.H{"status": book.Status})
		return
	}

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case event := <-events:
			if event.Type == eventbus.RunEventFinished {
				c.SSEvent("progress", event.Progress)
				c.SSEvent("finished", gin.H{"status": event.Book.Status})
				return false
			}
			c.SSEvent("progress", event.Progress)
			return true
		}
	})
}

func (h *BookHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	cancelled, err := h.service.Cancel(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, gin.H{"error": "book has no active generation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "generation cancelled"})
}

func (h *BookHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	// 先取消运行中的流程，再删除文档
	if _, err := h.service.Cancel(id); err != nil && !errors.Is(err, store.ErrNotFound) {
		klog.Warningf("[handler] 删除前取消失败: bookID=%s, err=%v", id, err)
	}

	if err := h.store.Delete(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "book deleted"})
}
