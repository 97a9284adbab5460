package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bookforge/backend/internal/model"
)

// ErrNotFound 书籍不存在
var ErrNotFound = fmt.Errorf("book not found")

// BookStore 保存会话期内的书籍与进度快照
// 书籍不做持久化：运行结束或服务重启后即被丢弃
// 写入方唯一（流水线控制器），读取方拿到的都是深拷贝
type BookStore struct {
	mutex    sync.RWMutex
	books    map[string]*model.Book
	progress map[string]model.GenerationProgress
}

// NewBookStore 创建内存书籍存储
func NewBookStore() *BookStore {
	return &BookStore{
		books:    make(map[string]*model.Book),
		progress: make(map[string]model.GenerationProgress),
	}
}

// Put 写入或覆盖书籍快照
func (s *BookStore) Put(book *model.Book) {
	if book == nil {
		return
	}
	s.mutex.Lock()
	s.books[book.ID] = book.Clone()
	s.mutex.Unlock()
}

// Update 覆盖已存在的书籍快照
// 书籍已被删除时拒绝写入：删除与生成流程并发，运行中的提交不能复活已删除的书
func (s *BookStore) Update(book *model.Book) error {
	if book == nil {
		return ErrNotFound
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.books[book.ID]; !ok {
		return ErrNotFound
	}
	s.books[book.ID] = book.Clone()
	return nil
}

// Get 按 ID 读取书籍快照
func (s *BookStore) Get(id string) (*model.Book, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	book, ok := s.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	return book.Clone(), nil
}

// List 返回会话内全部书籍快照，按创建时间排序
func (s *BookStore) List() []*model.Book {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	result := make([]*model.Book, 0, len(s.books))
	for _, book := range s.books {
		result = append(result, book.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Delete 丢弃书籍及其进度
func (s *BookStore) Delete(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.books[id]; !ok {
		return ErrNotFound
	}
	delete(s.books, id)
	delete(s.progress, id)
	return nil
}

// SetProgress 更新运行进度快照，书籍不存在时丢弃
func (s *BookStore) SetProgress(id string, progress model.GenerationProgress) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.books[id]; !ok {
		return
	}
	s.progress[id] = progress
}

// GetProgress 读取运行进度快照
func (s *BookStore) GetProgress(id string) (model.GenerationProgress, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if _, ok := s.books[id]; !ok {
		return model.GenerationProgress{}, ErrNotFound
	}
	return s.progress[id], nil
}
