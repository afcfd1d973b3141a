package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sax-estudios/internal/blob"
	"sax-estudios/internal/model"
	"sax-estudios/internal/storage"
)

// Store 定义管理操作所需的存储接口。
type Store interface {
	GetClient(ctx context.Context, id string) (*model.Client, error)
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	ListSubmissions(ctx context.Context, clientID string) ([]model.Submission, error)
	DeleteSubmission(ctx context.Context, clientID, submissionID string) (storage.RemovalResult, error)
	DeleteClient(ctx context.Context, clientID string) ([]model.Submission, error)
}

// Overview 汇总访客聚合及其申请。
type Overview struct {
	Client      model.Client       `json:"cliente"`
	Submissions []model.Submission `json:"estudios"`
}

// Removal 表示删除结果。
type Removal struct {
	Submissions   []string `json:"estudios"`
	FilesDeleted  int      `json:"archivosEliminados"`
	FilesFailed   int      `json:"archivosFallidos"`
	ClientDeleted bool     `json:"clienteEliminado"`
}

// Service 提供访客与申请的管理操作。
type Service struct {
	store  Store
	blobs  blob.Store
	logger *slog.Logger
}

// NewService 创建 Service，blobs 为 nil 时跳过文件清理。
func NewService(store Store, blobs blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, blobs: blobs, logger: logger.With("module", "admin")}
}

// Get 返回访客聚合与申请列表。
func (s *Service) Get(ctx context.Context, clientID string) (Overview, error) {
	c, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return Overview{}, fmt.Errorf("get client: %w", err)
	}
	subs, err := s.store.ListSubmissions(ctx, clientID)
	if err != nil {
		return Overview{}, err
	}
	return Overview{Client: *c, Submissions: subs}, nil
}

// RemoveSubmission 删除一份申请：先尽力删除简历文件，再删除记录，
// 访客没有剩余申请时聚合记录一并删除。
func (s *Service) RemoveSubmission(ctx context.Context, clientID, submissionID string) (Removal, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return Removal{}, fmt.Errorf("get submission: %w", err)
	}
	if sub.ClientID != clientID {
		return Removal{}, fmt.Errorf("submission %s of client %s: %w", submissionID, clientID, storage.ErrNotFound)
	}

	var out Removal
	s.deleteFile(ctx, sub.CVPath, &out)

	res, err := s.store.DeleteSubmission(ctx, clientID, submissionID)
	if err != nil {
		return Removal{}, fmt.Errorf("delete submission: %w", err)
	}
	out.Submissions = []string{res.Submission.ID}
	out.ClientDeleted = res.ClientDeleted
	s.logger.InfoContext(ctx, "submission removed", "client_id", clientID, "doc_id", submissionID, "client_deleted", res.ClientDeleted)
	return out, nil
}

// RemoveClient 删除访客及其全部申请与文件。
func (s *Service) RemoveClient(ctx context.Context, clientID string) (Removal, error) {
	subs, err := s.store.ListSubmissions(ctx, clientID)
	if err != nil {
		return Removal{}, err
	}

	var out Removal
	for _, sub := range subs {
		s.deleteFile(ctx, sub.CVPath, &out)
	}

	removed, err := s.store.DeleteClient(ctx, clientID)
	if err != nil {
		return Removal{}, fmt.Errorf("delete client: %w", err)
	}
	for _, sub := range removed {
		out.Submissions = append(out.Submissions, sub.ID)
	}
	out.ClientDeleted = true
	s.logger.InfoContext(ctx, "client removed", "client_id", clientID, "submissions", len(removed))
	return out, nil
}

func (s *Service) deleteFile(ctx context.Context, path string, out *Removal) {
	if path == "" || s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, path); err != nil && !errors.Is(err, blob.ErrNotFound) {
		out.FilesFailed++
		s.logger.WarnContext(ctx, "delete cv failed", "path", path, "error", err)
		return
	}
	out.FilesDeleted++
}
