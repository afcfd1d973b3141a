package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"sax-estudios/internal/blob"
	"sax-estudios/internal/model"
	"sax-estudios/internal/storage"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Store 抽象申请写入所需的存储接口。
type Store interface {
	EnsureClient(ctx context.Context, c model.Client) (*model.Client, bool, error)
	FindPendingDuplicate(ctx context.Context, clientID, dedupKey string, since time.Time) (*model.Submission, error)
	CreateSubmission(ctx context.Context, sub *model.Submission) error
}

// Config 控制去重窗口。
type Config struct {
	DedupWindow time.Duration
}

// Upload 表示随表单上传的简历文件。
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Request 表示一次申请提交。
type Request struct {
	Form    Form
	File    *Upload
	Context map[string]string
}

// Result 返回申请 ID 与简历地址，Duplicate 表示命中了已有的未支付申请。
type Result struct {
	SubmissionID string
	CVURL        string
	Duplicate    bool
}

// Service 负责校验、去重并写入研究申请。
type Service struct {
	store  Store
	blobs  blob.Store
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService 创建 Service，去重窗口默认一小时。
func NewService(store Store, blobs blob.Store, cfg Config, logger *slog.Logger) *Service {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		blobs:  blobs,
		window: cfg.DedupWindow,
		logger: logger.With("module", "intake"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Submit 处理一次申请。同一访客并发提交相同申请时两者都可能通过去重检查，这是已知的限制。
func (s *Service) Submit(ctx context.Context, req Request) (Result, error) {
	form := req.Form
	if form.VisitorID == "" {
		return Result{}, invalid("visitorId", "required")
	}
	now := s.now().UTC()

	attr := firstTouch(form.Attribution)
	client, created, err := s.store.EnsureClient(ctx, model.Client{
		ID:           form.VisitorID,
		RegisteredAt: now,
		UTMSource:    attr.Source,
		UTMMedium:    attr.Medium,
		UTMCampaign:  attr.Campaign,
	})
	if err != nil {
		return Result{}, fmt.Errorf("ensure client: %w", err)
	}
	if created {
		s.logger.InfoContext(ctx, "client registered", "client_id", client.ID, "source", client.UTMSource)
	}

	key := DedupKey(form.Candidate, form.Position)
	dup, err := s.store.FindPendingDuplicate(ctx, client.ID, key, now.Add(-s.window))
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "duplicate submission coalesced", "client_id", client.ID, "doc_id", dup.ID)
		return Result{SubmissionID: dup.ID, CVURL: dup.CVURL, Duplicate: true}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return Result{}, fmt.Errorf("dedup lookup: %w", err)
	}

	var obj blob.Object
	if req.File != nil {
		if s.blobs == nil {
			return Result{}, fmt.Errorf("file storage not configured")
		}
		objKey := blob.ObjectKey(client.ID, req.File.Filename, now)
		obj, err = s.blobs.Put(ctx, objKey, req.File.ContentType, req.File.Body)
		if err != nil {
			return Result{}, fmt.Errorf("store cv: %w", err)
		}
	}

	sub := &model.Submission{
		ID:             s.newID(),
		ClientID:       client.ID,
		Candidate:      form.Candidate,
		Position:       form.Position,
		Company:        form.Company,
		ContactName:    form.ContactName,
		ContactEmail:   form.ContactEmail,
		ContactPhone:   form.ContactPhone,
		City:           form.City,
		StudyType:      form.StudyType,
		Comments:       form.Comments,
		DedupKey:       key,
		CVURL:          obj.URL,
		CVPath:         obj.Path,
		Status:         model.StatusUnpaid,
		UTMSource:      attr.Source,
		UTMMedium:      attr.Medium,
		UTMCampaign:    attr.Campaign,
		Context:        toJSONMap(req.Context),
		ExpectedAmount: form.Amount,
		SubmittedAt:    now,
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		if obj.Path != "" {
			s.logger.WarnContext(ctx, "cv stored without submission", "path", obj.Path, "error", err)
		}
		return Result{}, fmt.Errorf("create submission: %w", err)
	}

	s.logger.InfoContext(ctx, "submission created", "client_id", client.ID, "doc_id", sub.ID, "has_cv", obj.Path != "")
	return Result{SubmissionID: sub.ID, CVURL: obj.URL}, nil
}

func firstTouch(a Attribution) Attribution {
	if a.Source == "" {
		a.Source = model.DefaultSource
	}
	if a.Medium == "" {
		a.Medium = model.DefaultMedium
	}
	if a.Campaign == "" {
		a.Campaign = model.DefaultCampaign
	}
	return a
}

func toJSONMap(m map[string]string) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range m {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
