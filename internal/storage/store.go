package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sax-estudios/internal/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 表示记录不存在。
var ErrNotFound = errors.New("record not found")

// Store 封装 SQLite 数据库访问，负责访客聚合与研究申请的读写。
type Store struct {
	db *gorm.DB
}

// CheckoutStamp 记录发起支付时写回申请的信息。
type CheckoutStamp struct {
	Type      string
	SessionID string
	CAC       float64
	At        time.Time
}

// PaymentUpdate 描述一次支付完成回调需要写入的内容。
type PaymentUpdate struct {
	SubmissionID string
	SessionID    string
	Amount       int64
	Currency     string
	PaidAt       time.Time
	Details      datatypes.JSONMap
}

// PaymentResult 表示支付写入结果。
// Transitioned 为 false 表示申请此前已是已支付状态，本次未修改任何数据。
type PaymentResult struct {
	Submission    model.Submission
	Transitioned  bool
	ClientUpdated bool
}

// RemovalResult 表示删除申请的结果。
type RemovalResult struct {
	Submission    model.Submission
	ClientDeleted bool
}

// NewStore 创建 Store 并自动迁移数据表。
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(dbPath)), &gorm.Config{NowFunc: utcNow})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&model.Client{}, &model.Submission{}); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	return &Store{db: db}, nil
}

// sqliteDSN 为并发写入设置 busy timeout。
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_foreign_keys=1"
}

// 时间统一以 UTC 落库，SQLite 按文本比较时间，混合时区会导致比较出错。
func utcNow() time.Time {
	return time.Now().UTC()
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// Ping 检查数据库连接。
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// EnsureClient 按 ID 查找访客聚合，不存在时以给定值创建。
// 已存在的记录不会被修改，首次归因因此保持不变。返回值 created 表示本次是否新建。
func (s *Store) EnsureClient(ctx context.Context, c model.Client) (*model.Client, bool, error) {
	if c.ID == "" {
		return nil, false, fmt.Errorf("ensure client: empty id")
	}
	c.RegisteredAt = c.RegisteredAt.UTC()
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&c)
	if tx.Error != nil {
		return nil, false, fmt.Errorf("ensure client: %w", tx.Error)
	}
	created := tx.RowsAffected > 0

	stored, err := s.GetClient(ctx, c.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// GetClient 根据 ID 获取访客聚合。
func (s *Store) GetClient(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

// FindPendingDuplicate 返回该访客在 since 之后创建、去重键相同且未支付的最新申请。
func (s *Store) FindPendingDuplicate(ctx context.Context, clientID, dedupKey string, since time.Time) (*model.Submission, error) {
	var sub model.Submission
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND dedup_key = ? AND status = ? AND submitted_at >= ?", clientID, dedupKey, model.StatusUnpaid, since.UTC()).
		Order("submitted_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find pending duplicate: %w", err)
	}
	return &sub, nil
}

// CreateSubmission 写入新申请，并在同一事务内为访客聚合的总数与未支付数各加一。
func (s *Store) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	if sub.Status == "" {
		sub.Status = model.StatusUnpaid
	}
	sub.SubmittedAt = sub.SubmittedAt.UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			return fmt.Errorf("create submission: %w", err)
		}
		res := tx.Model(&model.Client{}).Where("id = ?", sub.ClientID).Updates(map[string]any{
			"total_submissions":  gorm.Expr("total_submissions + ?", 1),
			"unpaid_submissions": gorm.Expr("unpaid_submissions + ?", 1),
		})
		if res.Error != nil {
			return fmt.Errorf("increment client counters: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("increment client counters: client %s: %w", sub.ClientID, ErrNotFound)
		}
		return nil
	})
}

// GetSubmission 根据 ID 获取申请。
func (s *Store) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	var sub model.Submission
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &sub, nil
}

// ListSubmissions 返回访客的全部申请，按提交时间倒序。
func (s *Store) ListSubmissions(ctx context.Context, clientID string) ([]model.Submission, error) {
	var subs []model.Submission
	if err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("submitted_at DESC").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// MarkCheckoutStarted 在申请上记录所选研究类型与支付会话。
func (s *Store) MarkCheckoutStarted(ctx context.Context, id string, stamp CheckoutStamp) error {
	at := stamp.At.UTC()
	tx := s.db.WithContext(ctx).Model(&model.Submission{}).Where("id = ?", id).Updates(map[string]any{
		"checkout_type":       stamp.Type,
		"checkout_session_id": stamp.SessionID,
		"checkout_started_at": &at,
		"cac":                 stamp.CAC,
	})
	if tx.Error != nil {
		return fmt.Errorf("mark checkout started: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("mark checkout started: submission %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkPaid 将申请从未支付切换为已支付，并在同一事务内更新访客聚合的收入与计数器。
// 已支付的申请不会再次修改，重复投递的回调因此不会重复计数。
func (s *Store) MarkPaid(ctx context.Context, update PaymentUpdate) (PaymentResult, error) {
	res := PaymentResult{}
	paidAt := update.PaidAt.UTC()
	if update.PaidAt.IsZero() {
		paidAt = utcNow()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		values := map[string]any{
			"status":      model.StatusPaid,
			"paid_at":     &paidAt,
			"paid_amount": update.Amount,
			"currency":    update.Currency,
		}
		if update.SessionID != "" {
			values["checkout_session_id"] = update.SessionID
		}
		if update.Details != nil {
			values["payment_detail"] = update.Details
		}
		flip := tx.Model(&model.Submission{}).
			Where("id = ? AND status <> ?", update.SubmissionID, model.StatusPaid).
			Updates(values)
		if flip.Error != nil {
			return fmt.Errorf("mark submission paid: %w", flip.Error)
		}

		var sub model.Submission
		if err := tx.First(&sub, "id = ?", update.SubmissionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("reload submission: %w", err)
		}
		res.Submission = sub
		if flip.RowsAffected == 0 {
			return nil
		}
		res.Transitioned = true

		counters := tx.Model(&model.Client{}).Where("id = ?", sub.ClientID).Updates(map[string]any{
			"payment_completed":  true,
			"last_session_id":    update.SessionID,
			"first_purchase_at":  gorm.Expr("COALESCE(first_purchase_at, ?)", paidAt),
			"last_purchase_at":   paidAt,
			"paid_submissions":   gorm.Expr("paid_submissions + ?", 1),
			"unpaid_submissions": gorm.Expr("unpaid_submissions - ?", 1),
			"total_revenue":      gorm.Expr("total_revenue + ?", update.Amount),
		})
		if counters.Error != nil {
			return fmt.Errorf("update client revenue: %w", counters.Error)
		}
		res.ClientUpdated = counters.RowsAffected > 0
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}
	return res, nil
}

// DeleteSubmission 删除访客名下的一份申请。
// 若访客已无其他申请则一并删除聚合记录，否则按申请状态修正计数器，收入保持不变。
func (s *Store) DeleteSubmission(ctx context.Context, clientID, submissionID string) (RemovalResult, error) {
	res := RemovalResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub model.Submission
		if err := tx.First(&sub, "id = ? AND client_id = ?", submissionID, clientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load submission: %w", err)
		}
		if err := tx.Delete(&model.Submission{}, "id = ?", sub.ID).Error; err != nil {
			return fmt.Errorf("delete submission: %w", err)
		}
		res.Submission = sub

		var remaining int64
		if err := tx.Model(&model.Submission{}).Where("client_id = ?", clientID).Count(&remaining).Error; err != nil {
			return fmt.Errorf("count remaining submissions: %w", err)
		}
		if remaining == 0 {
			if err := tx.Delete(&model.Client{}, "id = ?", clientID).Error; err != nil {
				return fmt.Errorf("delete client: %w", err)
			}
			res.ClientDeleted = true
			return nil
		}

		counter := "unpaid_submissions"
		if sub.Paid() {
			counter = "paid_submissions"
		}
		if err := tx.Model(&model.Client{}).Where("id = ?", clientID).Updates(map[string]any{
			"total_submissions": gorm.Expr("total_submissions - ?", 1),
			counter:             gorm.Expr(counter+" - ?", 1),
		}).Error; err != nil {
			return fmt.Errorf("decrement client counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return RemovalResult{}, err
	}
	return res, nil
}

// DeleteClient 删除访客聚合及其全部申请，返回被删除的申请以便清理文件。
func (s *Store) DeleteClient(ctx context.Context, clientID string) ([]model.Submission, error) {
	var subs []model.Submission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", clientID).Find(&subs).Error; err != nil {
			return fmt.Errorf("list submissions: %w", err)
		}
		if err := tx.Delete(&model.Submission{}, "client_id = ?", clientID).Error; err != nil {
			return fmt.Errorf("delete submissions: %w", err)
		}
		del := tx.Delete(&model.Client{}, "id = ?", clientID)
		if del.Error != nil {
			return fmt.Errorf("delete client: %w", del.Error)
		}
		if del.RowsAffected == 0 && len(subs) == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}
