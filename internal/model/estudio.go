package model

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus 表示一份研究申请的支付状态。
type SubmissionStatus string

const (
	StatusUnpaid SubmissionStatus = "pendiente_pago"
	StatusPaid   SubmissionStatus = "pagado"
)

// 首次访问归因缺失时的默认值。
const (
	DefaultSource   = "direct"
	DefaultMedium   = "none"
	DefaultCampaign = "none"
)

// Client 表示一个访客的聚合记录，以前端生成的 visitorId 为主键
// - UTM*: 首次访问归因，创建后不再修改
// - Paid/Unpaid/TotalSubmissions: 计数器，始终满足 paid + unpaid == total
// - TotalRevenue: 累计收入，单位为货币最小单位（分），只增不减
type Client struct {
	ID                string     `gorm:"primaryKey" json:"clientId"`
	RegisteredAt      time.Time  `json:"fechaRegistro"`
	UTMSource         string     `json:"utmSource"`
	UTMMedium         string     `json:"utmMedium"`
	UTMCampaign       string     `json:"utmCampaign"`
	PaymentCompleted  bool       `json:"pagoCompletado"`
	LastSessionID     string     `json:"ultimoSessionId"`
	FirstPurchaseAt   *time.Time `json:"primeraCompra"`
	LastPurchaseAt    *time.Time `json:"ultimaCompra"`
	TotalRevenue      int64      `json:"totalRevenue"`
	TotalSubmissions  int        `json:"totalSolicitudes"`
	PaidSubmissions   int        `json:"solicitudesPagadas"`
	UnpaidSubmissions int        `json:"solicitudesNoPagadas"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Submission 表示一份研究申请，归属于某个 Client。
type Submission struct {
	ID           string           `gorm:"primaryKey" json:"docId"`
	ClientID     string           `gorm:"index;not null" json:"clientId"`
	Candidate    string           `json:"nombreCandidato"`
	Position     string           `json:"puesto"`
	Company      string           `json:"empresa"`
	ContactName  string           `json:"nombreContacto"`
	ContactEmail string           `json:"emailContacto"`
	ContactPhone string           `json:"telefonoContacto"`
	City         string           `json:"ciudad"`
	StudyType    string           `json:"tipoEstudio"`
	Comments     string           `json:"comentarios"`
	DedupKey     string           `gorm:"index" json:"-"`
	CVURL        string           `json:"cvUrl"`
	CVPath       string           `json:"cvPath"`
	Status       SubmissionStatus `gorm:"index" json:"status"`
	UTMSource    string           `json:"utmSource"`
	UTMMedium    string           `json:"utmMedium"`
	UTMCampaign  string           `json:"utmCampaign"`
	// Context 记录请求来源信息（ip、user agent、referer）。
	Context        datatypes.JSONMap `json:"contexto"`
	ExpectedAmount int64             `json:"monto"`
	SubmittedAt    time.Time         `gorm:"index" json:"timestamp"`

	CheckoutType      string     `json:"tipo"`
	CheckoutSessionID string     `json:"checkoutSessionId"`
	CheckoutStartedAt *time.Time `json:"checkoutIniciado"`
	CAC               float64    `json:"cac"`

	PaidAt        *time.Time        `json:"fechaPago"`
	PaidAmount    int64             `json:"montoPagado"`
	Currency      string            `json:"moneda"`
	PaymentDetail datatypes.JSONMap `json:"detallePago"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Paid 判断申请是否已支付。
func (s Submission) Paid() bool {
	return s.Status == StatusPaid
}

// Purchase 是一次成功支付后对外通知的内容，不落库。
type Purchase struct {
	TransactionID string
	SubmissionID  string
	ClientID      string
	Amount        int64
	Currency      string
	StudyType     string
	Candidate     string
	Position      string
	PaidAt        time.Time
}
