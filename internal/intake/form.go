package intake

import (
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"
)

// ValidationError 表示请求参数不合法，对应 400。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Form 是研究申请表单的显式字段。
type Form struct {
	VisitorID    string
	Candidate    string
	Position     string
	Company      string
	ContactName  string
	ContactEmail string
	ContactPhone string
	City         string
	StudyType    string
	Comments     string
	Amount       int64
	Attribution  Attribution
}

// Attribution 表示流量来源归因。
type Attribution struct {
	Source   string
	Medium   string
	Campaign string
}

const (
	maxFieldLen    = 200
	maxCommentsLen = 2000
)

// 表单字段名到 Form 字段的映射，未列出的字段视为非法。
var textFields = map[string]func(*Form) *string{
	"visitorId":        func(f *Form) *string { return &f.VisitorID },
	"nombreCandidato":  func(f *Form) *string { return &f.Candidate },
	"puesto":           func(f *Form) *string { return &f.Position },
	"empresa":          func(f *Form) *string { return &f.Company },
	"nombreContacto":   func(f *Form) *string { return &f.ContactName },
	"emailContacto":    func(f *Form) *string { return &f.ContactEmail },
	"telefonoContacto": func(f *Form) *string { return &f.ContactPhone },
	"ciudad":           func(f *Form) *string { return &f.City },
	"tipoEstudio":      func(f *Form) *string { return &f.StudyType },
	"comentarios":      func(f *Form) *string { return &f.Comments },
	"utmSource":        func(f *Form) *string { return &f.Attribution.Source },
	"utmMedium":        func(f *Form) *string { return &f.Attribution.Medium },
	"utmCampaign":      func(f *Form) *string { return &f.Attribution.Campaign },
}

// ParseForm 将 multipart 文本字段解析为 Form，拒绝未知字段。
func ParseForm(values map[string][]string) (Form, error) {
	var f Form

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		vals := values[name]
		raw := ""
		if len(vals) > 0 {
			raw = vals[0]
		}
		if name == "monto" {
			amount, err := parseAmount(raw)
			if err != nil {
				return Form{}, err
			}
			f.Amount = amount
			continue
		}
		field, ok := textFields[name]
		if !ok {
			return Form{}, invalid(name, "unknown field")
		}
		limit := maxFieldLen
		if name == "comentarios" {
			limit = maxCommentsLen
		}
		*field(&f) = cleanText(raw, limit)
	}

	if f.ContactEmail != "" {
		if _, err := mail.ParseAddress(f.ContactEmail); err != nil {
			return Form{}, invalid("emailContacto", "invalid email")
		}
	}
	return f, nil
}

func parseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, invalid("monto", "must be a non-negative integer")
	}
	return v, nil
}

// DedupKey 由候选人姓名与岗位归一化后组成，用于判断重复提交。
func DedupKey(candidate, position string) string {
	return normalize(candidate) + "|" + normalize(position)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
