package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound 表示对象不存在。
var ErrNotFound = errors.New("object not found")

// Object 表示一个已保存的文件及其可访问地址。
type Object struct {
	Path string
	URL  string
}

// Store 抽象文件存储。
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (Object, error)
	Delete(ctx context.Context, key string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey 生成简历文件路径：cv/<visitorId>/<ulid>_<文件名>。
// ULID 编码了时间戳，同一访客同一毫秒内的上传也不会冲突。
func ObjectKey(visitorID, filename string, now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return path.Join("cv", sanitize(visitorID, "anon"), id.String()+"_"+sanitize(path.Base(filename), "cv"))
}

func sanitize(s, fallback string) string {
	s = strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_"), "._")
	if s == "" {
		return fallback
	}
	if len(s) > 100 {
		s = s[len(s)-100:]
	}
	return s
}
