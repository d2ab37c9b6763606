package assets

import (
	"errors"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ErrInfected 表示文件未通过病毒扫描。
var ErrInfected = errors.New("malicious file detected")

// Scanner 扫描上传内容。
type Scanner interface {
	Scan(r io.Reader) error
}

// ClamdScanner 通过 clamd 的 INSTREAM 扫描文件。
type ClamdScanner struct {
	addr string
}

// NewClamdScanner 创建扫描器，addr 形如 tcp://host:3310。
func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{addr: addr}
}

// Scan 返回 nil 表示干净。
func (s *ClamdScanner) Scan(r io.Reader) error {
	client := clamd.NewClamd(s.addr)
	abort := make(chan bool)
	defer close(abort)

	results, err := client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range results {
		switch result.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			return fmt.Errorf("%w: %s", ErrInfected, result.Description)
		default:
			return fmt.Errorf("scan failed: %s %s", result.Status, result.Description)
		}
	}
	return nil
}
