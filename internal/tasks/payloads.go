package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeDocumentExport = "document:export"
)

// ExportPayload 描述后台导出所需的最小信息。
// 水印与否由 worker 按用户当前套餐重新计算，不信任入队时的状态。
type ExportPayload struct {
	DocumentID    uint   `json:"document_id"`
	UserID        uint   `json:"user_id"`
	Format        string `json:"format"`
	CorrelationID string `json:"correlation_id"`
}

// NewExportTask 构造一个文档导出任务。
func NewExportTask(p ExportPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDocumentExport, payload, asynq.MaxRetry(3)), nil
}

// ParseExportPayload 解析任务负载。
func ParseExportPayload(task *asynq.Task) (ExportPayload, error) {
	var p ExportPayload
	err := json.Unmarshal(task.Payload(), &p)
	return p, err
}
