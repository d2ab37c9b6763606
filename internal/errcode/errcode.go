package errcode

// 通知错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复/告警类错误（例如资源缺失但流程可继续）
// - 5xxx：系统错误（需要中断流程）
const (
	OK              = 0
	ResourceMissing = 4004
	ExportFailed    = 5001
	SystemError     = 5000
)

// 403 响应中的 reason 字段。
const (
	ReasonInsufficientCredits = "insufficient_credits"
	ReasonPlanLimitReached    = "plan_limit_reached"
	ReasonNotOwner            = "not_owner"
	ReasonAdminOnly           = "admin_only"
	ReasonPasswordChange      = "password_change_required"
)
