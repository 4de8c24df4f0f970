package service

// DisplayStatus is the rendered state of a timeline node.
type DisplayStatus string

const (
	StatusApproved DisplayStatus = "approved"
	StatusRejected DisplayStatus = "rejected"
	StatusPending  DisplayStatus = "pending"
)

// Display fallbacks, surfaced verbatim by the UI.
const (
	fallbackNodeName    = "审批节点"
	fallbackPendingName = "待审批"
	fallbackUserName    = "未知用户"
	ccNodeName          = "抄送"
	ccNodeStatus        = "completed"
	unknownIdentity     = "Unknown"
)

// Instance status labels.
const (
	statusLabelApproved   = "已通过"
	statusLabelRejected   = "已拒绝"
	statusLabelCanceled   = "已撤销"
	statusLabelInProgress = "进行中"
)

// ProcessedNode is one display-ready approval step.
type ProcessedNode struct {
	ID           string        `json:"id"`
	NodeName     string        `json:"nodeName"`
	NodeType     string        `json:"nodeType"`
	ApproverName string        `json:"approverName"`
	Time         string        `json:"time"`
	Status       DisplayStatus `json:"status"`
	Comment      string        `json:"comment,omitempty"`
	// Near-simultaneity annotation relative to the previous completed
	// node, set after sorting.
	IsTimeClose     bool    `json:"isTimeClose,omitempty"`
	TimeDiffSeconds float64 `json:"timeDiffSeconds,omitempty"`
	TimeCloseNote   string  `json:"timeCloseNote,omitempty"`
}

// CCNode is one carbon-copy recipient entry.
type CCNode struct {
	ID           string `json:"id"`
	CCNodeName   string `json:"ccNodeName"`
	CCPersonName string `json:"ccPersonName"`
	CCTime       string `json:"ccTime"`
	Status       string `json:"status"`
}

// TimelineData is the three-bucket timeline. Completed is sorted
// ascending by display time; pending keeps task-list order; cc keeps
// event order.
type TimelineData struct {
	Completed []ProcessedNode `json:"completed"`
	Pending   []ProcessedNode `json:"pending"`
	CC        []CCNode        `json:"cc"`
}

// ApprovalHeader summarizes the instance above the timeline.
type ApprovalHeader struct {
	InstanceID   string `json:"instanceId"`
	ApprovalName string `json:"approvalName"`
	SerialNumber string `json:"serialNumber,omitempty"`
	Applicant    string `json:"applicant"`
	ApplyTime    string `json:"applyTime"`
	Status       string `json:"status"`
}

// ProcessedApprovalData is the full payload returned to the frontend.
type ProcessedApprovalData struct {
	Header   ApprovalHeader `json:"header"`
	Timeline TimelineData   `json:"timeline"`
}
