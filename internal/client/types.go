package client

// instanceResponse is the Feishu instance-detail response envelope.
// A nonzero Code signals an upstream error described by Msg.
type instanceResponse struct {
	Code int              `json:"code"`
	Msg  string           `json:"msg"`
	Data ApprovalInstance `json:"data"`
}

// ApprovalInstance is the raw approval instance returned by the Feishu
// open API. Timestamps are millisecond-epoch numeric strings; user
// identities come in two schemes (user_id and open_id), of which at
// most one may be populated on any given record.
type ApprovalInstance struct {
	InstanceCode string          `json:"instance_code"`
	ApprovalName string          `json:"approval_name"`
	SerialNumber string          `json:"serial_number,omitempty"`
	Status       string          `json:"status"`
	StartTime    string          `json:"start_time,omitempty"`
	EndTime      string          `json:"end_time,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	OpenID       string          `json:"open_id,omitempty"`
	Timeline     []TimelineEvent `json:"timeline"`
	TaskList     []Task          `json:"task_list"`
}

// TimelineEvent is one raw upstream event. Type is an open enumeration;
// only PASS, REMOVE_REPEAT, REJECT and CC are meaningful here, anything
// else is ignored by the processor.
type TimelineEvent struct {
	Type       string   `json:"type"`
	CreateTime string   `json:"create_time,omitempty"`
	UserID     string   `json:"user_id,omitempty"`
	OpenID     string   `json:"open_id,omitempty"`
	TaskID     string   `json:"task_id,omitempty"`
	Comment    string   `json:"comment,omitempty"`
	NodeKey    string   `json:"node_key,omitempty"`
	CCUsers    []CCUser `json:"cc_user_list,omitempty"`
}

// CCUser is one carbon-copy recipient on a CC event.
type CCUser struct {
	UserID string `json:"user_id,omitempty"`
	OpenID string `json:"open_id,omitempty"`
}

// Task is one approval step record from task_list, pending or resolved.
type Task struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	NodeName  string `json:"node_name,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	OpenID    string `json:"open_id,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// tenantTokenResponse is the tenant_access_token exchange response.
// Expire is the token lifetime in seconds.
type tenantTokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}
