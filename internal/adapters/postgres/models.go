package postgres

import "time"

type doorJobModel struct {
	ID                  int64      `gorm:"column:id;primaryKey"`
	Area                string     `gorm:"column:area"`
	Status              string     `gorm:"column:status"`
	RequestedByMemberID int64      `gorm:"column:requested_by_member_id"`
	RequestIP           *string    `gorm:"column:request_ip"`
	UserAgent           *string    `gorm:"column:user_agent"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	ExpiresAt           *time.Time `gorm:"column:expires_at"`
	DispatchedTo        *string    `gorm:"column:dispatched_to"`
	DispatchedAt        *time.Time `gorm:"column:dispatched_at"`
	Nonce               *string    `gorm:"column:nonce"`
	Attempts            int        `gorm:"column:attempts"`
	ExecutedAt          *time.Time `gorm:"column:executed_at"`
	ResultCode          *string    `gorm:"column:result_code"`
	ResultMessage       *string    `gorm:"column:result_message"`
}

func (doorJobModel) TableName() string { return "door_jobs" }

type deviceModel struct {
	ID         int64      `gorm:"column:id;primaryKey"`
	DeviceID   string     `gorm:"column:device_id"`
	Name       string     `gorm:"column:name"`
	TokenHash  string     `gorm:"column:token_hash"`
	Enabled    bool       `gorm:"column:enabled"`
	Areas      string     `gorm:"column:areas"`
	LastSeenAt *time.Time `gorm:"column:last_seen_at"`
	LastIP     *string    `gorm:"column:last_ip"`
	Notes      *string    `gorm:"column:notes"`
}

func (deviceModel) TableName() string { return "devices" }

type doorLogModel struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	MemberID  int64     `gorm:"column:member_id"`
	Area      string    `gorm:"column:area"`
	Action    string    `gorm:"column:action"`
	Result    string    `gorm:"column:result"`
	IPAddress *string   `gorm:"column:ip_address"`
	UserAgent *string   `gorm:"column:user_agent"`
	Message   *string   `gorm:"column:message"`
	Context   *string   `gorm:"column:context;type:jsonb"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (doorLogModel) TableName() string { return "door_logs" }
