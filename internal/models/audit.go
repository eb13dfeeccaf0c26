package models

import "time"

// Audit action types. These are stored verbatim in the audit_log table.
const (
	ActionRegistration = "registration"
	ActionLogin        = "login"
	ActionLogout       = "logout"
	ActionAdd          = "add"
	ActionEdit         = "edit"
	ActionDelete       = "delete"
	ActionViewList     = "view_list"
	ActionEnable2FA    = "enable_2fa"
	ActionDisable2FA   = "disable_2fa"
)

type AuditLogEntry struct {
	ID         int       `json:"id"`
	UserID     int       `json:"user_id"`
	ActionType string    `json:"action_type"`
	RecordID   *int      `json:"record_id,omitempty"`
	ActionTime time.Time `json:"action_time"`
}
