package models

import "time"

// Audit actions recorded for mutating family operations.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionFamilySwitch   = "FAMILY_SWITCH"
	AuditActionMessageSend    = "MESSAGE_SEND"
	AuditActionTaskCreate     = "TASK_CREATE"
	AuditActionTaskComplete   = "TASK_COMPLETE"
	AuditActionTaskDelete     = "TASK_DELETE"
	AuditActionRewardCreate   = "REWARD_CREATE"
	AuditActionRewardRedeem   = "REWARD_REDEEM"
	AuditActionRewardDelete   = "REWARD_DELETE"
	AuditActionEmergencyAlert = "EMERGENCY_ALERT"
	AuditActionStatementMake  = "STATEMENT_EXPORT"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID           string    `db:"id" json:"id"`
	UserID       *string   `db:"user_id" json:"user_id,omitempty"`
	FamilyUnitID *string   `db:"family_unit_id" json:"family_unit_id,omitempty"`
	Action       string    `db:"action" json:"action"`
	Resource     string    `db:"resource" json:"resource"`
	ResourceID   *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues    []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress    string    `db:"ip_address" json:"ip_address"`
	UserAgent    string    `db:"user_agent" json:"user_agent"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
