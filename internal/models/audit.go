package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// ActionType classifies what kind of action a record describes.
type ActionType string

const (
	ActionCreate            ActionType = "CREATE"
	ActionRead              ActionType = "READ"
	ActionUpdate            ActionType = "UPDATE"
	ActionDelete            ActionType = "DELETE"
	ActionLogin             ActionType = "LOGIN"
	ActionLogout            ActionType = "LOGOUT"
	ActionPasswordChange    ActionType = "PASSWORD_CHANGE"
	ActionRoleChange        ActionType = "ROLE_CHANGE"
	ActionAccountActivate   ActionType = "ACCOUNT_ACTIVATE"
	ActionAccountDeactivate ActionType = "ACCOUNT_DEACTIVATE"
	ActionPolicyPublish     ActionType = "POLICY_PUBLISH"
	ActionPolicyArchive     ActionType = "POLICY_ARCHIVE"
	ActionPolicyAcknowledge ActionType = "POLICY_ACKNOWLEDGE"
	ActionFileUpload        ActionType = "FILE_UPLOAD"
	ActionFileDownload      ActionType = "FILE_DOWNLOAD"
	ActionBulkOperation     ActionType = "BULK_OPERATION"
	ActionSystemConfig      ActionType = "SYSTEM_CONFIG"
	ActionDataExport        ActionType = "DATA_EXPORT"
	ActionDataImport        ActionType = "DATA_IMPORT"
)

var actionTypes = map[ActionType]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionUpdate: {}, ActionDelete: {},
	ActionLogin: {}, ActionLogout: {}, ActionPasswordChange: {}, ActionRoleChange: {},
	ActionAccountActivate: {}, ActionAccountDeactivate: {}, ActionPolicyPublish: {},
	ActionPolicyArchive: {}, ActionPolicyAcknowledge: {}, ActionFileUpload: {},
	ActionFileDownload: {}, ActionBulkOperation: {}, ActionSystemConfig: {},
	ActionDataExport: {}, ActionDataImport: {},
}

// Valid reports whether the value is a known action type.
func (a ActionType) Valid() bool {
	_, ok := actionTypes[a]
	return ok
}

// ResourceType names the kind of entity an action touched.
type ResourceType string

const (
	ResourceUser    ResourceType = "USER"
	ResourcePolicy  ResourceType = "POLICY"
	ResourceProject ResourceType = "PROJECT"
	ResourceTask    ResourceType = "TASK"
	ResourceSystem  ResourceType = "SYSTEM"
	ResourceFile    ResourceType = "FILE"
	ResourceRole    ResourceType = "ROLE"
)

// Valid reports whether the value is a known resource type.
func (r ResourceType) Valid() bool {
	switch r {
	case ResourceUser, ResourcePolicy, ResourceProject, ResourceTask, ResourceSystem, ResourceFile, ResourceRole:
		return true
	}
	return false
}

// Severity is the coarse risk classification fixed at record creation.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether the value is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AuditStatus describes the outcome of the audited action.
type AuditStatus string

const (
	StatusSuccess AuditStatus = "SUCCESS"
	StatusFailed  AuditStatus = "FAILED"
	StatusWarning AuditStatus = "WARNING"
)

// Valid reports whether the value is a known status.
func (s AuditStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusWarning:
		return true
	}
	return false
}

// AuditMetadata captures the request context an action occurred in.
type AuditMetadata struct {
	IPAddress       string `db:"ip_address" json:"ip_address"`
	UserAgent       string `db:"user_agent" json:"user_agent"`
	Method          string `db:"method" json:"method"`
	Endpoint        string `db:"endpoint" json:"endpoint"`
	ResponseStatus  int    `db:"response_status" json:"response_status"`
	ExecutionTimeMs int64  `db:"execution_time_ms" json:"execution_time_ms"`
	SessionID       string `db:"session_id" json:"session_id,omitempty"`
}

// AuditRecord is an immutable, append-only entry in the compliance trail.
// ActorID is nil only for rejected pre-authentication attempts.
type AuditRecord struct {
	ID            string          `db:"id" json:"id"`
	ActorID       *string         `db:"actor_id" json:"actor_id,omitempty"`
	ActorEmail    *string         `db:"actor_email" json:"actor_email,omitempty"`
	Action        string          `db:"action" json:"action"`
	ActionType    ActionType      `db:"action_type" json:"action_type"`
	Resource      ResourceType    `db:"resource" json:"resource"`
	ResourceID    *string         `db:"resource_id" json:"resource_id,omitempty"`
	Details       string          `db:"details" json:"details,omitempty"`
	ChangesBefore json.RawMessage `db:"changes_before" json:"changes_before,omitempty"`
	ChangesAfter  json.RawMessage `db:"changes_after" json:"changes_after,omitempty"`
	Metadata      AuditMetadata   `db:"metadata" json:"metadata"`
	Severity      Severity        `db:"severity" json:"severity"`
	Status        AuditStatus     `db:"status" json:"status"`
	Tags          pq.StringArray  `db:"tags" json:"tags,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// AuditFilter captures filtering criteria for listing audit records.
// All fields are optional and AND-combined; date bounds are inclusive.
type AuditFilter struct {
	ActorID    string
	ActionType *ActionType
	Resource   *ResourceType
	Severity   *Severity
	Status     *AuditStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalCount int `json:"total_count"`
}

// CountByKey is one bucket of a grouped count.
type CountByKey struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

// DailyCount is one UTC calendar-day bucket of the trend series.
type DailyCount struct {
	Day   time.Time `db:"day" json:"day"`
	Count int       `db:"count" json:"count"`
}

// ActorActivity is a top-actor row with resolved identity.
type ActorActivity struct {
	ActorID  string `db:"actor_id" json:"actor_id"`
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name"`
	Count    int    `db:"count" json:"count"`
}

// AuditStats aggregates trail activity over a period.
type AuditStats struct {
	Period      string          `json:"period"`
	Total       int             `json:"total"`
	ByAction    []CountByKey    `json:"by_action"`
	ByResource  []CountByKey    `json:"by_resource"`
	BySeverity  []CountByKey    `json:"by_severity"`
	DailyTrend  []DailyCount    `json:"daily_trend"`
	TopActors   []ActorActivity `json:"top_actors"`
	SuccessRate float64         `json:"success_rate"`
	GeneratedAt time.Time       `json:"generated_at"`
}
