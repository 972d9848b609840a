package models

import "github.com/garnizeh/opphub/pkg/docstore"

// Document collections. Timestamps are unix milliseconds; 0 means absent.
const (
	CollOpportunities = "opportunities"
	CollApplications  = "applications"
	CollUsers         = "users"
	CollCategories    = "categories"
	CollUserLogs      = "userLogs"
	CollContacts      = "contacts"
	CollAccounts      = "accounts"
)

// SavedCollection is the per-user saved marks collection.
func SavedCollection(uid string) string {
	return docstore.Sub(CollUsers, uid, "saved")
}

// NotificationsCollection is the per-user notifications collection.
func NotificationsCollection(uid string) string {
	return docstore.Sub(CollUsers, uid, "notifications")
}

const (
	StatusActive          = "active"
	StatusInactive        = "inactive"
	StatusPendingApproval = "pending-approval"

	TypeJob        = "job"
	TypeInternship = "internship"
	TypeTraining   = "training"
	TypeEvent      = "event"

	ApplicationPending  = "pending"
	ApplicationAccepted = "accepted"
	ApplicationRejected = "rejected"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Opportunity struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Type             string `json:"type"`
	Category         string `json:"category"`
	Company          string `json:"company,omitempty"`
	Location         string `json:"location,omitempty"`
	Description      string `json:"description"`
	Requirements     string `json:"requirements,omitempty"`
	Benefits         string `json:"benefits,omitempty"`
	Salary           string `json:"salary,omitempty"`
	Link             string `json:"link,omitempty"`
	Deadline         string `json:"deadline,omitempty"`
	Status           string `json:"status,omitempty"`
	Summary          string `json:"summary,omitempty"`
	RequiresApproval bool   `json:"requiresApproval,omitempty"`
	CreatedAt        int64  `json:"createdAt,omitempty"`
	CreatedBy        string `json:"createdBy,omitempty"`
	CreatedByName    string `json:"createdByName,omitempty"`
	UpdatedAt        int64  `json:"updatedAt,omitempty"`
	UpdatedBy        string `json:"updatedBy,omitempty"`
	UpdatedByName    string `json:"updatedByName,omitempty"`
	ApprovedAt       int64  `json:"approvedAt,omitempty"`
	ApprovedBy       string `json:"approvedBy,omitempty"`
	ApprovedByName   string `json:"approvedByName,omitempty"`
}

// IsActive treats a record without a status as active.
func (o Opportunity) IsActive() bool {
	return o.Status == "" || o.Status == StatusActive
}

type Application struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	OpportunityID string `json:"opportunityId"`
	Status        string `json:"status"`
	AppliedAt     int64  `json:"appliedAt,omitempty"`
	UserEmail     string `json:"userEmail,omitempty"`
	UserName      string `json:"userName,omitempty"`
}

// ApplicationID is the deterministic id of a user's application.
func ApplicationID(uid, opportunityID string) string {
	return uid + "_" + opportunityID
}

type SavedMark struct {
	OpportunityID string `json:"opportunityId"`
	SavedAt       int64  `json:"savedAt,omitempty"`
}

type Notification struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	Read          bool   `json:"read"`
	Kind          string `json:"kind,omitempty"`
	OpportunityID string `json:"opportunityId,omitempty"`
	CreatedAt     int64  `json:"createdAt,omitempty"`
}

type UserProfile struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Role            string   `json:"role"`
	Phone           string   `json:"phone,omitempty"`
	Skills          []string `json:"skills"`
	Bio             string   `json:"bio,omitempty"`
	ProfileComplete bool     `json:"profileComplete"`
	CreatedAt       int64    `json:"createdAt,omitempty"`
	UpdatedAt       int64    `json:"updatedAt,omitempty"`
}

func (p UserProfile) IsAdmin() bool { return p.Role == RoleAdmin }

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BuiltIn     bool   `json:"builtIn,omitempty"`
	CreatedAt   int64  `json:"createdAt,omitempty"`
	CreatedBy   string `json:"createdBy,omitempty"`
	UpdatedAt   int64  `json:"updatedAt,omitempty"`
}

type UserLogEntry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	UserName  string         `json:"userName"`
	UserEmail string         `json:"userEmail"`
	Action    string         `json:"action"`
	Details   string         `json:"details"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

type ContactMessage struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
}

// Account holds sign-in credentials keyed by normalized email; it is never
// returned to clients.
type Account struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    int64  `json:"createdAt"`
}
