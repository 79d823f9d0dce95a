package marketplace

import (
	"errors"
	"time"
)

// Service-level errors. Storage failures from the access layer pass
// through untranslated, so callers can also match the marketstore
// sentinels.
var (
	// ErrNotFound reports that a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotParticipant reports a messaging operation by a user who is
	// not in the conversation.
	ErrNotParticipant = errors.New("user is not a conversation participant")

	// ErrRoleClosed reports an application against a role no longer
	// accepting applicants.
	ErrRoleClosed = errors.New("role is closed")

	// ErrStartupInactive reports an operation that requires an active
	// startup.
	ErrStartupInactive = errors.New("startup is not active")
)

// UserRole is a user's marketplace persona.
type UserRole string

const (
	RoleFounder  UserRole = "FOUNDER"
	RoleTalent   UserRole = "TALENT"
	RoleInvestor UserRole = "INVESTOR"
	RoleAdmin    UserRole = "ADMIN"
)

// UserStatus is a user's account state.
type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
	UserDeleted   UserStatus = "DELETED"
)

// User is a marketplace member profile.
type User struct {
	UserID    string     `dynamodbav:"userId"`
	Email     string     `dynamodbav:"email"`
	Role      UserRole   `dynamodbav:"role"`
	Status    UserStatus `dynamodbav:"status"`
	Name      string     `dynamodbav:"name"`
	Bio       string     `dynamodbav:"bio,omitempty"`
	Location  string     `dynamodbav:"location,omitempty"`
	Skills    []string   `dynamodbav:"skills,omitempty"`
	LinkedIn  string     `dynamodbav:"linkedinUrl,omitempty"`
	CreatedAt time.Time  `dynamodbav:"-"`
	UpdatedAt time.Time  `dynamodbav:"-"`
}

// Visibility controls who can discover a startup.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// StartupStatus is a startup's moderation state.
type StartupStatus string

const (
	StartupPendingReview StartupStatus = "PENDING_REVIEW"
	StartupActive        StartupStatus = "ACTIVE"
	StartupRejected      StartupStatus = "REJECTED"
	StartupSuspended     StartupStatus = "SUSPENDED"
)

// Startup is a company listing owned by a founder.
type Startup struct {
	StartupID   string        `dynamodbav:"startupId"`
	FounderID   string        `dynamodbav:"founderId"`
	Name        string        `dynamodbav:"name"`
	Description string        `dynamodbav:"description,omitempty"`
	Industry    string        `dynamodbav:"industry,omitempty"`
	Stage       string        `dynamodbav:"stage,omitempty"`
	Visibility  Visibility    `dynamodbav:"visibility"`
	Status      StartupStatus `dynamodbav:"status"`
	CreatedAt   time.Time     `dynamodbav:"-"`
	UpdatedAt   time.Time     `dynamodbav:"-"`
}

// StartupRole is a position a startup is hiring for. ApplicantCount is an
// advisory counter maintained alongside application writes; it can drift
// from the true count and must not be used for enforcement.
type StartupRole struct {
	StartupID      string    `dynamodbav:"startupId"`
	RoleID         string    `dynamodbav:"roleId"`
	Title          string    `dynamodbav:"title"`
	Description    string    `dynamodbav:"description,omitempty"`
	Skills         []string  `dynamodbav:"skills,omitempty"`
	Commitment     string    `dynamodbav:"commitment,omitempty"`
	IsOpen         bool      `dynamodbav:"isOpen"`
	ApplicantCount int       `dynamodbav:"applicantCount"`
	CreatedAt      time.Time `dynamodbav:"-"`
	UpdatedAt      time.Time `dynamodbav:"-"`
}

// ApplicationStatus tracks an application through review.
type ApplicationStatus string

const (
	ApplicationSubmitted ApplicationStatus = "SUBMITTED"
	ApplicationInReview  ApplicationStatus = "IN_REVIEW"
	ApplicationAccepted  ApplicationStatus = "ACCEPTED"
	ApplicationRejected  ApplicationStatus = "REJECTED"
	ApplicationWithdrawn ApplicationStatus = "WITHDRAWN"
)

// Application is a talent user's application to a startup role.
type Application struct {
	ApplicationID string            `dynamodbav:"applicationId"`
	ApplicantID   string            `dynamodbav:"applicantId"`
	StartupID     string            `dynamodbav:"startupId"`
	RoleID        string            `dynamodbav:"roleId"`
	Status        ApplicationStatus `dynamodbav:"status"`
	CoverNote     string            `dynamodbav:"coverNote,omitempty"`
	CreatedAt     time.Time         `dynamodbav:"-"`
	UpdatedAt     time.Time         `dynamodbav:"-"`
}

// AccessStatus tracks an investor access request.
type AccessStatus string

const (
	AccessPending  AccessStatus = "PENDING"
	AccessApproved AccessStatus = "APPROVED"
	AccessDenied   AccessStatus = "DENIED"
)

// AccessRequest is an investor's request to view a private startup. The
// founder who owns the startup resolves it.
type AccessRequest struct {
	AccessID    string       `dynamodbav:"accessId"`
	RequesterID string       `dynamodbav:"requesterId"`
	StartupID   string       `dynamodbav:"startupId"`
	FounderID   string       `dynamodbav:"founderId"`
	Status      AccessStatus `dynamodbav:"status"`
	Message     string       `dynamodbav:"message,omitempty"`
	CreatedAt   time.Time    `dynamodbav:"-"`
	UpdatedAt   time.Time    `dynamodbav:"-"`
}

// Conversation is a message thread. The authoritative record lives in the
// conversation's own partition; each participant also holds a fan-out
// copy carrying the preview fields, so listing a user's inbox is one
// partition read.
type Conversation struct {
	ConversationID     string    `dynamodbav:"conversationId"`
	Participants       []string  `dynamodbav:"participants"`
	CreatedBy          string    `dynamodbav:"createdBy"`
	LastMessagePreview string    `dynamodbav:"lastMessagePreview,omitempty"`
	LastMessageAt      time.Time `dynamodbav:"lastMessageAt,unixtime,omitempty"`
	CreatedAt          time.Time `dynamodbav:"-"`
	UpdatedAt          time.Time `dynamodbav:"-"`
}

// Message is one message within a conversation. ReadBy lists the user IDs
// that have read it, always including the sender.
type Message struct {
	MessageID      string    `dynamodbav:"messageId"`
	ConversationID string    `dynamodbav:"conversationId"`
	SenderID       string    `dynamodbav:"senderId"`
	Body           string    `dynamodbav:"body"`
	ReadBy         []string  `dynamodbav:"readBy"`
	CreatedAt      time.Time `dynamodbav:"-"`
	UpdatedAt      time.Time `dynamodbav:"-"`
}

// SubscriptionTier is a billing plan.
type SubscriptionTier string

const (
	TierFree SubscriptionTier = "FREE"
	TierPro  SubscriptionTier = "PRO"
)

// SubscriptionStatus is the billing state of a subscription, projected
// onto the status index for admin counting.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

// Subscription is a user's billing record, stored beside the profile in
// the user's partition. The tier is also mirrored onto the profile item
// in a separate, non-atomic write.
type Subscription struct {
	UserID    string           `dynamodbav:"userId"`
	Tier      SubscriptionTier `dynamodbav:"tier"`
	Active    bool             `dynamodbav:"active"`
	RenewsAt  time.Time        `dynamodbav:"renewsAt,unixtime,omitempty"`
	CreatedAt time.Time        `dynamodbav:"-"`
	UpdatedAt time.Time        `dynamodbav:"-"`
}

// Notification is an in-app notification delivered to one user.
type Notification struct {
	NotificationID string    `dynamodbav:"notificationId"`
	UserID         string    `dynamodbav:"userId"`
	Type           string    `dynamodbav:"type"`
	Message        string    `dynamodbav:"message"`
	ReferenceID    string    `dynamodbav:"referenceId,omitempty"`
	IsRead         bool      `dynamodbav:"isRead"`
	CreatedAt      time.Time `dynamodbav:"-"`
	UpdatedAt      time.Time `dynamodbav:"-"`
}

// AuditEntry records one mutating action, partitioned by calendar day.
type AuditEntry struct {
	AuditID   string    `dynamodbav:"auditId"`
	ActorID   string    `dynamodbav:"actorId,omitempty"`
	Action    string    `dynamodbav:"action"`
	TargetID  string    `dynamodbav:"targetId,omitempty"`
	Detail    string    `dynamodbav:"detail,omitempty"`
	CreatedAt time.Time `dynamodbav:"-"`
	UpdatedAt time.Time `dynamodbav:"-"`
}

// Page carries one page of results plus the cursor for the next page. An
// empty Cursor means the listing is exhausted.
type Page[T any] struct {
	Items  []T
	Cursor string
}
