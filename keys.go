package marketstore

import (
	"fmt"
	"strings"
	"time"
)

// Key segment prefixes. Every physical key string in the table is built
// from these; handlers never concatenate key strings themselves.
const (
	prefixUser         = "USER#"
	prefixStartup      = "STARTUP#"
	prefixRole         = "ROLE#"
	prefixApplication  = "APPLICATION#"
	prefixAccess       = "ACCESS#"
	prefixConversation = "CONVERSATION#"
	prefixParticipant  = "PARTICIPANT#"
	prefixMessage      = "MESSAGE#"
	prefixNotification = "NOTIFICATION#"
	prefixAudit        = "AUDIT#"
	prefixApplicant    = "APPLICANT#"
	prefixFounder      = "FOUNDER#"
	prefixRequester    = "REQUESTER#"
	prefixStatus       = "STATUS#"
	prefixVisibility   = "VISIBILITY#"
	prefixSubStatus    = "SUBSCRIPTION_STATUS#"

	sortProfile      = "PROFILE"
	sortMetadata     = "METADATA"
	sortSubscription = "SUBSCRIPTION"

	openRolesPartition = "OPEN_ROLES"
	auditDayFormat     = "2006-01-02"
)

// Sort-key prefixes for range queries within a partition.
const (
	SortPrefixRole         = prefixRole
	SortPrefixMessage      = prefixMessage
	SortPrefixNotification = prefixNotification
	SortPrefixConversation = prefixConversation
	SortPrefixAudit        = prefixAudit
)

// Primary keys.

// UserKey returns the key of a user profile item.
func UserKey(userID string) Key { return Key{prefixUser + userID, sortProfile} }

// StartupKey returns the key of a startup metadata item.
func StartupKey(startupID string) Key { return Key{prefixStartup + startupID, sortMetadata} }

// RoleKey returns the key of a role item, stored in its startup's partition.
func RoleKey(startupID, roleID string) Key {
	return Key{prefixStartup + startupID, prefixRole + roleID}
}

// ApplicationKey returns the key of an application metadata item.
func ApplicationKey(applicationID string) Key {
	return Key{prefixApplication + applicationID, sortMetadata}
}

// AccessRequestKey returns the key of an access request metadata item.
func AccessRequestKey(accessID string) Key { return Key{prefixAccess + accessID, sortMetadata} }

// ConversationKey returns the key of the authoritative conversation record.
func ConversationKey(conversationID string) Key {
	return Key{prefixConversation + conversationID, sortMetadata}
}

// ParticipantConversationKey returns the key of a participant's fan-out
// copy of a conversation. The creation timestamp is embedded in the sort
// key so a participant's conversations order chronologically.
func ParticipantConversationKey(userID string, createdAt time.Time, conversationID string) Key {
	return Key{
		Partition: prefixParticipant + userID,
		Sort:      prefixConversation + FormatTime(createdAt) + "#" + conversationID,
	}
}

// MessageKey returns the key of a message, stored in its conversation's partition.
func MessageKey(conversationID, messageID string) Key {
	return Key{prefixConversation + conversationID, prefixMessage + messageID}
}

// SubscriptionKey returns the key of a user's subscription item.
func SubscriptionKey(userID string) Key { return Key{prefixUser + userID, sortSubscription} }

// NotificationKey returns the key of a notification, stored in the
// recipient's partition.
func NotificationKey(userID, notificationID string) Key {
	return Key{prefixUser + userID, prefixNotification + notificationID}
}

// AuditLogKey returns the key of an audit entry. Entries are partitioned
// by calendar day and ordered by timestamp within the day.
func AuditLogKey(createdAt time.Time, auditID string) Key {
	return Key{
		Partition: prefixAudit + createdAt.UTC().Format(auditDayFormat),
		Sort:      FormatTime(createdAt) + "#" + auditID,
	}
}

// Query partition values. These name the partitions used by list
// operations, on the main table and on the secondary indexes.

// ParticipantPartition is the main-table partition holding a user's
// conversation fan-out copies.
func ParticipantPartition(userID string) string { return prefixParticipant + userID }

// FounderPartition is the IndexGeneric1 partition listing a founder's startups.
func FounderPartition(userID string) string { return prefixFounder + userID }

// ApplicantPartition is the IndexGeneric1 partition listing a user's applications.
func ApplicantPartition(userID string) string { return prefixApplicant + userID }

// RequesterPartition is the IndexGeneric1 partition listing a user's access requests.
func RequesterPartition(userID string) string { return prefixRequester + userID }

// UserRolePartition is the IndexGeneric1 partition listing users by role.
func UserRolePartition(role string) string { return prefixRole + role }

// UserStatusPartition is the IndexGeneric2 partition listing users by status.
func UserStatusPartition(status string) string { return prefixStatus + status }

// DiscoveryPartition is the IndexGeneric2 partition listing startups by
// visibility and status. The two attributes are concatenated into one key
// so "query by status" is a prefix query over a compound value.
func DiscoveryPartition(visibility, status string) string {
	return prefixVisibility + visibility + "#" + prefixStatus + status
}

// OpenRolesPartition is the IndexGeneric1 partition holding the open-roles feed.
func OpenRolesPartition() string { return openRolesPartition }

// RoleApplicationsPartition is the IndexGeneric2 partition listing a role's
// applications.
func RoleApplicationsPartition(startupID, roleID string) string {
	return prefixStartup + startupID + "#" + prefixRole + roleID
}

// StatusSortPrefix narrows a status-ordered index partition to one status,
// e.g. a role's applications or a founder's access queue.
func StatusSortPrefix(status string) string { return prefixStatus + status }

// SubscriptionStatusPartition is the IndexGeneric2 partition listing
// subscriptions by billing status.
func SubscriptionStatusPartition(status string) string { return prefixSubStatus + status }

// AuditDayPartition is the main-table partition holding one day of audit entries.
func AuditDayPartition(day time.Time) string {
	return prefixAudit + day.UTC().Format(auditDayFormat)
}

// ActorPartition is the IndexGeneric1 partition listing audit entries by actor.
func ActorPartition(userID string) string { return prefixUser + userID }

// Secondary-index key projections. Builders return nil when the driving
// attribute is unset, which keeps the index sparse.

// UserRoleIndexKey projects a user onto IndexGeneric1 for role listings.
func UserRoleIndexKey(role, userID string) *IndexKey {
	if role == "" {
		return nil
	}
	return &IndexKey{Partition: prefixRole + role, Sort: prefixUser + userID}
}

// UserStatusIndexKey projects a user onto IndexGeneric2 for status listings.
func UserStatusIndexKey(status, userID string) *IndexKey {
	if status == "" {
		return nil
	}
	return &IndexKey{Partition: prefixStatus + status, Sort: prefixUser + userID}
}

// StartupFounderIndexKey projects a startup onto IndexGeneric1 under its founder.
func StartupFounderIndexKey(founderID, startupID string) *IndexKey {
	if founderID == "" {
		return nil
	}
	return &IndexKey{Partition: prefixFounder + founderID, Sort: prefixStartup + startupID}
}

// StartupDiscoveryIndexKey projects a startup onto IndexGeneric2 under its
// compound visibility+status partition.
func StartupDiscoveryIndexKey(visibility, status, startupID string) *IndexKey {
	if visibility == "" || status == "" {
		return nil
	}
	return &IndexKey{Partition: DiscoveryPartition(visibility, status), Sort: prefixStartup + startupID}
}

// OpenRoleIndexKey projects an open role onto the IndexGeneric1 feed.
// Closed roles return nil and drop out of the feed entirely.
func OpenRoleIndexKey(isOpen bool, createdAt time.Time, roleID string) *IndexKey {
	if !isOpen {
		return nil
	}
	return &IndexKey{Partition: openRolesPartition, Sort: FormatTime(createdAt) + "#" + roleID}
}

// ApplicationApplicantIndexKey projects an application onto IndexGeneric1
// under its applicant.
func ApplicationApplicantIndexKey(applicantID, applicationID string) *IndexKey {
	if applicantID == "" {
		return nil
	}
	return &IndexKey{Partition: prefixApplicant + applicantID, Sort: prefixApplication + applicationID}
}

// ApplicationStatusIndexKey projects an application onto IndexGeneric2
// under its role, ordered by status then submission time. Status changes
// must rewrite this key in the same update that changes the attribute.
func ApplicationStatusIndexKey(startupID, roleID, status string, createdAt time.Time) *IndexKey {
	if status == "" {
		return nil
	}
	return &IndexKey{
		Partition: RoleApplicationsPartition(startupID, roleID),
		Sort:      prefixStatus + status + "#" + FormatTime(createdAt),
	}
}

// AccessRequesterIndexKey projects an access request onto IndexGeneric1
// under its requester.
func AccessRequesterIndexKey(requesterID, accessID string) *IndexKey {
	if requesterID == "" {
		return nil
	}
	return &IndexKey{Partition: prefixRequester + requesterID, Sort: prefixAccess + accessID}
}

// AccessFounderIndexKey projects an access request onto IndexGeneric2
// under the founder who has to resolve it.
func AccessFounderIndexKey(founderID, status string, createdAt time.Time) *IndexKey {
	if founderID == "" || status == "" {
		return nil
	}
	return &IndexKey{
		Partition: prefixFounder + founderID,
		Sort:      prefixStatus + status + "#" + FormatTime(createdAt),
	}
}

// SubscriptionStatusIndexKey projects a subscription onto IndexGeneric2
// under its billing status, one user per sort key. Status changes must
// rewrite this key in the same update that changes the attribute.
func SubscriptionStatusIndexKey(status, userID string) *IndexKey {
	if status == "" {
		return nil
	}
	return &IndexKey{Partition: prefixSubStatus + status, Sort: prefixUser + userID}
}

// ConversationFanOutIndexKey mirrors a fan-out copy's primary key onto
// IndexGeneric1 so a participant's conversations can be listed newest-first.
func ConversationFanOutIndexKey(userID string, createdAt time.Time, conversationID string) *IndexKey {
	key := ParticipantConversationKey(userID, createdAt, conversationID)
	return &IndexKey{Partition: key.Partition, Sort: key.Sort}
}

// AuditActorIndexKey projects an audit entry onto IndexGeneric1 under the
// acting user. System entries with no actor stay out of the index.
func AuditActorIndexKey(userID string, createdAt time.Time) *IndexKey {
	if userID == "" {
		return nil
	}
	return &IndexKey{Partition: prefixUser + userID, Sort: prefixAudit + FormatTime(createdAt)}
}

// ParsePartitionKey inverts a partition key string back into the entity
// kind that owns the key space and the embedded identifier. Fan-out
// partitions (PARTICIPANT#...) resolve to KindConversation since their
// items are conversation projections. Intended for diagnostics and log
// enrichment, not production code paths.
func ParsePartitionKey(partition string) (Kind, string, error) {
	prefix, id, ok := strings.Cut(partition, "#")
	if !ok || id == "" {
		return "", "", fmt.Errorf("unrecognized partition key %q", partition)
	}
	switch prefix + "#" {
	case prefixUser:
		return KindUser, id, nil
	case prefixStartup:
		return KindStartup, id, nil
	case prefixApplication:
		return KindApplication, id, nil
	case prefixAccess:
		return KindAccessRequest, id, nil
	case prefixConversation, prefixParticipant:
		return KindConversation, id, nil
	case prefixAudit:
		return KindAuditLog, id, nil
	}
	return "", "", fmt.Errorf("unrecognized partition key %q", partition)
}
