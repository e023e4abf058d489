// ABOUTME: Audit log entity and store methods for account and access events
// ABOUTME: Append-only side channel recording who did what, from where

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable action.
type AuditAction string

const (
	AuditSignup           AuditAction = "signup"
	AuditLogin            AuditAction = "login"
	AuditLoginFailed      AuditAction = "login_failed"
	AuditLogout           AuditAction = "logout"
	AuditEmailVerified    AuditAction = "email_verified"
	AuditAPIKeyRotated    AuditAction = "api_key_rotated"
	AuditPasswordChanged  AuditAction = "password_changed"
	AuditUsageReset       AuditAction = "usage_reset"
	AuditTierChanged      AuditAction = "tier_changed"
	AuditSubscriptionSync AuditAction = "subscription_updated"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string         // UUID v4
	Timestamp    time.Time      // when it happened
	UserID       string         // subject user, empty for anonymous events
	Action       AuditAction    // what happened
	ResourceType string         // "user", "session", "usage", ...
	ResourceID   string         // ID of the affected resource
	Detail       map[string]any // additional context
	IPAddress    string         // client address, if known
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since  *time.Time   // entries after this time
	UserID *string      // filter by subject user
	Action *AuditAction // filter by action type
	Limit  int          // max results (default 100, max 1000)
}

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var detailJSON *string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	query := `
		INSERT INTO audit_log (audit_id, ts, user_id, action, resource_type, resource_id, detail_json, ip_address)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		formatTime(e.Timestamp),
		nullString(e.UserID),
		string(e.Action),
		nullString(e.ResourceType),
		nullString(e.ResourceID),
		detailJSON,
		nullString(e.IPAddress),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"user_id", e.UserID,
		"action", e.Action,
	)
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const auditLogQuery = `
	SELECT audit_id, ts, user_id, action, resource_type, resource_id, detail_json, ip_address
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR user_id = ?)
	  AND (? IS NULL OR action = ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListAuditLog returns audit entries matching the filter, newest first.
// Used by operators; nothing in the request path reads the audit log.
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	var sinceStr, actionStr *string
	if f.Since != nil {
		v := formatTime(*f.Since)
		sinceStr = &v
	}
	if f.Action != nil {
		v := string(*f.Action)
		actionStr = &v
	}

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		sinceStr, sinceStr,
		f.UserID, f.UserID,
		actionStr, actionStr,
		normalizeAuditLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []AuditEntry{}
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// scanAuditEntry scans a row into an AuditEntry.
func scanAuditEntry(scanner interface{ Scan(dest ...any) error }) (AuditEntry, error) {
	var e AuditEntry
	var actionStr, tsStr string
	var userID, resourceType, resourceID, detailJSON, ipAddress sql.NullString

	if err := scanner.Scan(
		&e.ID,
		&tsStr,
		&userID,
		&actionStr,
		&resourceType,
		&resourceID,
		&detailJSON,
		&ipAddress,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Action = AuditAction(actionStr)
	e.UserID = userID.String
	e.ResourceType = resourceType.String
	e.ResourceID = resourceID.String
	e.IPAddress = ipAddress.String

	var err error
	if e.Timestamp, err = parseTime(tsStr); err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}

	if detailJSON.Valid {
		if err := json.Unmarshal([]byte(detailJSON.String), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return e, nil
}
