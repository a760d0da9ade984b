package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and avoids
	// SQLITE_BUSY under concurrent writers; SQLite serializes writes
	// anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS client_profiles (
			id TEXT PRIMARY KEY,
			business_name TEXT NOT NULL,
			business_description TEXT,
			phone_number TEXT,
			business_hours TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS websites (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (client_id) REFERENCES client_profiles(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_websites_client ON websites(client_id)`,
		`CREATE TABLE IF NOT EXISTS website_content (
			id TEXT PRIMARY KEY,
			website_id TEXT NOT NULL,
			section TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'json',
			content TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			is_published INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (website_id, section),
			FOREIGN KEY (website_id) REFERENCES websites(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_website ON website_content(website_id)`,
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			website_id TEXT,
			title TEXT NOT NULL,
			context TEXT,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (client_id) REFERENCES client_profiles(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_client ON chat_sessions(client_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			token_count INTEGER,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES chat_sessions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS change_requests (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			website_id TEXT NOT NULL,
			request_type TEXT NOT NULL,
			section TEXT,
			description TEXT NOT NULL,
			old_content TEXT,
			new_content TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			priority TEXT NOT NULL DEFAULT 'medium',
			auto_approvable INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (client_id) REFERENCES client_profiles(id),
			FOREIGN KEY (website_id) REFERENCES websites(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_website ON change_requests(website_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_status ON change_requests(status)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintErr reports whether err is a SQLite constraint violation.
func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// CreateClientProfile creates a new client profile.
func (s *SQLiteStore) CreateClientProfile(ctx context.Context, profile *domain.ClientProfile) error {
	var hours sql.NullString
	if profile.BusinessHours != nil {
		hours = sql.NullString{String: string(profile.BusinessHours), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_profiles (id, business_name, business_description, phone_number, business_hours, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		profile.ID, profile.BusinessName, profile.BusinessDescription, profile.PhoneNumber, hours, profile.CreatedAt)
	return err
}

// GetClientProfile retrieves a client profile by ID.
func (s *SQLiteStore) GetClientProfile(ctx context.Context, clientID string) (*domain.ClientProfile, error) {
	var profile domain.ClientProfile
	var description, phone, hours sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, business_name, business_description, phone_number, business_hours, created_at
		 FROM client_profiles WHERE id = ?`,
		clientID).Scan(&profile.ID, &profile.BusinessName, &description, &phone, &hours, &profile.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	profile.BusinessDescription = description.String
	profile.PhoneNumber = phone.String
	if hours.Valid {
		profile.BusinessHours = json.RawMessage(hours.String)
	}
	return &profile, nil
}

// CreateWebsite creates a new website.
func (s *SQLiteStore) CreateWebsite(ctx context.Context, website *domain.Website) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO websites (id, client_id, title, url, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		website.ID, website.ClientID, website.Title, website.URL, website.Status, website.CreatedAt)
	return err
}

// GetWebsite retrieves a website by ID.
func (s *SQLiteStore) GetWebsite(ctx context.Context, websiteID string) (*domain.Website, error) {
	var website domain.Website
	var url sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, title, url, status, created_at FROM websites WHERE id = ?`,
		websiteID).Scan(&website.ID, &website.ClientID, &website.Title, &url, &website.Status, &website.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	website.URL = url.String
	return &website, nil
}

// CreateSession creates a new chat session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	var websiteID, sessionCtx sql.NullString
	if session.WebsiteID != "" {
		websiteID = sql.NullString{String: session.WebsiteID, Valid: true}
	}
	if session.Context != nil {
		sessionCtx = sql.NullString{String: string(session.Context), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, client_id, website_id, title, context, total_tokens, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.ClientID, websiteID, session.Title, sessionCtx, session.TotalTokens, session.Status, session.CreatedAt)
	return err
}

// GetSession retrieves a chat session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	var session domain.ChatSession
	var websiteID, sessionCtx sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, website_id, title, context, total_tokens, status, created_at
		 FROM chat_sessions WHERE id = ?`,
		sessionID).Scan(&session.ID, &session.ClientID, &websiteID, &session.Title, &sessionCtx,
		&session.TotalTokens, &session.Status, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	session.WebsiteID = websiteID.String
	if sessionCtx.Valid {
		session.Context = json.RawMessage(sessionCtx.String)
	}
	return &session, nil
}

// ListSessions lists a client's sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, clientID string, limit int) ([]domain.ChatSession, error) {
	query := `SELECT id, client_id, website_id, title, context, total_tokens, status, created_at
		 FROM chat_sessions WHERE client_id = ? ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.ChatSession
	for rows.Next() {
		var session domain.ChatSession
		var websiteID, sessionCtx sql.NullString
		if err := rows.Scan(&session.ID, &session.ClientID, &websiteID, &session.Title, &sessionCtx,
			&session.TotalTokens, &session.Status, &session.CreatedAt); err != nil {
			return nil, err
		}
		session.WebsiteID = websiteID.String
		if sessionCtx.Valid {
			session.Context = json.RawMessage(sessionCtx.String)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// UpdateSessionStatus updates the status of a session.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET status = ? WHERE id = ?`,
		status, sessionID)
	return err
}

// AddSessionTokens atomically increments the session token counter.
func (s *SQLiteStore) AddSessionTokens(ctx context.Context, sessionID string, tokens int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET total_tokens = total_tokens + ? WHERE id = ?`,
		tokens, sessionID)
	return err
}

// CreateMessage appends a message to a session's log.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *domain.ChatMessage) error {
	var metadata sql.NullString
	if message.Metadata != nil {
		metadata = sql.NullString{String: string(message.Metadata), Valid: true}
	}
	var tokenCount sql.NullInt64
	if message.TokenCount > 0 {
		tokenCount = sql.NullInt64{Int64: int64(message.TokenCount), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, metadata, token_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		message.ID, message.SessionID, message.Role, message.Content, metadata, tokenCount, message.CreatedAt)
	return err
}

// GetMessages retrieves a session's full history, oldest first.
func (s *SQLiteStore) GetMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, metadata, token_count, created_at
		 FROM chat_messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetRecentMessages retrieves the most recent limit messages for a
// session in oldest-to-newest order.
func (s *SQLiteStore) GetRecentMessages(ctx context.Context, sessionID string, limit int, excludeSystem bool) ([]domain.ChatMessage, error) {
	query := `SELECT id, session_id, role, content, metadata, token_count, created_at
		 FROM chat_messages WHERE session_id = ?`
	args := []interface{}{sessionID}
	if excludeSystem {
		query += ` AND role != ?`
		args = append(args, domain.RoleSystem)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func scanMessages(rows *sql.Rows) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var metadata sql.NullString
		var tokenCount sql.NullInt64
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &metadata, &tokenCount, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if metadata.Valid {
			msg.Metadata = json.RawMessage(metadata.String)
		}
		msg.TokenCount = int(tokenCount.Int64)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreateChangeRequest creates a new change request.
func (s *SQLiteStore) CreateChangeRequest(ctx context.Context, request *domain.ChangeRequest) error {
	var oldContent sql.NullString
	if request.OldContent != nil {
		oldContent = sql.NullString{String: string(request.OldContent), Valid: true}
	}
	var section sql.NullString
	if request.Section != "" {
		section = sql.NullString{String: request.Section, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO change_requests (id, client_id, website_id, request_type, section, description, old_content, new_content, status, priority, auto_approvable, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		request.ID, request.ClientID, request.WebsiteID, request.RequestType, section, request.Description,
		oldContent, string(request.NewContent), request.Status, request.Priority, request.AutoApprovable, request.CreatedAt)
	return err
}

// GetChangeRequest retrieves a change request by ID.
func (s *SQLiteStore) GetChangeRequest(ctx context.Context, requestID string) (*domain.ChangeRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, website_id, request_type, section, description, old_content, new_content, status, priority, auto_approvable, created_at
		 FROM change_requests WHERE id = ?`,
		requestID)
	request, err := scanChangeRequest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return request, nil
}

// ListChangeRequests lists change requests matching the filter, newest
// first.
func (s *SQLiteStore) ListChangeRequests(ctx context.Context, filter ChangeRequestFilter) ([]domain.ChangeRequest, error) {
	query := `SELECT id, client_id, website_id, request_type, section, description, old_content, new_content, status, priority, auto_approvable, created_at
		 FROM change_requests`
	var conds []string
	var args []interface{}
	if filter.ClientID != "" {
		conds = append(conds, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.WebsiteID != "" {
		conds = append(conds, "website_id = ?")
		args = append(args, filter.WebsiteID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.ChangeRequest
	for rows.Next() {
		request, err := scanChangeRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	return requests, rows.Err()
}

func scanChangeRequest(scan func(dest ...interface{}) error) (*domain.ChangeRequest, error) {
	var request domain.ChangeRequest
	var section, oldContent sql.NullString
	var newContent string
	err := scan(&request.ID, &request.ClientID, &request.WebsiteID, &request.RequestType, &section,
		&request.Description, &oldContent, &newContent, &request.Status, &request.Priority,
		&request.AutoApprovable, &request.CreatedAt)
	if err != nil {
		return nil, err
	}
	request.Section = section.String
	if oldContent.Valid {
		request.OldContent = json.RawMessage(oldContent.String)
	}
	request.NewContent = json.RawMessage(newContent)
	return &request, nil
}

// UpdateChangeRequestStatus conditionally transitions a change request.
func (s *SQLiteStore) UpdateChangeRequestStatus(ctx context.Context, requestID string, from []domain.RequestStatus, to domain.RequestStatus) (bool, error) {
	placeholders := make([]string, len(from))
	args := []interface{}{to, requestID}
	for i, status := range from {
		placeholders[i] = "?"
		args = append(args, status)
	}
	query := fmt.Sprintf(`UPDATE change_requests SET status = ? WHERE id = ? AND status IN (%s)`,
		strings.Join(placeholders, ","))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// GetSectionContent retrieves the content row for (website, section).
func (s *SQLiteStore) GetSectionContent(ctx context.Context, websiteID, section string) (*domain.WebsiteContent, error) {
	var content domain.WebsiteContent
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, website_id, section, content_type, content, version, is_published, created_at
		 FROM website_content WHERE website_id = ? AND section = ?`,
		websiteID, section).Scan(&content.ID, &content.WebsiteID, &content.Section, &content.ContentType,
		&payload, &content.Version, &content.Published, &content.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	content.Content = json.RawMessage(payload)
	return &content, nil
}

// ListPublishedContent lists all published sections for a website.
func (s *SQLiteStore) ListPublishedContent(ctx context.Context, websiteID string) ([]domain.WebsiteContent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, website_id, section, content_type, content, version, is_published, created_at
		 FROM website_content WHERE website_id = ? AND is_published = 1 ORDER BY section ASC`,
		websiteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []domain.WebsiteContent
	for rows.Next() {
		var content domain.WebsiteContent
		var payload string
		if err := rows.Scan(&content.ID, &content.WebsiteID, &content.Section, &content.ContentType,
			&payload, &content.Version, &content.Published, &content.CreatedAt); err != nil {
			return nil, err
		}
		content.Content = json.RawMessage(payload)
		sections = append(sections, content)
	}
	return sections, rows.Err()
}

// InsertSectionContent inserts a new section row at version 1.
func (s *SQLiteStore) InsertSectionContent(ctx context.Context, content *domain.WebsiteContent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO website_content (id, website_id, section, content_type, content, version, is_published, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		content.ID, content.WebsiteID, content.Section, content.ContentType, string(content.Content),
		content.Version, content.Published, content.CreatedAt)
	if err != nil && isConstraintErr(err) {
		return fmt.Errorf("section %s/%s already exists: %w", content.WebsiteID, content.Section, domain.ErrConflict)
	}
	return err
}

// UpdateSectionContentCAS performs the compare-and-swap version
// increment. The WHERE clause on version makes the read-modify-write a
// single atomic statement; at most one writer succeeds per version.
func (s *SQLiteStore) UpdateSectionContentCAS(ctx context.Context, websiteID, section string, expectedVersion int, content json.RawMessage) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE website_content
		 SET content = ?, version = version + 1, is_published = 1
		 WHERE website_id = ? AND section = ? AND version = ?`,
		string(content), websiteID, section, expectedVersion)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
