package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const userColumns = `id, email, name, password_hash, llm_context, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.LLMContext, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s queries) CreateUser(ctx context.Context, user User) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
	`, user.ID, strings.ToLower(strings.TrimSpace(user.Email)), user.Name, user.PasswordHash)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s queries) GetUserByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, strings.ToLower(strings.TrimSpace(email))))
}

func (s queries) UpdateLLMContext(ctx context.Context, userID, llmContext string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE users SET llm_context=$2, updated_at=NOW() WHERE id=$1`, userID, llmContext)
	if err != nil {
		return fmt.Errorf("update llm context: %w", err)
	}
	return nil
}

func (s queries) SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LookupSession returns the user id behind a live session.
func (s queries) LookupSession(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.q.QueryRowContext(ctx, `
		SELECT user_id FROM sessions WHERE token_hash=$1 AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s queries) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s queries) CreateAPIToken(ctx context.Context, token APIToken) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO api_tokens (id, user_id, name, token_hash, scope, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, token.ID, token.UserID, token.Name, token.TokenHash, token.Scope, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert api token: %w", err)
	}
	return nil
}

func (s queries) ListAPITokens(ctx context.Context, userID string) ([]APIToken, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, name, token_hash, scope, expires_at, last_used_at, created_at
		FROM api_tokens WHERE user_id=$1
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api tokens: %w", err)
	}
	defer rows.Close()

	tokens := []APIToken{}
	for rows.Next() {
		var token APIToken
		if err := rows.Scan(&token.ID, &token.UserID, &token.Name, &token.TokenHash, &token.Scope, &token.ExpiresAt, &token.LastUsedAt, &token.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// TouchAPIToken resolves a live token by hash and records its use.
func (s queries) TouchAPIToken(ctx context.Context, tokenHash string) (APIToken, error) {
	var token APIToken
	err := s.q.QueryRowContext(ctx, `
		UPDATE api_tokens SET last_used_at=NOW()
		WHERE token_hash=$1 AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING id, user_id, name, token_hash, scope, expires_at, last_used_at, created_at
	`, tokenHash).Scan(&token.ID, &token.UserID, &token.Name, &token.TokenHash, &token.Scope, &token.ExpiresAt, &token.LastUsedAt, &token.CreatedAt)
	if err != nil {
		return APIToken{}, err
	}
	return token, nil
}

// RevokeAPIToken deletes a token owned by userID and reports whether it existed.
func (s queries) RevokeAPIToken(ctx context.Context, userID, tokenID string) (bool, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM api_tokens WHERE id=$1 AND user_id=$2`, tokenID, userID)
	if err != nil {
		return false, fmt.Errorf("revoke api token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke api token rows: %w", err)
	}
	return affected > 0, nil
}
