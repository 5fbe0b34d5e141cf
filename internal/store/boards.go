package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s queries) InsertBoard(ctx context.Context, board Board) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO boards (id, name, description, owner_id)
		VALUES ($1, $2, $3, $4)
	`, board.ID, board.Name, board.Description, board.OwnerID)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

func (s queries) GetBoard(ctx context.Context, boardID string) (Board, error) {
	var board Board
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, description, owner_id, created_at, updated_at FROM boards WHERE id=$1
	`, boardID).Scan(&board.ID, &board.Name, &board.Description, &board.OwnerID, &board.CreatedAt, &board.UpdatedAt)
	if err != nil {
		return Board{}, err
	}
	return board, nil
}

func (s queries) UpdateBoard(ctx context.Context, board Board) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE boards SET name=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, board.ID, board.Name, board.Description)
	if err != nil {
		return fmt.Errorf("update board: %w", err)
	}
	return nil
}

// DeleteBoard removes the board; columns, permissions, board tags and
// placements cascade. Cards stay.
func (s queries) DeleteBoard(ctx context.Context, boardID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM boards WHERE id=$1`, boardID)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	return nil
}

// ListBoardsForUser returns every board the user holds a permission on.
func (s queries) ListBoardsForUser(ctx context.Context, userID string) ([]BoardWithRole, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT b.id, b.name, b.description, b.owner_id, b.created_at, b.updated_at, bp.role
		FROM boards b
		JOIN board_permissions bp ON bp.board_id = b.id
		WHERE bp.user_id = $1
		ORDER BY b.name, b.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	boards := []BoardWithRole{}
	for rows.Next() {
		var board BoardWithRole
		if err := rows.Scan(&board.ID, &board.Name, &board.Description, &board.OwnerID, &board.CreatedAt, &board.UpdatedAt, &board.Role); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, board)
	}
	return boards, rows.Err()
}

func (s queries) ListPermissions(ctx context.Context, boardID string) ([]BoardPermission, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT bp.board_id, bp.user_id, u.name, u.email, bp.role
		FROM board_permissions bp
		JOIN users u ON u.id = bp.user_id
		WHERE bp.board_id = $1
		ORDER BY CASE bp.role WHEN 'owner' THEN 0 WHEN 'editor' THEN 1 ELSE 2 END, u.name, u.id
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	perms := []BoardPermission{}
	for rows.Next() {
		var perm BoardPermission
		if err := rows.Scan(&perm.BoardID, &perm.UserID, &perm.UserName, &perm.UserEmail, &perm.Role); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// GetRole returns the user's role on the board, or "" without a grant.
func (s queries) GetRole(ctx context.Context, boardID, userID string) (string, error) {
	var role string
	err := s.q.QueryRowContext(ctx, `
		SELECT role FROM board_permissions WHERE board_id=$1 AND user_id=$2
	`, boardID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read role: %w", err)
	}
	return role, nil
}

func (s queries) UpsertPermission(ctx context.Context, boardID, userID, role string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO board_permissions (board_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (board_id, user_id) DO UPDATE SET role=EXCLUDED.role
	`, boardID, userID, role)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("upsert permission: %w", err)
	}
	return nil
}

func (s queries) DeletePermission(ctx context.Context, boardID, userID string) (bool, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM board_permissions WHERE board_id=$1 AND user_id=$2`, boardID, userID)
	if err != nil {
		return false, fmt.Errorf("delete permission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete permission rows: %w", err)
	}
	return affected > 0, nil
}

func (s queries) InsertColumn(ctx context.Context, column Column) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO columns (id, board_id, name, position)
		VALUES ($1, $2, $3, $4)
	`, column.ID, column.BoardID, column.Name, column.Position)
	if err != nil {
		return fmt.Errorf("insert column: %w", err)
	}
	return nil
}

func (s queries) GetColumn(ctx context.Context, columnID string) (Column, error) {
	var column Column
	err := s.q.QueryRowContext(ctx, `
		SELECT id, board_id, name, position, created_at FROM columns WHERE id=$1
	`, columnID).Scan(&column.ID, &column.BoardID, &column.Name, &column.Position, &column.CreatedAt)
	if err != nil {
		return Column{}, err
	}
	return column, nil
}

func (s queries) ListColumns(ctx context.Context, boardID string) ([]Column, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, board_id, name, position, created_at
		FROM columns WHERE board_id=$1
		ORDER BY position, id
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	columns := []Column{}
	for rows.Next() {
		var column Column
		if err := rows.Scan(&column.ID, &column.BoardID, &column.Name, &column.Position, &column.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, column)
	}
	return columns, rows.Err()
}

func (s queries) RenameColumn(ctx context.Context, columnID, name string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE columns SET name=$2 WHERE id=$1`, columnID, name)
	if err != nil {
		return fmt.Errorf("rename column: %w", err)
	}
	return nil
}

func (s queries) DeleteColumn(ctx context.Context, columnID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM columns WHERE id=$1`, columnID)
	if err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	return nil
}
