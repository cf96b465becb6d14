package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Repository loads task snapshots from the main postgres database.
type Repository struct {
	DB *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

// Snapshot returns every non-deleted task and category owned by uid.
func (r *Repository) Snapshot(ctx context.Context, uid int) (Snapshot, error) {
	tasks, err := r.ListTasks(ctx, uid)
	if err != nil {
		return Snapshot{}, err
	}
	cats, err := r.ListCategories(ctx, uid)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Tasks: tasks, Categories: cats}, nil
}

func (r *Repository) ListTasks(ctx context.Context, uid int) ([]Task, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT
			t.id,
			COALESCE(NULLIF(t.title,''), t.text),
			COALESCE(t.description,''),
			t.category_id,
			COALESCE(t.priority,''),
			COALESCE(t.location,''),
			t.status,
			t.created_at,
			t.updated_at,
			t.due_at,
			t.completed_at
		FROM tasks t
		WHERE t.user_id = $1
		ORDER BY t.id ASC
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var result []Task
	for rows.Next() {
		var (
			t          Task
			id         int64
			categoryID sql.NullInt64
			priority   string
			status     string
			updated    sql.NullTime
			due        sql.NullTime
			completed  sql.NullTime
		)

		if err := rows.Scan(
			&id,
			&t.Title,
			&t.Description,
			&categoryID,
			&priority,
			&t.Location,
			&status,
			&t.CreatedAt,
			&updated,
			&due,
			&completed,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		t.ID = strconv.FormatInt(id, 10)
		t.Title = strings.TrimSpace(t.Title)
		if categoryID.Valid {
			t.CategoryID = strconv.FormatInt(categoryID.Int64, 10)
		}
		t.Priority = Priority(strings.ToLower(priority))
		if !t.Priority.Valid() {
			t.Priority = ""
		}
		t.Status = Status(status)
		t.UpdatedAt = nullableTime(updated)
		t.DueAt = nullableTime(due)
		t.CompletedAt = nullableTime(completed)

		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tasks rows: %w", err)
	}
	return result, nil
}

func (r *Repository) ListCategories(ctx context.Context, uid int) ([]Category, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, label
		FROM task_categories
		WHERE user_id = $1
		ORDER BY id ASC
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var result []Category
	for rows.Next() {
		var (
			id    int64
			label string
		)
		if err := rows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		result = append(result, Category{ID: strconv.FormatInt(id, 10), Label: label})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("categories rows: %w", err)
	}
	return result, nil
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
