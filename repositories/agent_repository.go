package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/frisbee-cz/evidence/models"
	"github.com/lib/pq"
)

var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrAgentEmailExists   = errors.New("agent with this email already exists")
	ErrAffiliationExists  = errors.New("agent is already affiliated with this club")
	ErrNotificationNotFound = errors.New("notification not found")
)

type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByID(ctx context.Context, id int) (*models.Agent, error)
	GetByEmail(ctx context.Context, email string) (*models.Agent, error)
	SetEmailNotifications(ctx context.Context, agentID int, enabled bool) error

	CreateAffiliation(ctx context.Context, affiliation *models.AgentAtClub) error
	SetAffiliationActive(ctx context.Context, affiliationID int, active bool) error
	// ListActiveByClub returns active affiliations with their agents, the
	// fan-out targets of a club notification.
	ListActiveByClub(ctx context.Context, clubID int) ([]*models.AgentAtClub, error)
	ListClubIDsByAgent(ctx context.Context, agentID int) ([]int, error)
	HasActiveAffiliation(ctx context.Context, agentID, clubID int) (bool, error)

	CreateNotification(ctx context.Context, notification *models.ClubNotification) error
	ListNotifications(ctx context.Context, agentAtClubID int, unreadOnly bool) ([]*models.ClubNotification, error)
	MarkNotificationRead(ctx context.Context, notificationID int) error
}

type postgresAgentRepository struct {
	db *sql.DB
}

func NewPostgresAgentRepository(db *sql.DB) AgentRepository {
	return &postgresAgentRepository{db: db}
}

const agentColumns = `id, first_name, last_name, email, password_hash, is_admin, has_email_notifications_enabled, created_at`

func scanAgent(row rowScanner, a *models.Agent) error {
	return row.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash,
		&a.IsAdmin, &a.HasEmailNotificationsEnabled, &a.CreatedAt,
	)
}

func (r *postgresAgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	query := `
		INSERT INTO agents (first_name, last_name, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, has_email_notifications_enabled, created_at`

	err := r.db.QueryRowContext(ctx, query,
		agent.FirstName, agent.LastName, agent.Email, agent.PasswordHash, agent.IsAdmin,
	).Scan(&agent.ID, &agent.HasEmailNotificationsEnabled, &agent.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAgentEmailExists
		}
		return fmt.Errorf("failed to create agent: %w", err)
	}
	return nil
}

func (r *postgresAgentRepository) GetByID(ctx context.Context, id int) (*models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	agent := &models.Agent{}
	if err := scanAgent(r.db.QueryRowContext(ctx, query, id), agent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to find agent: %w", err)
	}
	return agent, nil
}

func (r *postgresAgentRepository) GetByEmail(ctx context.Context, email string) (*models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE email = $1`
	agent := &models.Agent{}
	if err := scanAgent(r.db.QueryRowContext(ctx, query, email), agent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to find agent by email: %w", err)
	}
	return agent, nil
}

func (r *postgresAgentRepository) SetEmailNotifications(ctx context.Context, agentID int, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE agents SET has_email_notifications_enabled = $1 WHERE id = $2`, enabled, agentID)
	if err != nil {
		return fmt.Errorf("failed to update agent notification settings: %w", err)
	}
	return checkAffectedRows(result, ErrAgentNotFound)
}

func (r *postgresAgentRepository) CreateAffiliation(ctx context.Context, affiliation *models.AgentAtClub) error {
	query := `
		INSERT INTO agents_at_clubs (agent_id, club_id, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		affiliation.AgentID, affiliation.ClubID, affiliation.IsActive,
	).Scan(&affiliation.ID, &affiliation.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return ErrAffiliationExists
			case "23503":
				return ErrClubNotFound
			}
		}
		return fmt.Errorf("failed to create affiliation: %w", err)
	}
	return nil
}

func (r *postgresAgentRepository) SetAffiliationActive(ctx context.Context, affiliationID int, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE agents_at_clubs SET is_active = $1 WHERE id = $2`, active, affiliationID)
	if err != nil {
		return fmt.Errorf("failed to update affiliation: %w", err)
	}
	return checkAffectedRows(result, ErrAgentNotFound)
}

func (r *postgresAgentRepository) ListActiveByClub(ctx context.Context, clubID int) ([]*models.AgentAtClub, error) {
	query := `
		SELECT ac.id, ac.agent_id, ac.club_id, ac.is_active, ac.created_at,
			` + prefixColumns("a", agentColumns) + `
		FROM agents_at_clubs ac
		JOIN agents a ON a.id = ac.agent_id
		WHERE ac.club_id = $1 AND ac.is_active
		ORDER BY a.last_name, a.first_name`

	rows, err := r.db.QueryContext(ctx, query, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list club affiliations: %w", err)
	}
	defer rows.Close()

	var affiliations []*models.AgentAtClub
	for rows.Next() {
		affiliation := &models.AgentAtClub{}
		agent := &models.Agent{}
		err := rows.Scan(
			&affiliation.ID, &affiliation.AgentID, &affiliation.ClubID,
			&affiliation.IsActive, &affiliation.CreatedAt,
			&agent.ID, &agent.FirstName, &agent.LastName, &agent.Email, &agent.PasswordHash,
			&agent.IsAdmin, &agent.HasEmailNotificationsEnabled, &agent.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan affiliation: %w", err)
		}
		affiliation.Agent = agent
		affiliations = append(affiliations, affiliation)
	}
	return affiliations, rows.Err()
}

func (r *postgresAgentRepository) ListClubIDsByAgent(ctx context.Context, agentID int) ([]int, error) {
	query := `SELECT club_id FROM agents_at_clubs WHERE agent_id = $1 AND is_active ORDER BY club_id`
	rows, err := r.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent clubs: %w", err)
	}
	defer rows.Close()

	var clubIDs []int
	for rows.Next() {
		var clubID int
		if err := rows.Scan(&clubID); err != nil {
			return nil, fmt.Errorf("failed to scan club id: %w", err)
		}
		clubIDs = append(clubIDs, clubID)
	}
	return clubIDs, rows.Err()
}

func (r *postgresAgentRepository) HasActiveAffiliation(ctx context.Context, agentID, clubID int) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM agents_at_clubs WHERE agent_id = $1 AND club_id = $2 AND is_active)`,
		agentID, clubID,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to check affiliation: %w", err)
	}
	return found, nil
}

func (r *postgresAgentRepository) CreateNotification(ctx context.Context, notification *models.ClubNotification) error {
	query := `
		INSERT INTO club_notifications (agent_at_club_id, subject, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		notification.AgentAtClubID, notification.Subject, notification.Message,
	).Scan(&notification.ID, &notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *postgresAgentRepository) ListNotifications(ctx context.Context, agentAtClubID int, unreadOnly bool) ([]*models.ClubNotification, error) {
	query := `SELECT id, agent_at_club_id, subject, message, read_at, created_at FROM club_notifications WHERE agent_at_club_id = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, agentAtClubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.ClubNotification
	for rows.Next() {
		notification := &models.ClubNotification{}
		err := rows.Scan(
			&notification.ID, &notification.AgentAtClubID, &notification.Subject,
			&notification.Message, &notification.ReadAt, &notification.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, notification)
	}
	return notifications, rows.Err()
}

func (r *postgresAgentRepository) MarkNotificationRead(ctx context.Context, notificationID int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE club_notifications SET read_at = NOW() WHERE id = $1 AND read_at IS NULL`, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return checkAffectedRows(result, ErrNotificationNotFound)
}
