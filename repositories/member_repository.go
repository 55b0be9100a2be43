package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/frisbee-cz/evidence/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrMemberNotFound          = errors.New("member not found")
	ErrMemberBirthNumberExists = errors.New("member with this birth number already exists")
	ErrMemberEmailExists       = errors.New("member with this email already exists")
	ErrConfirmationNotFound    = errors.New("email confirmation token not found")
	ErrCoachLicenceNotFound    = errors.New("coach licence not found")
)

type MemberRepository interface {
	Create(ctx context.Context, member *models.Member) error
	GetByID(ctx context.Context, id int) (*models.Member, error)
	Update(ctx context.Context, member *models.Member) error
	ListByClub(ctx context.Context, clubID int, activeOnly bool) ([]*models.Member, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Member, error)
	SetActive(ctx context.Context, memberID int, active bool) error

	// UpdateClub moves the member to another club. Runs inside the transfer
	// transaction.
	UpdateClub(ctx context.Context, exec SQLExecutor, memberID, clubID int) error

	SetConfirmationToken(ctx context.Context, memberID int, token uuid.UUID) error
	ConfirmEmailByToken(ctx context.Context, token uuid.UUID) (*models.Member, error)

	CreateCoachLicence(ctx context.Context, licence *models.CoachLicence) error
	ListCoachLicences(ctx context.Context, memberID int) ([]*models.CoachLicence, error)

	// ListForExport returns all active members with their club preloaded,
	// ordered for the national sport agency file.
	ListForExport(ctx context.Context) ([]*models.Member, error)
}

type postgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) MemberRepository {
	return &postgresMemberRepository{db: db}
}

const memberColumns = `id, club_id, first_name, last_name, birth_date, sex, citizenship, birth_number,
	street, city, house_number, postal_code, email, legal_guardian_email,
	legal_guardian_first_name, legal_guardian_last_name, email_confirmation_token,
	email_confirmed_at, is_active, default_jersey_number, created_at`

func scanMember(row rowScanner, m *models.Member) error {
	return row.Scan(
		&m.ID,
		&m.ClubID,
		&m.FirstName,
		&m.LastName,
		&m.BirthDate,
		&m.Sex,
		&m.Citizenship,
		&m.BirthNumber,
		&m.Street,
		&m.City,
		&m.HouseNumber,
		&m.PostalCode,
		&m.Email,
		&m.LegalGuardianEmail,
		&m.LegalGuardianFirstName,
		&m.LegalGuardianLastName,
		&m.EmailConfirmationToken,
		&m.EmailConfirmedAt,
		&m.IsActive,
		&m.DefaultJerseyNumber,
		&m.CreatedAt,
	)
}

func (r *postgresMemberRepository) Create(ctx context.Context, member *models.Member) error {
	query := `
		INSERT INTO members (club_id, first_name, last_name, birth_date, sex, citizenship, birth_number,
			street, city, house_number, postal_code, email, legal_guardian_email,
			legal_guardian_first_name, legal_guardian_last_name, default_jersey_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, is_active, created_at`

	err := r.db.QueryRowContext(ctx, query,
		member.ClubID, member.FirstName, member.LastName, member.BirthDate,
		member.Sex, member.Citizenship, member.BirthNumber,
		member.Street, member.City, member.HouseNumber, member.PostalCode,
		member.Email, member.LegalGuardianEmail,
		member.LegalGuardianFirstName, member.LegalGuardianLastName,
		member.DefaultJerseyNumber,
	).Scan(&member.ID, &member.IsActive, &member.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return memberUniqueError(pqErr)
			case "23503":
				return ErrClubNotFound
			}
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// memberUniqueError picks the sentinel matching the violated constraint.
func memberUniqueError(pqErr *pq.Error) error {
	if strings.Contains(pqErr.Constraint, "email") {
		return ErrMemberEmailExists
	}
	return ErrMemberBirthNumberExists
}

func (r *postgresMemberRepository) GetByID(ctx context.Context, id int) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	member := &models.Member{}
	if err := scanMember(r.db.QueryRowContext(ctx, query, id), member); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return member, nil
}

func (r *postgresMemberRepository) Update(ctx context.Context, member *models.Member) error {
	query := `
		UPDATE members
		SET first_name = $1, last_name = $2, birth_date = $3, sex = $4, citizenship = $5,
			birth_number = $6, street = $7, city = $8, house_number = $9, postal_code = $10,
			email = $11, legal_guardian_email = $12, legal_guardian_first_name = $13,
			legal_guardian_last_name = $14, default_jersey_number = $15
		WHERE id = $16`

	result, err := r.db.ExecContext(ctx, query,
		member.FirstName, member.LastName, member.BirthDate, member.Sex, member.Citizenship,
		member.BirthNumber, member.Street, member.City, member.HouseNumber, member.PostalCode,
		member.Email, member.LegalGuardianEmail, member.LegalGuardianFirstName,
		member.LegalGuardianLastName, member.DefaultJerseyNumber,
		member.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return memberUniqueError(pqErr)
		}
		return fmt.Errorf("failed to update member: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) ListByClub(ctx context.Context, clubID int, activeOnly bool) ([]*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE club_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY last_name, first_name`
	return r.list(ctx, query, clubID)
}

func (r *postgresMemberRepository) Search(ctx context.Context, search string, limit int) ([]*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE (first_name || ' ' || last_name) ILIKE '%' || $1 || '%'
		ORDER BY last_name, first_name
		LIMIT $2`
	return r.list(ctx, query, search, limit)
}

func (r *postgresMemberRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Member, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member := &models.Member{}
		if err := scanMember(rows, member); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *postgresMemberRepository) SetActive(ctx context.Context, memberID int, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE members SET is_active = $1 WHERE id = $2`, active, memberID)
	if err != nil {
		return fmt.Errorf("failed to change member activity: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) UpdateClub(ctx context.Context, exec SQLExecutor, memberID, clubID int) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx, `UPDATE members SET club_id = $1 WHERE id = $2`, clubID, memberID)
	if err != nil {
		return fmt.Errorf("failed to move member to club %d: %w", clubID, err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) SetConfirmationToken(ctx context.Context, memberID int, token uuid.UUID) error {
	query := `UPDATE members SET email_confirmation_token = $1, email_confirmed_at = NULL WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, token, memberID)
	if err != nil {
		return fmt.Errorf("failed to set confirmation token: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) ConfirmEmailByToken(ctx context.Context, token uuid.UUID) (*models.Member, error) {
	query := `
		UPDATE members
		SET email_confirmed_at = NOW(), email_confirmation_token = NULL
		WHERE email_confirmation_token = $1
		RETURNING ` + memberColumns

	member := &models.Member{}
	if err := scanMember(r.db.QueryRowContext(ctx, query, token), member); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConfirmationNotFound
		}
		return nil, fmt.Errorf("failed to confirm email: %w", err)
	}
	return member, nil
}

func (r *postgresMemberRepository) CreateCoachLicence(ctx context.Context, licence *models.CoachLicence) error {
	query := `
		INSERT INTO coach_licences (member_id, level, valid_from, valid_to)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		licence.MemberID, licence.Level, licence.ValidFrom, licence.ValidTo,
	).Scan(&licence.ID, &licence.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to create coach licence: %w", err)
	}
	return nil
}

func (r *postgresMemberRepository) ListCoachLicences(ctx context.Context, memberID int) ([]*models.CoachLicence, error) {
	query := `SELECT id, member_id, level, valid_from, valid_to, created_at FROM coach_licences WHERE member_id = $1 ORDER BY valid_from DESC`
	rows, err := r.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coach licences: %w", err)
	}
	defer rows.Close()

	var licences []*models.CoachLicence
	for rows.Next() {
		licence := &models.CoachLicence{}
		err := rows.Scan(&licence.ID, &licence.MemberID, &licence.Level,
			&licence.ValidFrom, &licence.ValidTo, &licence.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coach licence: %w", err)
		}
		licences = append(licences, licence)
	}
	return licences, rows.Err()
}

func (r *postgresMemberRepository) ListForExport(ctx context.Context) ([]*models.Member, error) {
	query := `
		SELECT ` + prefixColumns("m", memberColumns) + `,
			c.id, c.name, c.short_name, c.email, c.website, c.city,
			c.identification_number, c.fakturoid_subject_id, c.logo_key, c.created_at
		FROM members m
		JOIN clubs c ON c.id = m.club_id
		WHERE m.is_active
		ORDER BY c.name, m.last_name, m.first_name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list members for export: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member := &models.Member{}
		club := &models.Club{}
		err := rows.Scan(
			&member.ID, &member.ClubID, &member.FirstName, &member.LastName,
			&member.BirthDate, &member.Sex, &member.Citizenship, &member.BirthNumber,
			&member.Street, &member.City, &member.HouseNumber, &member.PostalCode,
			&member.Email, &member.LegalGuardianEmail,
			&member.LegalGuardianFirstName, &member.LegalGuardianLastName,
			&member.EmailConfirmationToken, &member.EmailConfirmedAt,
			&member.IsActive, &member.DefaultJerseyNumber, &member.CreatedAt,
			&club.ID, &club.Name, &club.ShortName, &club.Email, &club.Website, &club.City,
			&club.IdentificationNumber, &club.FakturoidSubjectID, &club.LogoKey, &club.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member for export: %w", err)
		}
		member.Club = club
		members = append(members, member)
	}
	return members, rows.Err()
}
