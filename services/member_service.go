package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
	"github.com/frisbee-cz/evidence/utils"
	"github.com/google/uuid"
)

const confirmEmailBaseURL = "https://evidence.frisbee.cz/members/confirm-email/"

type MemberConfig struct {
	// EmailRequired makes the contact email (or the guardian's email for
	// children) mandatory on create and update.
	EmailRequired bool
}

type MemberService struct {
	members repositories.MemberRepository
	agents  repositories.AgentRepository
	clubs   repositories.ClubRepository
	email   EmailSender
	cfg     MemberConfig
	logger  *slog.Logger
}

func NewMemberService(
	members repositories.MemberRepository,
	agents repositories.AgentRepository,
	clubs repositories.ClubRepository,
	email EmailSender,
	cfg MemberConfig,
	logger *slog.Logger,
) *MemberService {
	return &MemberService{
		members: members,
		agents:  agents,
		clubs:   clubs,
		email:   email,
		cfg:     cfg,
		logger:  logger,
	}
}

type MemberInput struct {
	FirstName   string           `json:"first_name"`
	LastName    string           `json:"last_name"`
	BirthDate   time.Time        `json:"birth_date"`
	Sex         models.MemberSex `json:"sex"`
	Citizenship string           `json:"citizenship"`
	BirthNumber string           `json:"birth_number"`

	Street      string `json:"street"`
	City        string `json:"city"`
	HouseNumber string `json:"house_number"`
	PostalCode  string `json:"postal_code"`

	Email                  string `json:"email"`
	LegalGuardianEmail     string `json:"legal_guardian_email"`
	LegalGuardianFirstName string `json:"legal_guardian_first_name"`
	LegalGuardianLastName  string `json:"legal_guardian_last_name"`

	DefaultJerseyNumber *int `json:"default_jersey_number"`
}

func (s *MemberService) Create(ctx context.Context, caller Caller, clubID int, input MemberInput) (*models.Member, error) {
	if err := s.requireClub(ctx, caller, clubID); err != nil {
		return nil, err
	}

	member := &models.Member{
		ClubID:   clubID,
		IsActive: true,
	}
	applyMemberInput(member, input)

	if err := s.validate(member); err != nil {
		return nil, err
	}

	if err := s.members.Create(ctx, member); err != nil {
		if errors.Is(err, repositories.ErrMemberBirthNumberExists) {
			return nil, NewValidationError("birth_number", "Member with this birth number already exists")
		}
		if errors.Is(err, repositories.ErrMemberEmailExists) {
			return nil, NewValidationError("email", "Member with this email already exists")
		}
		if errors.Is(err, repositories.ErrClubNotFound) {
			return nil, ErrClubNotFound
		}
		return nil, err
	}

	s.issueConfirmationToken(ctx, member)
	return member, nil
}

func (s *MemberService) Update(ctx context.Context, caller Caller, memberID int, input MemberInput) (*models.Member, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	if err := s.requireClub(ctx, caller, member.ClubID); err != nil {
		return nil, err
	}

	previousEmail := contactEmail(member)
	applyMemberInput(member, input)

	if err := s.validate(member); err != nil {
		return nil, err
	}

	// An address change for the contact email invalidates the previous
	// confirmation.
	emailChanged := contactEmail(member) != previousEmail
	if emailChanged {
		member.EmailConfirmedAt = nil
		member.EmailConfirmationToken = nil
	}

	if err := s.members.Update(ctx, member); err != nil {
		if errors.Is(err, repositories.ErrMemberBirthNumberExists) {
			return nil, NewValidationError("birth_number", "Member with this birth number already exists")
		}
		if errors.Is(err, repositories.ErrMemberEmailExists) {
			return nil, NewValidationError("email", "Member with this email already exists")
		}
		return nil, err
	}

	if emailChanged {
		s.issueConfirmationToken(ctx, member)
	}
	return member, nil
}

func (s *MemberService) Get(ctx context.Context, id int) (*models.Member, error) {
	member, err := s.members.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return member, nil
}

func (s *MemberService) ListByClub(ctx context.Context, clubID int, activeOnly bool) ([]*models.Member, error) {
	return s.members.ListByClub(ctx, clubID, activeOnly)
}

// Search matches members by full name, for roster and transfer pickers.
func (s *MemberService) Search(ctx context.Context, query string, limit int) ([]*models.Member, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return s.members.Search(ctx, query, limit)
}

func (s *MemberService) SetActive(ctx context.Context, caller Caller, memberID int, active bool) error {
	member, err := s.Get(ctx, memberID)
	if err != nil {
		return err
	}
	if err := s.requireClub(ctx, caller, member.ClubID); err != nil {
		return err
	}
	return s.members.SetActive(ctx, memberID, active)
}

// ConfirmEmail consumes a confirmation token sent to the member's contact
// address. The token is single use.
func (s *MemberService) ConfirmEmail(ctx context.Context, token uuid.UUID) (*models.Member, error) {
	member, err := s.members.ConfirmEmailByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrConfirmationNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	s.logger.Info("member email confirmed", slog.Int("member_id", member.ID))
	return member, nil
}

func (s *MemberService) AddCoachLicence(ctx context.Context, caller Caller, memberID int, level models.CoachLicenceClass, validFrom, validTo time.Time) (*models.CoachLicence, error) {
	if !caller.IsAdmin {
		return nil, ErrForbiddenOperation
	}
	if _, err := s.Get(ctx, memberID); err != nil {
		return nil, err
	}
	if validFrom.After(validTo) {
		return nil, NewValidationError("valid_to", "Valid to date must be greater than valid from date.")
	}

	licence := &models.CoachLicence{
		MemberID:  memberID,
		Level:     level,
		ValidFrom: validFrom,
		ValidTo:   validTo,
	}
	if err := s.members.CreateCoachLicence(ctx, licence); err != nil {
		return nil, err
	}
	return licence, nil
}

func (s *MemberService) ListCoachLicences(ctx context.Context, memberID int) ([]*models.CoachLicence, error) {
	return s.members.ListCoachLicences(ctx, memberID)
}

func applyMemberInput(member *models.Member, input MemberInput) {
	member.FirstName = input.FirstName
	member.LastName = input.LastName
	member.BirthDate = input.BirthDate
	member.Sex = input.Sex
	member.Citizenship = input.Citizenship
	member.BirthNumber = input.BirthNumber
	member.Street = input.Street
	member.City = input.City
	member.HouseNumber = input.HouseNumber
	member.PostalCode = input.PostalCode
	member.Email = input.Email
	member.LegalGuardianEmail = input.LegalGuardianEmail
	member.LegalGuardianFirstName = input.LegalGuardianFirstName
	member.LegalGuardianLastName = input.LegalGuardianLastName
	member.DefaultJerseyNumber = input.DefaultJerseyNumber
}

func (s *MemberService) validate(member *models.Member) error {
	var errs ValidationErrors

	addField := func(field, message string) {
		errs = append(errs, NewValidationError(field, message))
	}

	if member.FirstName == "" {
		addField("first_name", "This field is required")
	}
	if member.LastName == "" {
		addField("last_name", "This field is required")
	}
	if member.BirthDate.IsZero() {
		addField("birth_date", "This field is required")
	}
	if member.Sex != models.SexFemale && member.Sex != models.SexMale {
		addField("sex", "This field is required")
	}
	if member.Citizenship == "" {
		addField("citizenship", "This field is required")
	}

	if member.IsCzech() {
		if member.BirthNumber != "" {
			if !utils.IsValidBirthNumber(member.BirthNumber) ||
				!utils.BirthNumberMatchesDate(member.BirthDate, member.BirthNumber) {
				addField("birth_number", "Invalid birth number or birth date")
			}
		} else {
			addField("birth_number", "Birth number is required for czech citizens")
		}

		// Czech addresses are derivable from the registry, only foreigners
		// record one here.
		for field, value := range map[string]string{
			"street":       member.Street,
			"city":         member.City,
			"house_number": member.HouseNumber,
			"postal_code":  member.PostalCode,
		} {
			if value != "" {
				addField(field, "This field is required only for non-czech citizens")
			}
		}
	} else {
		hasAny := member.Street != "" || member.City != "" || member.HouseNumber != "" || member.PostalCode != ""
		if hasAny {
			for field, value := range map[string]string{
				"street":       member.Street,
				"city":         member.City,
				"house_number": member.HouseNumber,
				"postal_code":  member.PostalCode,
			} {
				if value == "" {
					addField(field, "This field is required if an address is provided")
				}
			}
			if member.PostalCode != "" && !utils.IsValidPostalCode(member.PostalCode) {
				addField("postal_code", "Postal code must be 5 digits without a space")
			}
		}
	}

	if member.Email != "" && !utils.IsValidEmail(member.Email) {
		addField("email", "Enter a valid email address")
	}
	if member.LegalGuardianEmail != "" && !utils.IsValidEmail(member.LegalGuardianEmail) {
		addField("legal_guardian_email", "Enter a valid email address")
	}

	if !member.BirthDate.IsZero() {
		if utils.IsAtLeast15(member.BirthDate) {
			if s.cfg.EmailRequired && member.Email == "" {
				addField("email", "This field is required")
			}
		} else {
			const requiredForChildren = "This field is required for children under 15"
			if s.cfg.EmailRequired && member.LegalGuardianEmail == "" {
				addField("legal_guardian_email", requiredForChildren)
			}
			if member.LegalGuardianFirstName == "" {
				addField("legal_guardian_first_name", requiredForChildren)
			}
			if member.LegalGuardianLastName == "" {
				addField("legal_guardian_last_name", requiredForChildren)
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// contactEmail returns the address confirmations go to: the member's own for
// adults, the legal guardian's for children.
func contactEmail(member *models.Member) string {
	if utils.IsAtLeast15(member.BirthDate) {
		return member.Email
	}
	return member.LegalGuardianEmail
}

// issueConfirmationToken stores a fresh token and emails the confirmation
// link. Delivery failures are logged, the member record is already saved.
func (s *MemberService) issueConfirmationToken(ctx context.Context, member *models.Member) {
	address := contactEmail(member)
	if address == "" {
		return
	}

	token := uuid.New()
	if err := s.members.SetConfirmationToken(ctx, member.ID, token); err != nil {
		s.logger.Error("failed to store confirmation token",
			slog.Int("member_id", member.ID), slog.Any("error", err))
		return
	}
	member.EmailConfirmationToken = &token

	clubName := ""
	if club, err := s.clubs.GetByID(ctx, member.ClubID); err == nil {
		clubName = club.Name
	}

	body := fmt.Sprintf(
		"You have been registered as a member of %s.\nPlease confirm your email by clicking on the following link: %s%s\n",
		clubName, confirmEmailBaseURL, token,
	)
	if err := s.email.Send("Please confirm your email", body, []string{address}, nil); err != nil {
		s.logger.Error("failed to send confirmation email",
			slog.Int("member_id", member.ID), slog.Any("error", err))
		return
	}
	s.logger.Info("confirmation token sent",
		slog.Int("member_id", member.ID), slog.String("email", address))
}

func (s *MemberService) requireClub(ctx context.Context, caller Caller, clubID int) error {
	if caller.IsAdmin {
		return nil
	}
	ok, err := s.agents.HasActiveAffiliation(ctx, caller.AgentID, clubID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbiddenOperation
	}
	return nil
}
