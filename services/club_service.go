package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/notifications"
	"github.com/frisbee-cz/evidence/repositories"
	"github.com/frisbee-cz/evidence/storage"
	"github.com/google/uuid"
)

type ClubService struct {
	clubs    repositories.ClubRepository
	teams    repositories.TeamRepository
	agents   repositories.AgentRepository
	uploader storage.FileUploader
	email    EmailSender
	hub      *notifications.Hub
	logger   *slog.Logger
}

func NewClubService(
	clubs repositories.ClubRepository,
	teams repositories.TeamRepository,
	agents repositories.AgentRepository,
	uploader storage.FileUploader,
	email EmailSender,
	hub *notifications.Hub,
	logger *slog.Logger,
) *ClubService {
	return &ClubService{
		clubs:    clubs,
		teams:    teams,
		agents:   agents,
		uploader: uploader,
		email:    email,
		hub:      hub,
		logger:   logger,
	}
}

type CreateClubInput struct {
	Name                 string `json:"name"`
	ShortName            string `json:"short_name"`
	Email                string `json:"email"`
	Website              string `json:"website"`
	City                 string `json:"city"`
	IdentificationNumber string `json:"identification_number"`
}

func (s *ClubService) CreateClub(ctx context.Context, caller Caller, input CreateClubInput) (*models.Club, error) {
	if !caller.IsAdmin {
		return nil, ErrForbiddenOperation
	}
	if input.Name == "" {
		return nil, NewValidationError("name", "This field is required")
	}

	club := &models.Club{
		Name:                 input.Name,
		ShortName:            input.ShortName,
		Email:                input.Email,
		Website:              input.Website,
		City:                 input.City,
		IdentificationNumber: input.IdentificationNumber,
	}
	if err := s.clubs.Create(ctx, club); err != nil {
		if errors.Is(err, repositories.ErrClubConflict) {
			return nil, ErrClubNameConflict
		}
		return nil, err
	}
	return club, nil
}

func (s *ClubService) GetClub(ctx context.Context, id int) (*models.Club, error) {
	club, err := s.clubs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrClubNotFound) {
			return nil, ErrClubNotFound
		}
		return nil, err
	}
	s.populateLogoURL(club)
	return club, nil
}

func (s *ClubService) ListClubs(ctx context.Context) ([]*models.Club, error) {
	clubs, err := s.clubs.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, club := range clubs {
		s.populateLogoURL(club)
	}
	return clubs, nil
}

func (s *ClubService) UpdateClub(ctx context.Context, caller Caller, id int, input CreateClubInput) (*models.Club, error) {
	if err := s.requireClub(ctx, caller, id); err != nil {
		return nil, err
	}

	club, err := s.GetClub(ctx, id)
	if err != nil {
		return nil, err
	}
	club.Name = input.Name
	club.ShortName = input.ShortName
	club.Email = input.Email
	club.Website = input.Website
	club.City = input.City
	club.IdentificationNumber = input.IdentificationNumber

	if err := s.clubs.Update(ctx, club); err != nil {
		if errors.Is(err, repositories.ErrClubConflict) {
			return nil, ErrClubNameConflict
		}
		return nil, err
	}
	return club, nil
}

// UploadLogo replaces the club logo in object storage and records the new key.
func (s *ClubService) UploadLogo(ctx context.Context, caller Caller, clubID int, contentType string, reader io.Reader) (*models.Club, error) {
	if err := s.requireClub(ctx, caller, clubID); err != nil {
		return nil, err
	}
	club, err := s.GetClub(ctx, clubID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("clubs/%d/logo-%s", clubID, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("uploading club logo: %w", err)
	}

	if err := s.clubs.UpdateLogoKey(ctx, clubID, result.Key); err != nil {
		return nil, err
	}

	if club.LogoKey != nil && *club.LogoKey != "" {
		if err := s.uploader.Delete(ctx, *club.LogoKey); err != nil {
			s.logger.Warn("failed to delete previous club logo",
				slog.Int("club_id", clubID), slog.Any("error", err))
		}
	}

	club.LogoKey = &result.Key
	s.populateLogoURL(club)
	return club, nil
}

func (s *ClubService) SetFakturoidSubject(ctx context.Context, caller Caller, clubID, subjectID int) error {
	if !caller.IsAdmin {
		return ErrForbiddenOperation
	}
	if err := s.clubs.SetFakturoidSubjectID(ctx, clubID, subjectID); err != nil {
		if errors.Is(err, repositories.ErrClubNotFound) {
			return ErrClubNotFound
		}
		return err
	}
	return nil
}

func (s *ClubService) CreateTeam(ctx context.Context, caller Caller, clubID int, name string) (*models.Team, error) {
	if err := s.requireClub(ctx, caller, clubID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, NewValidationError("name", "This field is required")
	}

	team := &models.Team{ClubID: clubID, Name: name}
	if err := s.teams.Create(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, err
	}
	return team, nil
}

func (s *ClubService) ListTeams(ctx context.Context, clubID int) ([]*models.Team, error) {
	return s.teams.ListByClub(ctx, clubID)
}

func (s *ClubService) RenameTeam(ctx context.Context, caller Caller, teamID int, name string) (*models.Team, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	if err := s.requireClub(ctx, caller, team.ClubID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, NewValidationError("name", "This field is required")
	}

	team.Name = name
	if err := s.teams.Update(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, err
	}
	return team, nil
}

func (s *ClubService) DeleteTeam(ctx context.Context, caller Caller, teamID int) error {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return err
	}
	if err := s.requireClub(ctx, caller, team.ClubID); err != nil {
		return err
	}
	return s.teams.Delete(ctx, teamID)
}

// Notify fans one club notification out three ways: a persistent in-app row
// per active affiliation, an email to agents who opted in, and a websocket
// push to connected clients. Email and websocket failures are logged, the
// stored rows are the source of truth.
func (s *ClubService) Notify(ctx context.Context, clubID int, subject, message string) error {
	affiliations, err := s.agents.ListActiveByClub(ctx, clubID)
	if err != nil {
		return fmt.Errorf("listing club agents: %w", err)
	}

	var emailRecipients []string
	for _, affiliation := range affiliations {
		notification := &models.ClubNotification{
			AgentAtClubID: affiliation.ID,
			Subject:       subject,
			Message:       message,
		}
		if err := s.agents.CreateNotification(ctx, notification); err != nil {
			return fmt.Errorf("storing notification for affiliation %d: %w", affiliation.ID, err)
		}
		if affiliation.Agent != nil && affiliation.Agent.HasEmailNotificationsEnabled {
			emailRecipients = append(emailRecipients, affiliation.Agent.Email)
		}
	}

	if len(emailRecipients) > 0 {
		if err := s.email.Send(subject, message, emailRecipients, nil); err != nil {
			s.logger.Error("failed to email club notification",
				slog.Int("club_id", clubID), slog.Any("error", err))
		}
	}

	if s.hub != nil {
		s.hub.Push(clubID, notifications.Event{
			Type: "notification",
			Payload: map[string]string{
				"subject": subject,
				"message": message,
			},
		})
	}
	return nil
}

// ListNotifications returns the caller's in-app notifications for one club.
func (s *ClubService) ListNotifications(ctx context.Context, caller Caller, clubID int, unreadOnly bool) ([]*models.ClubNotification, error) {
	affiliation, err := s.callerAffiliation(ctx, caller, clubID)
	if err != nil {
		return nil, err
	}
	items, err := s.agents.ListNotifications(ctx, affiliation.ID, unreadOnly)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *ClubService) MarkNotificationRead(ctx context.Context, caller Caller, clubID, notificationID int) error {
	affiliation, err := s.callerAffiliation(ctx, caller, clubID)
	if err != nil {
		return err
	}
	items, err := s.agents.ListNotifications(ctx, affiliation.ID, false)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.ID == notificationID {
			if err := s.agents.MarkNotificationRead(ctx, notificationID); err != nil {
				if errors.Is(err, repositories.ErrNotificationNotFound) {
					// Already read, treat as done.
					return nil
				}
				return err
			}
			return nil
		}
	}
	return ErrNotFound
}

func (s *ClubService) callerAffiliation(ctx context.Context, caller Caller, clubID int) (*models.AgentAtClub, error) {
	affiliations, err := s.agents.ListActiveByClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	for _, affiliation := range affiliations {
		if affiliation.AgentID == caller.AgentID {
			return affiliation, nil
		}
	}
	return nil, ErrForbiddenOperation
}

func (s *ClubService) requireClub(ctx context.Context, caller Caller, clubID int) error {
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

func (s *ClubService) populateLogoURL(club *models.Club) {
	if s.uploader == nil || club.LogoKey == nil || *club.LogoKey == "" {
		return
	}
	if url := s.uploader.GetPublicURL(*club.LogoKey); url != "" {
		club.LogoURL = &url
	}
}
