package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
	"github.com/frisbee-cz/evidence/utils"
)

// TournamentRef identifies a tournament in the fee audit trail.
type TournamentRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SeasonFeeData is one member's season fee obligation. Amount follows the
// season pass rule: one regular fee covers everything, one discounted fee
// covers discounted-only seasons, free-only members never appear here.
type SeasonFeeData struct {
	Member                *models.Member  `json:"member"`
	ClubID                int             `json:"club_id"`
	Amount                int64           `json:"amount"`
	RegularTournaments    []TournamentRef `json:"regular_tournaments,omitempty"`
	DiscountedTournaments []TournamentRef `json:"discounted_tournaments,omitempty"`
}

// CompetitionOnlyFeeReport lists members whose only season participation is
// in one competition, with the fee each would owe at that competition's tier.
type CompetitionOnlyFeeReport struct {
	Competition *models.Competition `json:"competition"`
	Members     []*SeasonFeeData    `json:"members"`
	Total       int64               `json:"total"`
}

// EmailSender delivers an email, optionally with a CSV attachment.
type EmailSender interface {
	Send(subject, body string, to []string, csvData []byte) error
}

type FeeService struct {
	seasons       repositories.SeasonRepository
	competitions  repositories.CompetitionRepository
	rosters       repositories.RosterRepository
	international repositories.InternationalRepository
	email         EmailSender
	logger        *slog.Logger
}

func NewFeeService(
	seasons repositories.SeasonRepository,
	competitions repositories.CompetitionRepository,
	rosters repositories.RosterRepository,
	international repositories.InternationalRepository,
	email EmailSender,
	logger *slog.Logger,
) *FeeService {
	return &FeeService{
		seasons:       seasons,
		competitions:  competitions,
		rosters:       rosters,
		international: international,
		email:         email,
		logger:        logger,
	}
}

// CalculateSeasonFees computes every fee-owing member of the season, keyed by
// member id. The optional club filter restricts the member set without
// changing per-member amounts. When exec is a transaction the participation
// queries run inside it, which the invoice sweep relies on.
func (s *FeeService) CalculateSeasonFees(ctx context.Context, exec repositories.SQLExecutor, seasonID int, clubID *int) (map[int]*SeasonFeeData, error) {
	season, err := s.seasons.GetByID(ctx, seasonID)
	if err != nil {
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, err
	}

	participations, err := s.listParticipations(ctx, exec, seasonID)
	if err != nil {
		return nil, err
	}

	result := make(map[int]*SeasonFeeData)
	for _, p := range participations {
		if clubID != nil && p.ClubID != *clubID {
			continue
		}
		if p.FeeType == models.FeeTypeFree {
			continue
		}

		data, ok := result[p.MemberID]
		if !ok {
			data = &SeasonFeeData{Member: p.Member, ClubID: p.ClubID}
			result[p.MemberID] = data
		}

		ref := TournamentRef{ID: p.TournamentID, Name: p.TournamentName}
		switch p.FeeType {
		case models.FeeTypeRegular:
			data.RegularTournaments = append(data.RegularTournaments, ref)
		case models.FeeTypeDiscounted:
			data.DiscountedTournaments = append(data.DiscountedTournaments, ref)
		}
	}

	// Priority merge, never a sum: one regular participation prices the
	// whole season at the regular fee.
	for _, data := range result {
		if len(data.RegularTournaments) > 0 {
			data.Amount = season.RegularFee
		} else {
			data.Amount = season.DiscountedFee
		}
	}

	return result, nil
}

// ParticipationDays sums, per member, the inclusive day span of every
// tournament attended in the season. Free tournaments count toward days even
// though they never contribute fees.
func (s *FeeService) ParticipationDays(ctx context.Context, seasonID int) (map[int]int, error) {
	participations, err := s.listParticipations(ctx, nil, seasonID)
	if err != nil {
		return nil, err
	}

	days := make(map[int]int)
	for _, p := range participations {
		span := int(p.TournamentEnd.Sub(p.TournamentStart).Hours()/24) + 1
		days[p.MemberID] += span
	}
	return days, nil
}

// SeasonFeesForCheck emails a CSV preview of the season fees to the given
// recipients, typically the requesting user plus the federation office
// address. Nothing is persisted.
func (s *FeeService) SeasonFeesForCheck(ctx context.Context, recipients []string, seasonID int, clubID *int) error {
	season, err := s.seasons.GetByID(ctx, seasonID)
	if err != nil {
		return err
	}

	fees, err := s.CalculateSeasonFees(ctx, nil, seasonID, clubID)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(fees))
	for _, data := range fees {
		rows = append(rows, []string{
			data.Member.FullName(),
			fmt.Sprintf("%d", data.ClubID),
			fmt.Sprintf("%d", data.Amount),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	csvData, err := utils.BuildCSV([]string{"Member", "Club", "Amount"}, rows)
	if err != nil {
		return fmt.Errorf("failed to build fees csv: %w", err)
	}

	subject := "Season fees check: " + season.Name
	body := fmt.Sprintf("Season fee preview for %s, %d members owe fees.", season.Name, len(fees))
	return s.email.Send(subject, body, recipients, csvData)
}

// CompetitionOnlyFees reports members whose only participation in the season
// is in tournaments of the given competition. Used to price one-off entries.
func (s *FeeService) CompetitionOnlyFees(ctx context.Context, competitionID int) (*CompetitionOnlyFeeReport, error) {
	competition, err := s.competitions.GetWithDetails(ctx, competitionID)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}

	participations, err := s.listParticipations(ctx, nil, competition.SeasonID)
	if err != nil {
		return nil, err
	}

	byMember := make(map[int][]*models.SeasonParticipation)
	for _, p := range participations {
		byMember[p.MemberID] = append(byMember[p.MemberID], p)
	}

	feeAmount := feeForType(competition.Season, competition.FeeType)
	report := &CompetitionOnlyFeeReport{Competition: competition}

	memberIDs := make([]int, 0, len(byMember))
	for memberID := range byMember {
		memberIDs = append(memberIDs, memberID)
	}
	sort.Ints(memberIDs)

	for _, memberID := range memberIDs {
		memberParticipations := byMember[memberID]
		onlyThisCompetition := true
		for _, p := range memberParticipations {
			if p.CompetitionID != competition.ID {
				onlyThisCompetition = false
				break
			}
		}
		if !onlyThisCompetition || feeAmount == 0 {
			continue
		}
		report.Members = append(report.Members, &SeasonFeeData{
			Member: memberParticipations[0].Member,
			ClubID: memberParticipations[0].ClubID,
			Amount: feeAmount,
		})
		report.Total += feeAmount
	}

	return report, nil
}

func (s *FeeService) listParticipations(ctx context.Context, exec repositories.SQLExecutor, seasonID int) ([]*models.SeasonParticipation, error) {
	domestic, err := s.rosters.ListSeasonParticipations(ctx, exec, seasonID)
	if err != nil {
		return nil, err
	}
	international, err := s.international.ListSeasonParticipations(ctx, exec, seasonID)
	if err != nil {
		return nil, err
	}
	return append(domestic, international...), nil
}

func feeForType(season *models.Season, feeType models.FeeType) int64 {
	switch feeType {
	case models.FeeTypeRegular:
		return season.RegularFee
	case models.FeeTypeDiscounted:
		return season.DiscountedFee
	}
	return 0
}
