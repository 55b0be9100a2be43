package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
	"github.com/frisbee-cz/evidence/utils"
	"golang.org/x/sync/errgroup"
)

// nsaExportHeader is the fixed column set of the national sport agency
// registry file (https://rejstriksportu.cz/dashboard/public/dokumentace).
var nsaExportHeader = []string{
	"JMENO", "PRIJMENI", "TITUL_PRED", "TITUL_ZA",
	"RODNE_CISLO", "OBCANSTVI", "DATUM_NAROZENI", "POHLAVI",
	"NAZEV_OBCE", "NAZEV_CASTI_OBCE", "NAZEV_ULICE", "CISLO_POPISNE", "CISLO_ORIENTACNI", "PSC",
	"SPORTOVEC", "SPORTOVCEM_OD", "SPORTOVCEM_DO", "SPORTOVEC_DRUH_SPORTU", "SPORTOVEC_CETNOST",
	"SPORTOVEC_UCAST_SOUTEZE_POCET", "TRENER", "TRENEREM_OD", "TRENEREM_DO", "TRENER_CETNOST",
	"TRENER_DRUH_SPORTU", "SVAZ_ICO_SKTJ",
}

// nsaSportCode is the registry's code for flying disc sports.
const nsaSportCode = "98.3"

type ExportService struct {
	members repositories.MemberRepository
	fees    *FeeService
	email   EmailSender
	logger  *slog.Logger
}

func NewExportService(
	members repositories.MemberRepository,
	fees *FeeService,
	email EmailSender,
	logger *slog.Logger,
) *ExportService {
	return &ExportService{
		members: members,
		fees:    fees,
		email:   email,
		logger:  logger,
	}
}

// GenerateNSAExport builds the registry file for one season, optionally
// narrowed to one club, and mails it to the requesting user. Eligible members
// are those with tournament participation whose fees are not free-only.
func (s *ExportService) GenerateNSAExport(ctx context.Context, userEmail string, seasonID int, clubID *int) error {
	s.logger.Info("NSA export requested",
		slog.String("user", userEmail), slog.Int("season_id", seasonID))

	var (
		seasonFees        map[int]*SeasonFeeData
		participationDays map[int]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		seasonFees, err = s.fees.CalculateSeasonFees(gctx, nil, seasonID, clubID)
		return err
	})
	g.Go(func() error {
		var err error
		participationDays, err = s.fees.ParticipationDays(gctx, seasonID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("collecting export data: %w", err)
	}

	members, err := s.members.ListForExport(ctx)
	if err != nil {
		return err
	}

	today := time.Now()
	var rows [][]string
	for _, member := range members {
		if clubID != nil && member.ClubID != *clubID {
			continue
		}
		days, participated := participationDays[member.ID]
		if !participated {
			continue
		}
		// Free-only players owe no fee and are not reported.
		if _, hasFees := seasonFees[member.ID]; !hasFees {
			continue
		}

		licences, err := s.members.ListCoachLicences(ctx, member.ID)
		if err != nil {
			return err
		}
		coachFlag := "0"
		var earliestLicence time.Time
		for _, licence := range licences {
			if licence.IsValidOn(today) {
				coachFlag = "1"
			}
			if earliestLicence.IsZero() || licence.ValidFrom.Before(earliestLicence) {
				earliestLicence = licence.ValidFrom
			}
		}
		coachSince := ""
		if coachFlag == "1" && !earliestLicence.IsZero() {
			coachSince = formatNSADate(earliestLicence)
		}

		identificationNumber := ""
		if member.Club != nil {
			identificationNumber = member.Club.IdentificationNumber
		}

		rows = append(rows, []string{
			member.FirstName,
			member.LastName,
			"",
			"",
			member.BirthNumber,
			utils.CountryAlpha3(member.Citizenship),
			formatNSADate(member.BirthDate),
			nsaSexLabel(member.Sex),
			member.City,
			"",
			member.Street,
			member.HouseNumber,
			"",
			member.PostalCode,
			"1",
			formatNSADate(member.CreatedAt),
			"",
			nsaSportCode,
			"",
			fmt.Sprintf("%d", days),
			coachFlag,
			coachSince,
			"",
			"",
			nsaSportCode,
			identificationNumber,
		})
	}

	csvData, err := utils.BuildCSV(nsaExportHeader, rows)
	if err != nil {
		return fmt.Errorf("building export file: %w", err)
	}

	body := "Hi. Here is the NSA export for the requested season."
	if err := s.email.Send("NSA export", body, []string{userEmail}, csvData); err != nil {
		return fmt.Errorf("sending export: %w", err)
	}

	s.logger.Info("NSA export sent",
		slog.String("user", userEmail), slog.Int("members", len(rows)))
	return nil
}

// formatNSADate renders D.M.YYYY without leading zeros, the registry's
// expected form.
func formatNSADate(date time.Time) string {
	return fmt.Sprintf("%d.%d.%d", date.Day(), int(date.Month()), date.Year())
}

func nsaSexLabel(sex models.MemberSex) string {
	if sex == models.SexFemale {
		return "Ž"
	}
	return "M"
}
