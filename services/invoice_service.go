package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/frisbee-cz/evidence/clients"
	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
)

const (
	// Draft invoices younger than this are left alone by the resend job so
	// the primary sweep can finish registering them first.
	draftResendMinAge = 60 * time.Second
	// Open invoices older than this stop being polled for remote status.
	openInvoiceMaxAge = 180 * 24 * time.Hour
)

type InvoiceService struct {
	db           repositories.TxBeginner
	seasons      repositories.SeasonRepository
	clubs        repositories.ClubRepository
	invoices     repositories.InvoiceRepository
	applications repositories.ApplicationRepository
	competitions repositories.CompetitionRepository
	fees         *FeeService
	fakturoid    clients.FakturoidClient
	notifier     ClubNotifier
	email        EmailSender
	logger       *slog.Logger
}

func NewInvoiceService(
	db repositories.TxBeginner,
	seasons repositories.SeasonRepository,
	clubs repositories.ClubRepository,
	invoices repositories.InvoiceRepository,
	applications repositories.ApplicationRepository,
	competitions repositories.CompetitionRepository,
	fees *FeeService,
	fakturoid clients.FakturoidClient,
	notifier ClubNotifier,
	email EmailSender,
	logger *slog.Logger,
) *InvoiceService {
	return &InvoiceService{
		db:           db,
		seasons:      seasons,
		clubs:        clubs,
		invoices:     invoices,
		applications: applications,
		competitions: competitions,
		fees:         fees,
		fakturoid:    fakturoid,
		notifier:     notifier,
		email:        email,
		logger:       logger,
	}
}

type clubFeeTotal struct {
	clubID int
	total  int64
}

// GenerateSeasonInvoices runs the season invoice sweep inside one
// transaction. The season latch makes a full rerun a no-op; the per-club
// existence check makes a rerun after partial failure resume where it
// stopped. Both guards stay, they cover different failure modes.
func (s *InvoiceService) GenerateSeasonInvoices(ctx context.Context, seasonID int) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin invoice transaction: %w", err)
	}
	defer tx.Rollback()

	season, err := s.seasons.GetByIDForUpdate(ctx, tx, seasonID)
	if err != nil {
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return ErrSeasonNotFound
		}
		return err
	}
	if season.InvoicesGeneratedAt != nil {
		s.logger.Warn("season invoices already generated, skipping",
			slog.Int("season_id", seasonID),
			slog.Time("generated_at", *season.InvoicesGeneratedAt))
		return nil
	}

	totals, err := s.clubTotals(ctx, tx, seasonID)
	if err != nil {
		return err
	}

	lineName := "Poplatky za sezónu " + season.Name

	type pendingNotification struct {
		clubID  int
		subject string
		message string
	}
	var notifications []pendingNotification

	for _, entry := range totals {
		club, err := s.clubs.GetByID(ctx, entry.clubID)
		if err != nil {
			return err
		}
		if club.FakturoidSubjectID == nil {
			s.logger.Info("club has no invoicing subject, skipping",
				slog.Int("club_id", club.ID), slog.String("club", club.Name))
			continue
		}
		if entry.total <= 0 {
			s.logger.Info("club has no fees, skipping", slog.Int("club_id", club.ID))
			continue
		}

		exists, err := s.invoices.ExistsByClubSeasonType(ctx, tx, club.ID, seasonID, models.InvoiceSeasonPlayerFees)
		if err != nil {
			return err
		}
		if exists {
			s.logger.Info("season invoice already exists for club, skipping",
				slog.Int("club_id", club.ID), slog.Int("season_id", seasonID))
			continue
		}

		invoice := &models.Invoice{
			ClubID: club.ID,
			State:  models.InvoiceDraft,
			Type:   models.InvoiceSeasonPlayerFees,
			Amount: entry.total,
			Lines:  []models.InvoiceLine{{Name: lineName, Amount: entry.total}},
			Relations: []models.InvoiceRelation{
				{Kind: models.RelationSeason, ID: seasonID},
			},
		}
		if err := s.invoices.Create(ctx, tx, invoice); err != nil {
			return err
		}

		// Remote registration happens inside the sweep, but its failure is
		// not fatal: the invoice stays DRAFT and the resend job picks it up.
		if err := s.registerWithFakturoid(ctx, tx, invoice, *club.FakturoidSubjectID); err != nil {
			s.logger.Error("failed to register invoice with fakturoid",
				slog.Int("invoice_id", invoice.ID),
				slog.Int("club_id", club.ID),
				slog.Any("error", err))
		}

		notifications = append(notifications, pendingNotification{
			clubID:  club.ID,
			subject: "Season fees invoice",
			message: fmt.Sprintf("An invoice of %d CZK for season %s has been issued to your club.", entry.total, season.Name),
		})
	}

	now := time.Now()
	if err := s.seasons.SetInvoicesGeneratedAt(ctx, tx, seasonID, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invoice transaction: %w", err)
	}

	// Fan out only after the invoices are durable.
	for _, n := range notifications {
		if err := s.notifier.Notify(ctx, n.clubID, n.subject, n.message); err != nil {
			s.logger.Warn("failed to notify club about invoice",
				slog.Int("club_id", n.clubID), slog.Any("error", err))
		}
	}

	s.logger.Info("season invoice sweep finished",
		slog.Int("season_id", seasonID),
		slog.Int("invoices_created", len(notifications)))
	return nil
}

// GenerateSeasonInvoicesDryRun emails a preview of the eligible clubs and
// amounts. No invoices, no notifications, no latch; it runs even when the
// latch is already set.
func (s *InvoiceService) GenerateSeasonInvoicesDryRun(ctx context.Context, seasonID int, recipient string) error {
	season, err := s.seasons.GetByID(ctx, seasonID)
	if err != nil {
		return err
	}

	totals, err := s.clubTotals(ctx, nil, seasonID)
	if err != nil {
		return err
	}

	var lines []string
	for _, entry := range totals {
		club, err := s.clubs.GetByID(ctx, entry.clubID)
		if err != nil {
			return err
		}
		if club.FakturoidSubjectID == nil || entry.total <= 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (ID %d): %d CZK", club.Name, club.ID, entry.total))
	}

	subject := "Season invoices dry run: " + season.Name
	body := "Clubs that would be invoiced:\n\n" + strings.Join(lines, "\n")
	if len(lines) == 0 {
		body = "No clubs would be invoiced."
	}
	return s.email.Send(subject, body, []string{recipient}, nil)
}

// CreateDepositInvoice sums the deposits of the club's applications that have
// no invoice yet and creates one COMPETITION_DEPOSIT invoice covering them.
func (s *InvoiceService) CreateDepositInvoice(ctx context.Context, clubID int) (*models.Invoice, error) {
	club, err := s.clubs.GetByID(ctx, clubID)
	if err != nil {
		if errors.Is(err, repositories.ErrClubNotFound) {
			return nil, ErrClubNotFound
		}
		return nil, err
	}
	if club.FakturoidSubjectID == nil {
		return nil, ErrClubNotInvoicable
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin deposit transaction: %w", err)
	}
	defer tx.Rollback()

	applications, err := s.applications.ListUninvoicedByClub(ctx, tx, clubID)
	if err != nil {
		return nil, err
	}
	if len(applications) == 0 {
		return nil, ErrNotFound
	}

	var total int64
	var lines []models.InvoiceLine
	var relations []models.InvoiceRelation
	var applicationIDs []int
	for _, application := range applications {
		competition, err := s.competitions.GetByID(ctx, application.CompetitionID)
		if err != nil {
			return nil, err
		}
		if competition.Deposit <= 0 {
			continue
		}
		total += competition.Deposit
		lines = append(lines, models.InvoiceLine{
			Name:   fmt.Sprintf("Záloha: %s (%s)", application.TeamName, competition.Name),
			Amount: competition.Deposit,
		})
		relations = append(relations, models.InvoiceRelation{
			Kind: models.RelationApplication,
			ID:   application.ID,
		})
		applicationIDs = append(applicationIDs, application.ID)
	}
	if total == 0 {
		return nil, ErrNotFound
	}

	invoice := &models.Invoice{
		ClubID:    clubID,
		State:     models.InvoiceDraft,
		Type:      models.InvoiceCompetitionDeposit,
		Amount:    total,
		Lines:     lines,
		Relations: relations,
	}
	if err := s.invoices.Create(ctx, tx, invoice); err != nil {
		return nil, err
	}
	if err := s.applications.SetInvoice(ctx, tx, applicationIDs, invoice.ID); err != nil {
		return nil, err
	}

	if err := s.registerWithFakturoid(ctx, tx, invoice, *club.FakturoidSubjectID); err != nil {
		s.logger.Error("failed to register deposit invoice with fakturoid",
			slog.Int("invoice_id", invoice.ID), slog.Any("error", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deposit transaction: %w", err)
	}
	return invoice, nil
}

// ResendDraftInvoices re-registers DRAFT invoices that are older than the
// minimum age with the invoicing service. Runs periodically.
func (s *InvoiceService) ResendDraftInvoices(ctx context.Context) error {
	drafts, err := s.invoices.ListDraftOlderThan(ctx, draftResendMinAge)
	if err != nil {
		return err
	}

	for _, draft := range drafts {
		invoice, err := s.invoices.GetByID(ctx, draft.ID)
		if err != nil {
			return err
		}
		club, err := s.clubs.GetByID(ctx, invoice.ClubID)
		if err != nil {
			return err
		}
		if club.FakturoidSubjectID == nil {
			s.logger.Warn("draft invoice belongs to a club without invoicing subject",
				slog.Int("invoice_id", invoice.ID), slog.Int("club_id", club.ID))
			continue
		}
		if err := s.registerWithFakturoid(ctx, nil, invoice, *club.FakturoidSubjectID); err != nil {
			s.logger.Error("failed to resend draft invoice",
				slog.Int("invoice_id", invoice.ID), slog.Any("error", err))
			continue
		}
		s.logger.Info("draft invoice registered", slog.Int("invoice_id", invoice.ID))
	}
	return nil
}

// CheckFakturoidInvoices polls the remote status of OPEN invoices and mirrors
// paid/cancelled transitions locally, including linked applications.
func (s *InvoiceService) CheckFakturoidInvoices(ctx context.Context) error {
	since := time.Now().Add(-openInvoiceMaxAge)
	open, err := s.invoices.ListOpenCreatedSince(ctx, since)
	if err != nil {
		return err
	}

	for _, invoice := range open {
		if invoice.FakturoidInvoiceID == nil {
			continue
		}
		remote, err := s.fakturoid.GetInvoice(ctx, *invoice.FakturoidInvoiceID)
		if err != nil {
			s.logger.Error("failed to poll fakturoid invoice",
				slog.Int("invoice_id", invoice.ID),
				slog.Int("fakturoid_id", *invoice.FakturoidInvoiceID),
				slog.Any("error", err))
			continue
		}

		invoice.FakturoidStatus = remote.Status
		invoice.FakturoidTotal = remote.Total

		switch remote.Status {
		case clients.FakturoidStatusPaid:
			invoice.State = models.InvoicePaid
		case clients.FakturoidStatusCancelled, clients.FakturoidStatusUncollectible:
			invoice.State = models.InvoiceCanceled
		}

		if err := s.invoices.UpdateFakturoidData(ctx, nil, invoice); err != nil {
			return err
		}
		if invoice.State == models.InvoicePaid {
			err := s.applications.UpdateStateForInvoice(ctx, nil, invoice.ID,
				models.ApplicationAwaitingPayment, models.ApplicationPaid)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// registerWithFakturoid pushes the invoice to the remote service and flips it
// DRAFT→OPEN, either inside the caller's transaction or directly.
func (s *InvoiceService) registerWithFakturoid(ctx context.Context, exec repositories.SQLExecutor, invoice *models.Invoice, subjectID int) error {
	lines := make([]clients.FakturoidLine, 0, len(invoice.Lines))
	for _, line := range invoice.Lines {
		lines = append(lines, clients.FakturoidLine{
			Name:      line.Name,
			Quantity:  1,
			UnitPrice: float64(line.Amount),
		})
	}

	remote, err := s.fakturoid.CreateInvoice(ctx, subjectID, lines)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvoicingUnavailable, err)
	}

	invoice.State = models.InvoiceOpen
	invoice.FakturoidInvoiceID = &remote.ID
	invoice.FakturoidStatus = remote.Status
	invoice.FakturoidTotal = remote.Total
	invoice.FakturoidPublicURL = remote.PublicHTMLURL

	return s.invoices.UpdateFakturoidData(ctx, exec, invoice)
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id int) (*models.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrInvoiceNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return invoice, nil
}

func (s *InvoiceService) ListClubInvoices(ctx context.Context, clubID int) ([]*models.Invoice, error) {
	return s.invoices.ListByClub(ctx, clubID)
}

func (s *InvoiceService) clubTotals(ctx context.Context, exec repositories.SQLExecutor, seasonID int) ([]clubFeeTotal, error) {
	fees, err := s.fees.CalculateSeasonFees(ctx, exec, seasonID, nil)
	if err != nil {
		return nil, err
	}

	byClub := make(map[int]int64)
	for _, data := range fees {
		byClub[data.ClubID] += data.Amount
	}

	totals := make([]clubFeeTotal, 0, len(byClub))
	for clubID, total := range byClub {
		totals = append(totals, clubFeeTotal{clubID: clubID, total: total})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].clubID < totals[j].clubID })
	return totals, nil
}
