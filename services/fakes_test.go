package services

import (
	"context"
	"time"

	"github.com/frisbee-cz/evidence/clients"
	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
	"github.com/google/uuid"
)

// In-memory fakes shared by the service tests. Each fake embeds its
// repository interface so only the methods a test exercises need a stub;
// an unexpected call panics and points straight at the gap.

type sentEmail struct {
	subject string
	body    string
	to      []string
	csvData []byte
}

type fakeEmailSender struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmailSender) Send(subject, body string, to []string, csvData []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{subject: subject, body: body, to: to, csvData: csvData})
	return nil
}

type sentNotification struct {
	clubID  int
	subject string
	message string
}

type fakeNotifier struct {
	notes []sentNotification
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, clubID int, subject, message string) error {
	if f.err != nil {
		return f.err
	}
	f.notes = append(f.notes, sentNotification{clubID: clubID, subject: subject, message: message})
	return nil
}

// fakeTx satisfies repositories.Tx without a database. Query methods come
// from the embedded nil interface, so any repository that actually runs SQL
// against it panics.
type fakeTx struct {
	repositories.SQLExecutor
	commits   int
	rollbacks int
}

func (t *fakeTx) Commit() error   { t.commits++; return nil }
func (t *fakeTx) Rollback() error { t.rollbacks++; return nil }

type fakeTxBeginner struct {
	tx *fakeTx
}

func (b *fakeTxBeginner) BeginTx(_ context.Context) (repositories.Tx, error) {
	if b.tx == nil {
		b.tx = &fakeTx{}
	}
	return b.tx, nil
}

type fakeSeasonRepo struct {
	repositories.SeasonRepository
	seasons map[int]*models.Season
}

func (f *fakeSeasonRepo) GetByID(_ context.Context, id int) (*models.Season, error) {
	season, ok := f.seasons[id]
	if !ok {
		return nil, repositories.ErrSeasonNotFound
	}
	return season, nil
}

func (f *fakeSeasonRepo) GetByIDForUpdate(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Season, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeSeasonRepo) SetInvoicesGeneratedAt(_ context.Context, _ repositories.SQLExecutor, seasonID int, generatedAt time.Time) error {
	season, ok := f.seasons[seasonID]
	if !ok {
		return repositories.ErrSeasonNotFound
	}
	if season.InvoicesGeneratedAt != nil {
		return repositories.ErrSeasonAlreadyInvoiced
	}
	season.InvoicesGeneratedAt = &generatedAt
	return nil
}

type fakeCompetitionRepo struct {
	repositories.CompetitionRepository
	competitions map[int]*models.Competition
	divisions    map[int]*models.Division
}

func (f *fakeCompetitionRepo) GetDivision(_ context.Context, id int) (*models.Division, error) {
	division, ok := f.divisions[id]
	if !ok {
		return nil, repositories.ErrDivisionNotFound
	}
	return division, nil
}

func (f *fakeCompetitionRepo) GetWithDetails(_ context.Context, id int) (*models.Competition, error) {
	competition, ok := f.competitions[id]
	if !ok {
		return nil, repositories.ErrCompetitionNotFound
	}
	return competition, nil
}

type tournamentMemberKey struct {
	tournamentID int
	memberID     int
}

type fakeRosterRepo struct {
	repositories.RosterRepository

	participations []*models.SeasonParticipation
	entries        map[int]*models.MemberAtTournament
	rosters        map[int][]*models.MemberAtTournament
	existing       map[tournamentMemberKey]*models.MemberAtTournament
	existingTeam   map[tournamentMemberKey]string
	captains       map[int]bool
	spiritCaptains map[int]bool
	takenJerseys   map[int]map[int]bool

	created   []*models.MemberAtTournament
	updated   []*models.MemberAtTournament
	deleted   []int
	createErr error
}

func (f *fakeRosterRepo) ListSeasonParticipations(_ context.Context, _ repositories.SQLExecutor, _ int) ([]*models.SeasonParticipation, error) {
	return f.participations, nil
}

func (f *fakeRosterRepo) Create(_ context.Context, entry *models.MemberAtTournament) error {
	if f.createErr != nil {
		return f.createErr
	}
	entry.ID = len(f.created) + 1
	f.created = append(f.created, entry)
	return nil
}

func (f *fakeRosterRepo) GetByID(_ context.Context, id int) (*models.MemberAtTournament, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, repositories.ErrRosterEntryNotFound
	}
	return entry, nil
}

func (f *fakeRosterRepo) Update(_ context.Context, entry *models.MemberAtTournament) error {
	f.updated = append(f.updated, entry)
	return nil
}

func (f *fakeRosterRepo) Delete(_ context.Context, id int) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRosterRepo) ListByTeamAtTournament(_ context.Context, teamAtTournamentID int) ([]*models.MemberAtTournament, error) {
	return f.rosters[teamAtTournamentID], nil
}

func (f *fakeRosterRepo) FindByTournamentAndMember(_ context.Context, tournamentID, memberID int) (*models.MemberAtTournament, string, error) {
	key := tournamentMemberKey{tournamentID: tournamentID, memberID: memberID}
	entry, ok := f.existing[key]
	if !ok {
		return nil, "", repositories.ErrRosterEntryNotFound
	}
	return entry, f.existingTeam[key], nil
}

func (f *fakeRosterRepo) CaptainExists(_ context.Context, teamAtTournamentID int) (bool, error) {
	return f.captains[teamAtTournamentID], nil
}

func (f *fakeRosterRepo) SpiritCaptainExists(_ context.Context, teamAtTournamentID int) (bool, error) {
	return f.spiritCaptains[teamAtTournamentID], nil
}

func (f *fakeRosterRepo) JerseyNumberTaken(_ context.Context, teamAtTournamentID, jerseyNumber int) (bool, error) {
	return f.takenJerseys[teamAtTournamentID][jerseyNumber], nil
}

type teamResult struct {
	teamID         int
	finalPlacement *int
	totalTeams     *int
}

type fakeInternationalRepo struct {
	repositories.InternationalRepository
	participations []*models.SeasonParticipation
	tournaments    map[int]*models.InternationalTournament
	teams          map[int]*models.TeamAtInternationalTournament
	teamConflict   bool
	results        []teamResult
	nextID         int
}

func (f *fakeInternationalRepo) ListSeasonParticipations(_ context.Context, _ repositories.SQLExecutor, _ int) ([]*models.SeasonParticipation, error) {
	return f.participations, nil
}

func (f *fakeInternationalRepo) Create(_ context.Context, tournament *models.InternationalTournament) error {
	f.nextID++
	tournament.ID = f.nextID
	if f.tournaments == nil {
		f.tournaments = map[int]*models.InternationalTournament{}
	}
	f.tournaments[tournament.ID] = tournament
	return nil
}

func (f *fakeInternationalRepo) GetByID(_ context.Context, id int) (*models.InternationalTournament, error) {
	tournament, ok := f.tournaments[id]
	if !ok {
		return nil, repositories.ErrIntlTournamentNotFound
	}
	return tournament, nil
}

func (f *fakeInternationalRepo) CreateTeam(_ context.Context, team *models.TeamAtInternationalTournament) error {
	if f.teamConflict {
		return repositories.ErrIntlTeamConflict
	}
	f.nextID++
	team.ID = f.nextID
	if f.teams == nil {
		f.teams = map[int]*models.TeamAtInternationalTournament{}
	}
	f.teams[team.ID] = team
	return nil
}

func (f *fakeInternationalRepo) ListTeams(_ context.Context, tournamentID int) ([]*models.TeamAtInternationalTournament, error) {
	var out []*models.TeamAtInternationalTournament
	for id := 1; id <= f.nextID; id++ {
		if team, ok := f.teams[id]; ok && team.TournamentID == tournamentID {
			out = append(out, team)
		}
	}
	return out, nil
}

func (f *fakeInternationalRepo) UpdateTeamResult(_ context.Context, teamID int, finalPlacement, totalTeams *int) error {
	if _, ok := f.teams[teamID]; !ok {
		return repositories.ErrIntlTeamNotFound
	}
	f.results = append(f.results, teamResult{teamID: teamID, finalPlacement: finalPlacement, totalTeams: totalTeams})
	return nil
}

type fakeTeamRepo struct {
	repositories.TeamRepository
	teams map[int]*models.Team
}

func (f *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	team, ok := f.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return team, nil
}

type fakeTournamentRepo struct {
	repositories.TournamentRepository
	tournaments       map[int]*models.Tournament
	teamsAtTournament map[int]*models.TeamAtTournament
}

func (f *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	tournament, ok := f.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return tournament, nil
}

func (f *fakeTournamentRepo) GetTeamAtTournamentWithDetails(_ context.Context, id int) (*models.TeamAtTournament, error) {
	team, ok := f.teamsAtTournament[id]
	if !ok {
		return nil, repositories.ErrTeamAtTournamentNotFound
	}
	return team, nil
}

type fakeMemberRepo struct {
	repositories.MemberRepository

	members      map[int]*models.Member
	searchResult []*models.Member
	tokens       map[int]uuid.UUID
	licences     map[int][]*models.CoachLicence

	createErr error
	updateErr error
	nextID    int
}

func (f *fakeMemberRepo) ListForExport(_ context.Context) ([]*models.Member, error) {
	var out []*models.Member
	for id := 1; id <= f.nextID; id++ {
		if member, ok := f.members[id]; ok && member.IsActive {
			out = append(out, member)
		}
	}
	return out, nil
}

func (f *fakeMemberRepo) ListCoachLicences(_ context.Context, memberID int) ([]*models.CoachLicence, error) {
	return f.licences[memberID], nil
}

func (f *fakeMemberRepo) Create(_ context.Context, member *models.Member) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	member.ID = f.nextID
	if f.members == nil {
		f.members = make(map[int]*models.Member)
	}
	f.members[member.ID] = member
	return nil
}

func (f *fakeMemberRepo) GetByID(_ context.Context, id int) (*models.Member, error) {
	member, ok := f.members[id]
	if !ok {
		return nil, repositories.ErrMemberNotFound
	}
	return member, nil
}

func (f *fakeMemberRepo) Update(_ context.Context, member *models.Member) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.members[member.ID] = member
	return nil
}

func (f *fakeMemberRepo) ListByClub(_ context.Context, clubID int, activeOnly bool) ([]*models.Member, error) {
	var result []*models.Member
	for id := 1; id <= f.nextID; id++ {
		member, ok := f.members[id]
		if !ok || member.ClubID != clubID {
			continue
		}
		if activeOnly && !member.IsActive {
			continue
		}
		result = append(result, member)
	}
	return result, nil
}

func (f *fakeMemberRepo) Search(_ context.Context, _ string, _ int) ([]*models.Member, error) {
	return f.searchResult, nil
}

func (f *fakeMemberRepo) SetConfirmationToken(_ context.Context, memberID int, token uuid.UUID) error {
	if f.tokens == nil {
		f.tokens = make(map[int]uuid.UUID)
	}
	f.tokens[memberID] = token
	return nil
}

type fakeAgentRepo struct {
	repositories.AgentRepository

	agents       map[int]*models.Agent
	affiliations map[int]map[int]bool
	nextID       int
}

// Create and the getters copy agent records so callers mutating the result
// (clearing the password hash) do not corrupt the store.
func (f *fakeAgentRepo) Create(_ context.Context, agent *models.Agent) error {
	for _, existing := range f.agents {
		if existing.Email == agent.Email {
			return repositories.ErrAgentEmailExists
		}
	}
	f.nextID++
	agent.ID = f.nextID
	if f.agents == nil {
		f.agents = make(map[int]*models.Agent)
	}
	stored := *agent
	f.agents[agent.ID] = &stored
	return nil
}

func (f *fakeAgentRepo) GetByID(_ context.Context, id int) (*models.Agent, error) {
	agent, ok := f.agents[id]
	if !ok {
		return nil, repositories.ErrAgentNotFound
	}
	copied := *agent
	return &copied, nil
}

func (f *fakeAgentRepo) GetByEmail(_ context.Context, email string) (*models.Agent, error) {
	for _, agent := range f.agents {
		if agent.Email == email {
			copied := *agent
			return &copied, nil
		}
	}
	return nil, repositories.ErrAgentNotFound
}

func (f *fakeAgentRepo) HasActiveAffiliation(_ context.Context, agentID, clubID int) (bool, error) {
	return f.affiliations[agentID][clubID], nil
}

type stateChange struct {
	transferID int
	state      models.TransferState
}

type fakeTransferRepo struct {
	repositories.TransferRepository

	transfers map[int]*models.Transfer
	nextID    int

	stateChanges   []stateChange
	updateStateErr error
}

func (f *fakeTransferRepo) Create(_ context.Context, transfer *models.Transfer) error {
	f.nextID++
	transfer.ID = f.nextID
	if f.transfers == nil {
		f.transfers = make(map[int]*models.Transfer)
	}
	f.transfers[transfer.ID] = transfer
	return nil
}

func (f *fakeTransferRepo) GetByID(_ context.Context, id int) (*models.Transfer, error) {
	transfer, ok := f.transfers[id]
	if !ok {
		return nil, repositories.ErrTransferNotFound
	}
	return transfer, nil
}

func (f *fakeTransferRepo) ListByState(_ context.Context, state models.TransferState) ([]*models.Transfer, error) {
	var result []*models.Transfer
	for id := 1; id <= f.nextID; id++ {
		if transfer, ok := f.transfers[id]; ok && transfer.State == state {
			result = append(result, transfer)
		}
	}
	return result, nil
}

func (f *fakeTransferRepo) UpdateState(_ context.Context, _ repositories.SQLExecutor, transferID int, state models.TransferState, _ *int, _ *time.Time) error {
	if f.updateStateErr != nil {
		return f.updateStateErr
	}
	f.stateChanges = append(f.stateChanges, stateChange{transferID: transferID, state: state})
	return nil
}

type fakeClubRepo struct {
	repositories.ClubRepository
	clubs map[int]*models.Club
}

func (f *fakeClubRepo) GetByID(_ context.Context, id int) (*models.Club, error) {
	club, ok := f.clubs[id]
	if !ok {
		return nil, repositories.ErrClubNotFound
	}
	return club, nil
}

type fakeInvoiceRepo struct {
	repositories.InvoiceRepository
	invoices map[int]*models.Invoice
	drafts   []*models.Invoice
	open     []*models.Invoice
	updated  []*models.Invoice
	nextID   int
}

func (f *fakeInvoiceRepo) Create(_ context.Context, _ repositories.SQLExecutor, invoice *models.Invoice) error {
	f.nextID++
	invoice.ID = f.nextID
	if f.invoices == nil {
		f.invoices = map[int]*models.Invoice{}
	}
	f.invoices[invoice.ID] = invoice
	return nil
}

func (f *fakeInvoiceRepo) ExistsByClubSeasonType(_ context.Context, _ repositories.SQLExecutor, clubID, seasonID int, invoiceType models.InvoiceType) (bool, error) {
	for _, invoice := range f.invoices {
		if invoice.ClubID != clubID || invoice.Type != invoiceType {
			continue
		}
		for _, relation := range invoice.Relations {
			if relation.Kind == models.RelationSeason && relation.ID == seasonID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeInvoiceRepo) GetByID(_ context.Context, id int) (*models.Invoice, error) {
	invoice, ok := f.invoices[id]
	if !ok {
		return nil, repositories.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (f *fakeInvoiceRepo) ListByClub(_ context.Context, clubID int) ([]*models.Invoice, error) {
	var out []*models.Invoice
	for id := 1; id <= len(f.invoices)+1; id++ {
		if invoice, ok := f.invoices[id]; ok && invoice.ClubID == clubID {
			out = append(out, invoice)
		}
	}
	return out, nil
}

func (f *fakeInvoiceRepo) ListDraftOlderThan(_ context.Context, _ time.Duration) ([]*models.Invoice, error) {
	return f.drafts, nil
}

func (f *fakeInvoiceRepo) ListOpenCreatedSince(_ context.Context, _ time.Time) ([]*models.Invoice, error) {
	return f.open, nil
}

func (f *fakeInvoiceRepo) UpdateFakturoidData(_ context.Context, _ repositories.SQLExecutor, invoice *models.Invoice) error {
	f.updated = append(f.updated, invoice)
	return nil
}

type applicationTransition struct {
	invoiceID int
	from      models.ApplicationState
	to        models.ApplicationState
}

type fakeApplicationRepo struct {
	repositories.ApplicationRepository
	transitions []applicationTransition
}

func (f *fakeApplicationRepo) UpdateStateForInvoice(_ context.Context, _ repositories.SQLExecutor, invoiceID int, fromState, toState models.ApplicationState) error {
	f.transitions = append(f.transitions, applicationTransition{invoiceID: invoiceID, from: fromState, to: toState})
	return nil
}

type fakeFakturoidClient struct {
	created   []clients.FakturoidInvoice
	createErr error
	remote    map[int]*clients.FakturoidInvoice
	nextID    int
}

func (f *fakeFakturoidClient) CreateInvoice(_ context.Context, _ int, lines []clients.FakturoidLine) (*clients.FakturoidInvoice, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	var total float64
	for _, line := range lines {
		total += line.Quantity * line.UnitPrice
	}
	invoice := clients.FakturoidInvoice{
		ID:            100 + f.nextID,
		Status:        clients.FakturoidStatusOpen,
		Total:         total,
		PublicHTMLURL: "https://app.fakturoid.cz/test/invoice",
	}
	f.created = append(f.created, invoice)
	return &invoice, nil
}

func (f *fakeFakturoidClient) GetInvoice(_ context.Context, invoiceID int) (*clients.FakturoidInvoice, error) {
	invoice, ok := f.remote[invoiceID]
	if !ok {
		return nil, clients.ErrFakturoidNotFound
	}
	return invoice, nil
}

func (f *fakeFakturoidClient) GetSubject(_ context.Context, subjectID int) (*clients.FakturoidSubject, error) {
	return &clients.FakturoidSubject{ID: subjectID}, nil
}
