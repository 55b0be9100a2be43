package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frisbee-cz/evidence/clients"
	"github.com/frisbee-cz/evidence/models"
)

func intPtr(v int) *int { return &v }

type invoiceFixture struct {
	svc       *InvoiceService
	tx        *fakeTxBeginner
	invoices  *fakeInvoiceRepo
	apps      *fakeApplicationRepo
	fakturoid *fakeFakturoidClient
	notifier  *fakeNotifier
	email     *fakeEmailSender
}

// newInvoiceFixture builds an InvoiceService around in-memory fakes. The
// transaction beginner hands out a no-op Tx, so repository fakes see the
// same calls the postgres ones would.
func newInvoiceFixture(clubs map[int]*models.Club, seasons map[int]*models.Season, participations []*models.SeasonParticipation) *invoiceFixture {
	f := &invoiceFixture{
		tx:        &fakeTxBeginner{},
		invoices:  &fakeInvoiceRepo{invoices: map[int]*models.Invoice{}},
		apps:      &fakeApplicationRepo{},
		fakturoid: &fakeFakturoidClient{remote: map[int]*clients.FakturoidInvoice{}},
		notifier:  &fakeNotifier{},
		email:     &fakeEmailSender{},
	}
	fees := NewFeeService(
		&fakeSeasonRepo{seasons: seasons},
		&fakeCompetitionRepo{},
		&fakeRosterRepo{participations: participations},
		&fakeInternationalRepo{},
		f.email,
		testLogger(),
	)
	f.svc = NewInvoiceService(
		f.tx,
		&fakeSeasonRepo{seasons: seasons},
		&fakeClubRepo{clubs: clubs},
		f.invoices,
		f.apps,
		&fakeCompetitionRepo{},
		fees,
		f.fakturoid,
		f.notifier,
		f.email,
		testLogger(),
	)
	return f
}

func TestGenerateSeasonInvoicesDryRun(t *testing.T) {
	clubs := map[int]*models.Club{
		10: {ID: 10, Name: "Prague Devils", FakturoidSubjectID: intPtr(55)},
		20: {ID: 20, Name: "Brno Wild"},
	}
	seasons := map[int]*models.Season{
		1: {ID: 1, Name: "2026", RegularFee: 800, DiscountedFee: 400},
	}
	participations := []*models.SeasonParticipation{
		participation(1, 10, 1, 1, models.FeeTypeRegular, 2),
		participation(2, 20, 1, 1, models.FeeTypeRegular, 2),
	}

	f := newInvoiceFixture(clubs, seasons, participations)
	err := f.svc.GenerateSeasonInvoicesDryRun(context.Background(), 1, "admin@frisbee.cz")
	require.NoError(t, err)

	require.Len(t, f.email.sent, 1)
	mail := f.email.sent[0]
	assert.Equal(t, "Season invoices dry run: 2026", mail.subject)
	assert.Equal(t, []string{"admin@frisbee.cz"}, mail.to)
	assert.Contains(t, mail.body, "Prague Devils (ID 10): 800 CZK")
	assert.NotContains(t, mail.body, "Brno Wild", "clubs without an invoicing subject stay out of the preview")
	assert.Empty(t, f.invoices.updated, "a dry run must not touch invoices")
	assert.Empty(t, f.notifier.notes)
}

func TestGenerateSeasonInvoicesDryRunNoEligibleClubs(t *testing.T) {
	seasons := map[int]*models.Season{
		1: {ID: 1, Name: "2026", RegularFee: 800, DiscountedFee: 400},
	}

	f := newInvoiceFixture(map[int]*models.Club{}, seasons, nil)
	err := f.svc.GenerateSeasonInvoicesDryRun(context.Background(), 1, "admin@frisbee.cz")
	require.NoError(t, err)

	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "No clubs would be invoiced.", f.email.sent[0].body)
}

func sweepFixture() *invoiceFixture {
	clubs := map[int]*models.Club{
		10: {ID: 10, Name: "Prague Devils", FakturoidSubjectID: intPtr(55)},
		20: {ID: 20, Name: "Brno Wild"},
		30: {ID: 30, Name: "Ostrava Yeti", FakturoidSubjectID: intPtr(56)},
	}
	seasons := map[int]*models.Season{
		1: {ID: 1, Name: "2026", RegularFee: 800, DiscountedFee: 400},
	}
	participations := []*models.SeasonParticipation{
		participation(1, 10, 100, 1, models.FeeTypeRegular, 2),
		participation(2, 20, 100, 1, models.FeeTypeRegular, 2),
		participation(3, 30, 100, 1, models.FeeTypeDiscounted, 2),
	}
	return newInvoiceFixture(clubs, seasons, participations)
}

func TestGenerateSeasonInvoices(t *testing.T) {
	f := sweepFixture()
	err := f.svc.GenerateSeasonInvoices(context.Background(), 1)
	require.NoError(t, err)

	// Clubs 10 and 30 are invoicable; club 20 has no subject.
	require.Len(t, f.invoices.invoices, 2)
	first := f.invoices.invoices[1]
	assert.Equal(t, 10, first.ClubID)
	assert.Equal(t, models.InvoiceSeasonPlayerFees, first.Type)
	assert.Equal(t, int64(800), first.Amount)
	assert.Equal(t, models.InvoiceOpen, first.State, "registration flips the draft open")
	require.NotNil(t, first.FakturoidInvoiceID)
	require.Len(t, first.Lines, 1)
	assert.Equal(t, "Poplatky za sezónu 2026", first.Lines[0].Name)
	require.Len(t, first.Relations, 1)
	assert.Equal(t, models.RelationSeason, first.Relations[0].Kind)
	assert.Equal(t, 1, first.Relations[0].ID)

	assert.Equal(t, int64(400), f.invoices.invoices[2].Amount)

	require.Len(t, f.notifier.notes, 2)
	assert.Equal(t, 10, f.notifier.notes[0].clubID)
	assert.Equal(t, "Season fees invoice", f.notifier.notes[0].subject)
	assert.Contains(t, f.notifier.notes[0].message, "800 CZK for season 2026")

	season, _ := f.svc.seasons.GetByID(context.Background(), 1)
	assert.NotNil(t, season.InvoicesGeneratedAt, "the completion latch is set")
	assert.Equal(t, 1, f.tx.tx.commits)
}

func TestGenerateSeasonInvoicesRerunIsNoOp(t *testing.T) {
	f := sweepFixture()
	require.NoError(t, f.svc.GenerateSeasonInvoices(context.Background(), 1))
	require.Len(t, f.invoices.invoices, 2)

	// The latch short-circuits the second run before any club is touched.
	require.NoError(t, f.svc.GenerateSeasonInvoices(context.Background(), 1))
	assert.Len(t, f.invoices.invoices, 2)
	assert.Len(t, f.notifier.notes, 2)
}

func TestGenerateSeasonInvoicesResumesAfterPartialFailure(t *testing.T) {
	f := sweepFixture()

	// Club 10 was invoiced by an earlier run that died before setting the
	// latch; the rerun must fill in club 30 without duplicating club 10.
	require.NoError(t, f.invoices.Create(context.Background(), nil, &models.Invoice{
		ClubID: 10,
		State:  models.InvoiceOpen,
		Type:   models.InvoiceSeasonPlayerFees,
		Amount: 800,
		Relations: []models.InvoiceRelation{
			{Kind: models.RelationSeason, ID: 1},
		},
	}))

	err := f.svc.GenerateSeasonInvoices(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, f.invoices.invoices, 2)
	assert.Equal(t, 30, f.invoices.invoices[2].ClubID)
	require.Len(t, f.notifier.notes, 1)
	assert.Equal(t, 30, f.notifier.notes[0].clubID)

	season, _ := f.svc.seasons.GetByID(context.Background(), 1)
	assert.NotNil(t, season.InvoicesGeneratedAt)
}

func TestGenerateSeasonInvoicesSetsLatchWithoutInvoices(t *testing.T) {
	seasons := map[int]*models.Season{
		1: {ID: 1, Name: "2026", RegularFee: 800, DiscountedFee: 400},
	}
	f := newInvoiceFixture(map[int]*models.Club{}, seasons, nil)

	err := f.svc.GenerateSeasonInvoices(context.Background(), 1)
	require.NoError(t, err)

	assert.Empty(t, f.invoices.invoices)
	assert.Empty(t, f.notifier.notes)
	season, _ := f.svc.seasons.GetByID(context.Background(), 1)
	assert.NotNil(t, season.InvoicesGeneratedAt, "an empty sweep still closes the season")
	assert.Equal(t, 1, f.tx.tx.commits)
}

func TestGenerateSeasonInvoicesRegistrationFailureKeepsDraft(t *testing.T) {
	f := sweepFixture()
	f.fakturoid.createErr = clients.ErrFakturoidUnauthorized

	err := f.svc.GenerateSeasonInvoices(context.Background(), 1)
	require.NoError(t, err, "remote registration failures are left to the resend job")

	require.Len(t, f.invoices.invoices, 2)
	for _, invoice := range f.invoices.invoices {
		assert.Equal(t, models.InvoiceDraft, invoice.State)
		assert.Nil(t, invoice.FakturoidInvoiceID)
	}
	season, _ := f.svc.seasons.GetByID(context.Background(), 1)
	assert.NotNil(t, season.InvoicesGeneratedAt)
}

func TestGenerateSeasonInvoicesSeasonNotFound(t *testing.T) {
	f := newInvoiceFixture(nil, map[int]*models.Season{}, nil)
	err := f.svc.GenerateSeasonInvoices(context.Background(), 99)
	assert.ErrorIs(t, err, ErrSeasonNotFound)
}

func TestCreateDepositInvoiceValidation(t *testing.T) {
	clubs := map[int]*models.Club{
		20: {ID: 20, Name: "Brno Wild"},
	}
	f := newInvoiceFixture(clubs, nil, nil)

	_, err := f.svc.CreateDepositInvoice(context.Background(), 99)
	assert.ErrorIs(t, err, ErrClubNotFound)

	_, err = f.svc.CreateDepositInvoice(context.Background(), 20)
	assert.ErrorIs(t, err, ErrClubNotInvoicable)
}

func TestResendDraftInvoices(t *testing.T) {
	clubs := map[int]*models.Club{
		10: {ID: 10, Name: "Prague Devils", FakturoidSubjectID: intPtr(55)},
		20: {ID: 20, Name: "Brno Wild"},
	}
	withSubject := &models.Invoice{
		ID: 1, ClubID: 10, State: models.InvoiceDraft,
		Type: models.InvoiceSeasonPlayerFees, Amount: 800,
		Lines: []models.InvoiceLine{{Name: "Poplatky za sezónu 2026", Amount: 800}},
	}
	withoutSubject := &models.Invoice{
		ID: 2, ClubID: 20, State: models.InvoiceDraft,
		Type: models.InvoiceSeasonPlayerFees, Amount: 400,
	}

	f := newInvoiceFixture(clubs, nil, nil)
	f.invoices.invoices[1] = withSubject
	f.invoices.invoices[2] = withoutSubject
	f.invoices.drafts = []*models.Invoice{withSubject, withoutSubject}

	err := f.svc.ResendDraftInvoices(context.Background())
	require.NoError(t, err)

	require.Len(t, f.fakturoid.created, 1, "only the invoicable club's draft is registered")
	assert.InDelta(t, 800.0, f.fakturoid.created[0].Total, 0.001)

	assert.Equal(t, models.InvoiceOpen, withSubject.State)
	require.NotNil(t, withSubject.FakturoidInvoiceID)
	assert.Equal(t, clients.FakturoidStatusOpen, withSubject.FakturoidStatus)
	assert.NotEmpty(t, withSubject.FakturoidPublicURL)

	assert.Equal(t, models.InvoiceDraft, withoutSubject.State)
	require.Len(t, f.invoices.updated, 1)
	assert.Equal(t, 1, f.invoices.updated[0].ID)
}

func TestResendDraftInvoicesContinuesAfterRegistrationFailure(t *testing.T) {
	clubs := map[int]*models.Club{
		10: {ID: 10, Name: "Prague Devils", FakturoidSubjectID: intPtr(55)},
	}
	draft := &models.Invoice{
		ID: 1, ClubID: 10, State: models.InvoiceDraft,
		Type: models.InvoiceSeasonPlayerFees, Amount: 800,
	}

	f := newInvoiceFixture(clubs, nil, nil)
	f.invoices.invoices[1] = draft
	f.invoices.drafts = []*models.Invoice{draft}
	f.fakturoid.createErr = clients.ErrFakturoidUnauthorized

	err := f.svc.ResendDraftInvoices(context.Background())
	require.NoError(t, err, "a failed registration is retried on the next run, not surfaced")
	assert.Empty(t, f.invoices.updated)
}

func TestCheckFakturoidInvoices(t *testing.T) {
	paid := &models.Invoice{ID: 1, ClubID: 10, State: models.InvoiceOpen, FakturoidInvoiceID: intPtr(101)}
	cancelled := &models.Invoice{ID: 2, ClubID: 10, State: models.InvoiceOpen, FakturoidInvoiceID: intPtr(102)}
	unregistered := &models.Invoice{ID: 3, ClubID: 10, State: models.InvoiceOpen}
	unreachable := &models.Invoice{ID: 4, ClubID: 10, State: models.InvoiceOpen, FakturoidInvoiceID: intPtr(104)}

	f := newInvoiceFixture(nil, nil, nil)
	f.invoices.open = []*models.Invoice{paid, cancelled, unregistered, unreachable}
	f.fakturoid.remote[101] = &clients.FakturoidInvoice{ID: 101, Status: clients.FakturoidStatusPaid, Total: 800}
	f.fakturoid.remote[102] = &clients.FakturoidInvoice{ID: 102, Status: clients.FakturoidStatusCancelled}

	err := f.svc.CheckFakturoidInvoices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.InvoicePaid, paid.State)
	assert.Equal(t, clients.FakturoidStatusPaid, paid.FakturoidStatus)
	assert.Equal(t, models.InvoiceCanceled, cancelled.State)
	assert.Equal(t, models.InvoiceOpen, unregistered.State, "invoices without a remote id are skipped")
	assert.Equal(t, models.InvoiceOpen, unreachable.State, "a poll failure leaves the invoice untouched")

	require.Len(t, f.invoices.updated, 2)

	require.Len(t, f.apps.transitions, 1, "only the paid invoice moves its applications")
	transition := f.apps.transitions[0]
	assert.Equal(t, 1, transition.invoiceID)
	assert.Equal(t, models.ApplicationAwaitingPayment, transition.from)
	assert.Equal(t, models.ApplicationPaid, transition.to)
}

func TestGetInvoice(t *testing.T) {
	f := newInvoiceFixture(nil, nil, nil)
	f.invoices.invoices[1] = &models.Invoice{ID: 1, ClubID: 10}

	invoice, err := f.svc.GetInvoice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 10, invoice.ClubID)

	_, err = f.svc.GetInvoice(context.Background(), 99)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestListClubInvoices(t *testing.T) {
	f := newInvoiceFixture(nil, nil, nil)
	f.invoices.invoices[1] = &models.Invoice{ID: 1, ClubID: 10}
	f.invoices.invoices[2] = &models.Invoice{ID: 2, ClubID: 20}
	f.invoices.invoices[3] = &models.Invoice{ID: 3, ClubID: 10}

	invoices, err := f.svc.ListClubInvoices(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, 1, invoices[0].ID)
	assert.Equal(t, 3, invoices[1].ID)
}
