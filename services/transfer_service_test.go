package services

import (
	"context"
	"testing"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transferFixture struct {
	transfers *fakeTransferRepo
	members   *fakeMemberRepo
	notifier  *fakeNotifier
	svc       *TransferService
}

// newTransferFixture wires member 1 into club 10, with agent 1 acting for
// club 10 and agent 2 for club 20.
func newTransferFixture() *transferFixture {
	f := &transferFixture{
		transfers: &fakeTransferRepo{},
		members: &fakeMemberRepo{
			members: map[int]*models.Member{
				1: {ID: 1, ClubID: 10, FirstName: "Jan", LastName: "Novák"},
			},
			nextID: 1,
		},
		notifier: &fakeNotifier{},
	}
	f.svc = NewTransferService(
		nil,
		f.transfers,
		f.members,
		&fakeClubRepo{clubs: map[int]*models.Club{
			10: {ID: 10, Name: "Prague Devils"},
			20: {ID: 20, Name: "Brno Wild"},
		}},
		&fakeAgentRepo{affiliations: map[int]map[int]bool{
			1: {10: true},
			2: {20: true},
		}},
		f.notifier,
		testLogger(),
	)
	return f
}

func TestRequestTransferFromSourceSide(t *testing.T) {
	f := newTransferFixture()

	transfer, err := f.svc.Request(context.Background(), Caller{AgentID: 1}, RequestTransferInput{
		MemberID:         1,
		TargetClubID:     20,
		RequestingClubID: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransferRequested, transfer.State)
	assert.Equal(t, 10, transfer.SourceClubID)
	assert.Equal(t, 20, transfer.TargetClubID)
	assert.Equal(t, 20, transfer.ApprovingClubID, "the other side approves")
	assert.Equal(t, 1, transfer.RequestedByID)

	require.Len(t, f.notifier.notes, 1)
	assert.Equal(t, 20, f.notifier.notes[0].clubID)
	assert.Equal(t, "Transfer requested", f.notifier.notes[0].subject)
}

func TestRequestTransferFromTargetSide(t *testing.T) {
	f := newTransferFixture()

	transfer, err := f.svc.Request(context.Background(), Caller{AgentID: 2}, RequestTransferInput{
		MemberID:         1,
		TargetClubID:     20,
		RequestingClubID: 20,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, transfer.ApprovingClubID, "the source club approves an incoming request")
}

func TestRequestTransferValidation(t *testing.T) {
	f := newTransferFixture()

	// Caller not affiliated with the requesting club.
	_, err := f.svc.Request(context.Background(), Caller{AgentID: 2}, RequestTransferInput{
		MemberID: 1, TargetClubID: 20, RequestingClubID: 10,
	})
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	// Member already in the target club.
	_, err = f.svc.Request(context.Background(), Caller{AgentID: 1}, RequestTransferInput{
		MemberID: 1, TargetClubID: 10, RequestingClubID: 10,
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Member is already in target club", vErr.Message)

	// The requesting club must be one of the two sides.
	f.svc.clubs.(*fakeClubRepo).clubs[30] = &models.Club{ID: 30}
	f.svc.agents.(*fakeAgentRepo).affiliations[1][30] = true
	_, err = f.svc.Request(context.Background(), Caller{AgentID: 1}, RequestTransferInput{
		MemberID: 1, TargetClubID: 20, RequestingClubID: 30,
	})
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestRequestTransferRejectsSecondOpenRequest(t *testing.T) {
	f := newTransferFixture()

	_, err := f.svc.Request(context.Background(), Caller{AgentID: 1}, RequestTransferInput{
		MemberID: 1, TargetClubID: 20, RequestingClubID: 10,
	})
	require.NoError(t, err)

	_, err = f.svc.Request(context.Background(), Caller{AgentID: 1}, RequestTransferInput{
		MemberID: 1, TargetClubID: 20, RequestingClubID: 10,
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Member already has a requested transfer", vErr.Message)
}

func TestRevokeAndReject(t *testing.T) {
	f := newTransferFixture()
	requested, err := f.svc.Request(context.Background(), Caller{AgentID: 1}, RequestTransferInput{
		MemberID: 1, TargetClubID: 20, RequestingClubID: 10,
	})
	require.NoError(t, err)

	// Only the approving side may reject.
	_, err = f.svc.Reject(context.Background(), Caller{AgentID: 1}, requested.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	// Only the requesting side may revoke.
	_, err = f.svc.Revoke(context.Background(), Caller{AgentID: 2}, requested.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	revoked, err := f.svc.Revoke(context.Background(), Caller{AgentID: 1}, requested.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferRevoked, revoked.State)

	// The transfer is final now; further transitions fail.
	_, err = f.svc.Reject(context.Background(), Caller{AgentID: 2}, requested.ID)
	assert.ErrorIs(t, err, ErrTransferNotRequested)
}

func TestRejectConcurrentTransitionLoses(t *testing.T) {
	f := newTransferFixture()
	requested, err := f.svc.Request(context.Background(), Caller{AgentID: 1}, RequestTransferInput{
		MemberID: 1, TargetClubID: 20, RequestingClubID: 10,
	})
	require.NoError(t, err)

	// Simulate another transition winning the row-level race.
	f.transfers.updateStateErr = repositories.ErrTransferFinal
	_, err = f.svc.Reject(context.Background(), Caller{AgentID: 2}, requested.ID)
	assert.ErrorIs(t, err, ErrTransferNotRequested)
}

func TestApprovePreconditions(t *testing.T) {
	f := newTransferFixture()
	requested, err := f.svc.Request(context.Background(), Caller{AgentID: 1}, RequestTransferInput{
		MemberID: 1, TargetClubID: 20, RequestingClubID: 10,
	})
	require.NoError(t, err)

	// The requesting side cannot approve its own request.
	_, err = f.svc.Approve(context.Background(), Caller{AgentID: 1}, requested.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	// A closed transfer cannot be approved.
	requested.State = models.TransferRevoked
	_, err = f.svc.Approve(context.Background(), Caller{AgentID: 2}, requested.ID)
	assert.ErrorIs(t, err, ErrTransferNotRequested)

	_, err = f.svc.Approve(context.Background(), Caller{AgentID: 2}, 99)
	assert.ErrorIs(t, err, ErrTransferNotFound)
}
