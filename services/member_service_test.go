package services

import (
	"context"
	"testing"
	"time"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemberFixture(cfg MemberConfig) (*MemberService, *fakeMemberRepo, *fakeEmailSender) {
	members := &fakeMemberRepo{members: map[int]*models.Member{}}
	email := &fakeEmailSender{}
	svc := NewMemberService(
		members,
		&fakeAgentRepo{affiliations: map[int]map[int]bool{1: {10: true}}},
		&fakeClubRepo{clubs: map[int]*models.Club{10: {ID: 10, Name: "Prague Devils"}}},
		email,
		cfg,
		testLogger(),
	)
	return svc, members, email
}

// validAdultInput is a Czech adult whose birth number encodes 12 February
// 1995.
func validAdultInput() MemberInput {
	return MemberInput{
		FirstName:   "Jan",
		LastName:    "Novák",
		BirthDate:   time.Date(1995, time.February, 12, 0, 0, 0, 0, time.UTC),
		Sex:         models.SexMale,
		Citizenship: "CZ",
		BirthNumber: "950212/1234",
		Email:       "jan.novak@example.com",
	}
}

func fieldMessages(t *testing.T, err error) map[string]string {
	t.Helper()
	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	return errs.Fields()
}

func TestCreateMemberSendsConfirmation(t *testing.T) {
	svc, members, email := newMemberFixture(MemberConfig{EmailRequired: true})

	member, err := svc.Create(context.Background(), Caller{AgentID: 1}, 10, validAdultInput())
	require.NoError(t, err)

	require.NotNil(t, member.EmailConfirmationToken)
	assert.Equal(t, *member.EmailConfirmationToken, members.tokens[member.ID])

	require.Len(t, email.sent, 1)
	assert.Equal(t, "Please confirm your email", email.sent[0].subject)
	assert.Equal(t, []string{"jan.novak@example.com"}, email.sent[0].to)
	assert.Contains(t, email.sent[0].body, "You have been registered as a member of Prague Devils.")
	assert.Contains(t, email.sent[0].body, confirmEmailBaseURL+member.EmailConfirmationToken.String())
}

func TestCreateMemberRequiresAffiliation(t *testing.T) {
	svc, _, _ := newMemberFixture(MemberConfig{})

	_, err := svc.Create(context.Background(), Caller{AgentID: 2}, 10, validAdultInput())
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestCreateMemberCzechValidation(t *testing.T) {
	svc, _, _ := newMemberFixture(MemberConfig{EmailRequired: true})

	t.Run("birth number required", func(t *testing.T) {
		input := validAdultInput()
		input.BirthNumber = ""
		_, err := svc.Create(context.Background(), Caller{AgentID: 1}, 10, input)
		fields := fieldMessages(t, err)
		assert.Equal(t, "Birth number is required for czech citizens", fields["birth_number"])
	})

	t.Run("birth number must match birth date", func(t *testing.T) {
		input := validAdultInput()
		input.BirthNumber = "950213/1234"
		_, err := svc.Create(context.Background(), Caller{AgentID: 1}, 10, input)
		fields := fieldMessages(t, err)
		assert.Equal(t, "Invalid birth number or birth date", fields["birth_number"])
	})

	t.Run("address forbidden", func(t *testing.T) {
		input := validAdultInput()
		input.Street = "Dlouhá"
		input.City = "Praha"
		_, err := svc.Create(context.Background(), Caller{AgentID: 1}, 10, input)
		fields := fieldMessages(t, err)
		assert.Equal(t, "This field is required only for non-czech citizens", fields["street"])
		assert.Equal(t, "This field is required only for non-czech citizens", fields["city"])
	})
}

func TestCreateMemberForeignAddressAllOrNone(t *testing.T) {
	svc, _, _ := newMemberFixture(MemberConfig{EmailRequired: true})

	input := validAdultInput()
	input.Citizenship = "DE"
	input.BirthNumber = ""
	input.Street = "Hauptstraße"
	input.City = "Dresden"

	_, err := svc.Create(context.Background(), Caller{AgentID: 1}, 10, input)
	fields := fieldMessages(t, err)
	assert.Equal(t, "This field is required if an address is provided", fields["house_number"])
	assert.Equal(t, "This field is required if an address is provided", fields["postal_code"])

	// No address at all is fine for foreigners.
	input.Street = ""
	input.City = ""
	_, err = svc.Create(context.Background(), Caller{AgentID: 1}, 10, input)
	assert.NoError(t, err)
}

func TestCreateMemberChildGuardianFields(t *testing.T) {
	svc, _, email := newMemberFixture(MemberConfig{EmailRequired: true})

	input := MemberInput{
		FirstName:   "Eva",
		LastName:    "Malá",
		BirthDate:   time.Now().AddDate(-10, 0, 0),
		Sex:         models.SexFemale,
		Citizenship: "DE",
	}

	_, err := svc.Create(context.Background(), Caller{AgentID: 1}, 10, input)
	fields := fieldMessages(t, err)
	assert.Equal(t, "This field is required for children under 15", fields["legal_guardian_email"])
	assert.Equal(t, "This field is required for children under 15", fields["legal_guardian_first_name"])
	assert.Equal(t, "This field is required for children under 15", fields["legal_guardian_last_name"])

	input.LegalGuardianEmail = "parent@example.com"
	input.LegalGuardianFirstName = "Hana"
	input.LegalGuardianLastName = "Malá"
	member, err := svc.Create(context.Background(), Caller{AgentID: 1}, 10, input)
	require.NoError(t, err)
	require.NotNil(t, member.EmailConfirmationToken)

	// The confirmation goes to the guardian, not the child.
	require.Len(t, email.sent, 1)
	assert.Equal(t, []string{"parent@example.com"}, email.sent[0].to)
}

func TestCreateMemberEmailOptionalWhenFlagOff(t *testing.T) {
	svc, _, email := newMemberFixture(MemberConfig{EmailRequired: false})

	input := validAdultInput()
	input.Email = ""
	member, err := svc.Create(context.Background(), Caller{AgentID: 1}, 10, input)
	require.NoError(t, err)

	assert.Nil(t, member.EmailConfirmationToken, "no contact address, no token")
	assert.Empty(t, email.sent)
}

func TestCreateMemberUniquenessMapping(t *testing.T) {
	svc, members, _ := newMemberFixture(MemberConfig{EmailRequired: true})

	members.createErr = repositories.ErrMemberBirthNumberExists
	_, err := svc.Create(context.Background(), Caller{AgentID: 1}, 10, validAdultInput())
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Member with this birth number already exists", vErr.Message)

	members.createErr = repositories.ErrMemberEmailExists
	_, err = svc.Create(context.Background(), Caller{AgentID: 1}, 10, validAdultInput())
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Member with this email already exists", vErr.Message)
}

func TestUpdateMemberEmailChangeReissuesToken(t *testing.T) {
	svc, members, email := newMemberFixture(MemberConfig{EmailRequired: true})

	member, err := svc.Create(context.Background(), Caller{AgentID: 1}, 10, validAdultInput())
	require.NoError(t, err)
	confirmed := time.Now()
	member.EmailConfirmedAt = &confirmed
	firstToken := *member.EmailConfirmationToken

	input := validAdultInput()
	input.Email = "jan.novak@firma.cz"
	updated, err := svc.Update(context.Background(), Caller{AgentID: 1}, member.ID, input)
	require.NoError(t, err)

	assert.Nil(t, updated.EmailConfirmedAt, "changing the contact email voids the confirmation")
	require.NotNil(t, updated.EmailConfirmationToken)
	assert.NotEqual(t, firstToken, *updated.EmailConfirmationToken)
	require.Len(t, email.sent, 2)
	assert.Equal(t, []string{"jan.novak@firma.cz"}, email.sent[1].to)

	// An update that keeps the contact email leaves the confirmation alone.
	confirmedAgain := time.Now()
	members.members[member.ID].EmailConfirmedAt = &confirmedAgain
	same, err := svc.Update(context.Background(), Caller{AgentID: 1}, member.ID, input)
	require.NoError(t, err)
	assert.NotNil(t, same.EmailConfirmedAt)
	assert.Len(t, email.sent, 2)
}

func TestAddCoachLicence(t *testing.T) {
	svc, members, _ := newMemberFixture(MemberConfig{})
	members.members[1] = &models.Member{ID: 1, ClubID: 10}

	_, err := svc.AddCoachLicence(context.Background(), Caller{AgentID: 1}, 1,
		models.CoachLicenceSecond, time.Now(), time.Now().AddDate(1, 0, 0))
	assert.ErrorIs(t, err, ErrForbiddenOperation, "licences are a federation office operation")

	_, err = svc.AddCoachLicence(context.Background(), Caller{AgentID: 1, IsAdmin: true}, 1,
		models.CoachLicenceSecond, time.Now().AddDate(1, 0, 0), time.Now())
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Valid to date must be greater than valid from date.", vErr.Message)
}
