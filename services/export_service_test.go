package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frisbee-cz/evidence/models"
)

func newExportFixture(members *fakeMemberRepo, participations []*models.SeasonParticipation) (*ExportService, *fakeEmailSender) {
	email := &fakeEmailSender{}
	fees := NewFeeService(
		&fakeSeasonRepo{seasons: map[int]*models.Season{
			1: {ID: 1, Name: "2026", RegularFee: 800, DiscountedFee: 400},
		}},
		&fakeCompetitionRepo{},
		&fakeRosterRepo{participations: participations},
		&fakeInternationalRepo{},
		email,
		testLogger(),
	)
	return NewExportService(members, fees, email, testLogger()), email
}

func exportRows(t *testing.T, email *fakeEmailSender) [][]string {
	t.Helper()
	require.Len(t, email.sent, 1)
	mail := email.sent[0]
	assert.Equal(t, "NSA export", mail.subject)
	records, err := csv.NewReader(bytes.NewReader(mail.csvData)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestGenerateNSAExport(t *testing.T) {
	club := &models.Club{ID: 10, Name: "Prague Devils", IdentificationNumber: "04657002"}
	members := &fakeMemberRepo{
		members: map[int]*models.Member{
			1: {
				ID: 1, ClubID: 10, FirstName: "Jan", LastName: "Novák",
				BirthDate:   time.Date(1995, time.February, 12, 0, 0, 0, 0, time.UTC),
				Sex:         models.SexMale,
				Citizenship: "CZ", BirthNumber: "950212/1234",
				Street: "Dlouhá", City: "Praha", HouseNumber: "12", PostalCode: "11000",
				IsActive:  true,
				CreatedAt: time.Date(2020, time.March, 5, 0, 0, 0, 0, time.UTC),
				Club:      club,
			},
			// Played only free tournaments; owes nothing and stays out.
			2: {ID: 2, ClubID: 10, FirstName: "Petr", LastName: "Dvořák", IsActive: true, Club: club},
			// No tournament participation this season.
			3: {ID: 3, ClubID: 10, FirstName: "Karel", LastName: "Malý", IsActive: true, Club: club},
			// Deactivated members are never exported.
			4: {ID: 4, ClubID: 10, FirstName: "Ota", LastName: "Starý", Club: club},
		},
		licences: map[int][]*models.CoachLicence{
			1: {
				{MemberID: 1, ValidFrom: time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC), ValidTo: time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)},
				{MemberID: 1, ValidFrom: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), ValidTo: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)},
			},
		},
		nextID: 4,
	}
	participations := []*models.SeasonParticipation{
		participation(1, 10, 100, 1, models.FeeTypeRegular, 2),
		participation(2, 10, 101, 1, models.FeeTypeFree, 3),
	}

	svc, email := newExportFixture(members, participations)
	err := svc.GenerateNSAExport(context.Background(), "admin@frisbee.cz", 1, nil)
	require.NoError(t, err)

	records := exportRows(t, email)
	require.Len(t, records, 2, "header plus the one eligible member")
	assert.Equal(t, "JMENO", records[0][0])
	assert.Equal(t, "SVAZ_ICO_SKTJ", records[0][25])

	row := records[1]
	assert.Equal(t, "Jan", row[0])
	assert.Equal(t, "Novák", row[1])
	assert.Equal(t, "950212/1234", row[4])
	assert.Equal(t, "CZE", row[5])
	assert.Equal(t, "12.2.1995", row[6])
	assert.Equal(t, "M", row[7])
	assert.Equal(t, "Praha", row[8])
	assert.Equal(t, "Dlouhá", row[10])
	assert.Equal(t, "11000", row[13])
	assert.Equal(t, "1", row[14])
	assert.Equal(t, "5.3.2020", row[15])
	assert.Equal(t, "98.3", row[17])
	assert.Equal(t, "2", row[19], "tournament days played")
	assert.Equal(t, "1", row[20], "holds a valid coach licence")
	assert.Equal(t, "1.1.2022", row[21], "coaching since the earliest licence")
	assert.Equal(t, "04657002", row[25])
}

func TestGenerateNSAExportClubFilter(t *testing.T) {
	prague := &models.Club{ID: 10, IdentificationNumber: "04657002"}
	brno := &models.Club{ID: 20, IdentificationNumber: "26591618"}
	members := &fakeMemberRepo{
		members: map[int]*models.Member{
			1: {ID: 1, ClubID: 10, FirstName: "Jan", LastName: "Novák", Citizenship: "CZ", IsActive: true, Club: prague},
			2: {ID: 2, ClubID: 20, FirstName: "Eva", LastName: "Svobodová", Citizenship: "CZ", Sex: models.SexFemale, IsActive: true, Club: brno},
		},
		nextID: 2,
	}
	participations := []*models.SeasonParticipation{
		participation(1, 10, 100, 1, models.FeeTypeRegular, 2),
		participation(2, 20, 100, 1, models.FeeTypeRegular, 2),
	}

	svc, email := newExportFixture(members, participations)
	clubID := 20
	err := svc.GenerateNSAExport(context.Background(), "admin@frisbee.cz", 1, &clubID)
	require.NoError(t, err)

	records := exportRows(t, email)
	require.Len(t, records, 2)
	assert.Equal(t, "Eva", records[1][0])
	assert.Equal(t, "Ž", records[1][7])
	assert.Equal(t, "26591618", records[1][25])
}

func TestFormatNSADate(t *testing.T) {
	assert.Equal(t, "7.9.2026", formatNSADate(time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)))
}
