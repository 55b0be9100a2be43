package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/frisbee-cz/evidence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func participation(memberID, clubID, tournamentID, competitionID int, feeType models.FeeType, days int) *models.SeasonParticipation {
	start := time.Date(2026, time.June, 6, 0, 0, 0, 0, time.UTC)
	return &models.SeasonParticipation{
		MemberID:        memberID,
		ClubID:          clubID,
		TournamentID:    tournamentID,
		CompetitionID:   competitionID,
		TournamentName:  "Tournament",
		FeeType:         feeType,
		TournamentStart: start,
		TournamentEnd:   start.AddDate(0, 0, days-1),
		Member:          &models.Member{ID: memberID, FirstName: "Jan", LastName: "Novák", ClubID: clubID},
	}
}

func newFeeService(seasons map[int]*models.Season, domestic, international []*models.SeasonParticipation, email *fakeEmailSender) *FeeService {
	if email == nil {
		email = &fakeEmailSender{}
	}
	return NewFeeService(
		&fakeSeasonRepo{seasons: seasons},
		&fakeCompetitionRepo{},
		&fakeRosterRepo{participations: domestic},
		&fakeInternationalRepo{participations: international},
		email,
		testLogger(),
	)
}

func TestCalculateSeasonFeesPriorityMerge(t *testing.T) {
	seasons := map[int]*models.Season{
		1: {ID: 1, Name: "2026", RegularFee: 800, DiscountedFee: 400},
	}
	domestic := []*models.SeasonParticipation{
		// Member 1 plays one discounted and one regular tournament: one
		// regular fee, never a sum.
		participation(1, 10, 100, 1, models.FeeTypeDiscounted, 2),
		participation(1, 10, 101, 1, models.FeeTypeRegular, 2),
		// Member 2 plays discounted tournaments only.
		participation(2, 10, 100, 1, models.FeeTypeDiscounted, 2),
		participation(2, 10, 102, 1, models.FeeTypeDiscounted, 2),
		// Member 3 plays free tournaments only and owes nothing.
		participation(3, 10, 103, 2, models.FeeTypeFree, 2),
	}

	svc := newFeeService(seasons, domestic, nil, nil)
	fees, err := svc.CalculateSeasonFees(context.Background(), nil, 1, nil)
	require.NoError(t, err)

	require.Len(t, fees, 2)
	assert.Equal(t, int64(800), fees[1].Amount)
	assert.Equal(t, int64(400), fees[2].Amount)
	assert.NotContains(t, fees, 3, "free-only members owe nothing")
	assert.Len(t, fees[1].RegularTournaments, 1)
	assert.Len(t, fees[1].DiscountedTournaments, 1)
}

func TestCalculateSeasonFeesClubFilter(t *testing.T) {
	seasons := map[int]*models.Season{
		1: {ID: 1, RegularFee: 800, DiscountedFee: 400},
	}
	domestic := []*models.SeasonParticipation{
		participation(1, 10, 100, 1, models.FeeTypeRegular, 2),
		participation(2, 20, 100, 1, models.FeeTypeRegular, 2),
	}

	svc := newFeeService(seasons, domestic, nil, nil)
	clubID := 20
	fees, err := svc.CalculateSeasonFees(context.Background(), nil, 1, &clubID)
	require.NoError(t, err)

	require.Len(t, fees, 1)
	assert.Contains(t, fees, 2)
}

func TestCalculateSeasonFeesIncludesInternational(t *testing.T) {
	seasons := map[int]*models.Season{
		1: {ID: 1, RegularFee: 800, DiscountedFee: 400},
	}
	international := []*models.SeasonParticipation{
		participation(5, 10, 900, 0, models.FeeTypeRegular, 3),
	}

	svc := newFeeService(seasons, nil, international, nil)
	fees, err := svc.CalculateSeasonFees(context.Background(), nil, 1, nil)
	require.NoError(t, err)

	require.Len(t, fees, 1)
	assert.Equal(t, int64(800), fees[5].Amount)
}

func TestCalculateSeasonFeesSeasonNotFound(t *testing.T) {
	svc := newFeeService(map[int]*models.Season{}, nil, nil, nil)

	_, err := svc.CalculateSeasonFees(context.Background(), nil, 99, nil)
	assert.ErrorIs(t, err, ErrSeasonNotFound)
}

func TestParticipationDays(t *testing.T) {
	seasons := map[int]*models.Season{1: {ID: 1}}
	domestic := []*models.SeasonParticipation{
		participation(1, 10, 100, 1, models.FeeTypeRegular, 2),
		participation(1, 10, 101, 1, models.FeeTypeDiscounted, 3),
		// Free tournaments still count toward participation days.
		participation(1, 10, 102, 2, models.FeeTypeFree, 1),
	}

	svc := newFeeService(seasons, domestic, nil, nil)
	days, err := svc.ParticipationDays(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 6, days[1])
}

func TestSeasonFeesForCheckSendsCSV(t *testing.T) {
	seasons := map[int]*models.Season{
		1: {ID: 1, Name: "2026", RegularFee: 800, DiscountedFee: 400},
	}
	domestic := []*models.SeasonParticipation{
		participation(1, 10, 100, 1, models.FeeTypeRegular, 2),
	}
	email := &fakeEmailSender{}

	svc := newFeeService(seasons, domestic, nil, email)
	err := svc.SeasonFeesForCheck(context.Background(), []string{"agent@frisbee.cz", "office@frisbee.cz"}, 1, nil)
	require.NoError(t, err)

	require.Len(t, email.sent, 1)
	assert.Equal(t, "Season fees check: 2026", email.sent[0].subject)
	assert.Equal(t, []string{"agent@frisbee.cz", "office@frisbee.cz"}, email.sent[0].to,
		"the report goes to the caller and the configured office address")
	assert.Contains(t, string(email.sent[0].csvData), "Jan Novák")
	assert.Contains(t, string(email.sent[0].csvData), "800")
}

func TestCompetitionOnlyFees(t *testing.T) {
	season := &models.Season{ID: 1, RegularFee: 800, DiscountedFee: 400}
	competitions := map[int]*models.Competition{
		7: {ID: 7, SeasonID: 1, FeeType: models.FeeTypeDiscounted, Season: season},
	}
	domestic := []*models.SeasonParticipation{
		// Member 1 plays only in competition 7.
		participation(1, 10, 100, 7, models.FeeTypeDiscounted, 2),
		// Member 2 also plays elsewhere and is excluded.
		participation(2, 10, 100, 7, models.FeeTypeDiscounted, 2),
		participation(2, 10, 200, 8, models.FeeTypeRegular, 2),
	}

	svc := NewFeeService(
		&fakeSeasonRepo{seasons: map[int]*models.Season{1: season}},
		&fakeCompetitionRepo{competitions: competitions},
		&fakeRosterRepo{participations: domestic},
		&fakeInternationalRepo{},
		&fakeEmailSender{},
		testLogger(),
	)

	report, err := svc.CompetitionOnlyFees(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, report.Members, 1)
	assert.Equal(t, 1, report.Members[0].Member.ID)
	assert.Equal(t, int64(400), report.Members[0].Amount)
	assert.Equal(t, int64(400), report.Total)
}

func TestCompetitionOnlyFeesNotFound(t *testing.T) {
	svc := NewFeeService(
		&fakeSeasonRepo{},
		&fakeCompetitionRepo{},
		&fakeRosterRepo{},
		&fakeInternationalRepo{},
		&fakeEmailSender{},
		testLogger(),
	)

	_, err := svc.CompetitionOnlyFees(context.Background(), 99)
	assert.ErrorIs(t, err, ErrCompetitionNotFound)
}
