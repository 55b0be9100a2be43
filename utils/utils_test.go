package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidBirthNumber(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"ten digits with slash", "955212/1234", true},
		{"ten digits without slash", "9552121234", true},
		{"nine digits pre-1954", "535212123", true},
		{"female month offset", "965212/1234", true},
		{"invalid month", "951512/1234", false},
		{"invalid day", "950232/1234", false},
		{"too short", "95521/123", false},
		{"letters", "95521a/1234", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidBirthNumber(tt.value))
		})
	}
}

func TestBirthNumberMatchesDate(t *testing.T) {
	birthDate := time.Date(1995, time.February, 12, 0, 0, 0, 0, time.UTC)

	assert.True(t, BirthNumberMatchesDate(birthDate, "950212/1234"))
	assert.True(t, BirthNumberMatchesDate(birthDate, "955212/1234"), "female month offset encodes the same date")
	assert.False(t, BirthNumberMatchesDate(birthDate, "950213/1234"), "different day")
	assert.False(t, BirthNumberMatchesDate(birthDate, "940212/1234"), "different year")
	assert.False(t, BirthNumberMatchesDate(birthDate, "95021"))
}

func TestIsValidPostalCode(t *testing.T) {
	assert.True(t, IsValidPostalCode("16000"))
	assert.False(t, IsValidPostalCode("160 00"))
	assert.False(t, IsValidPostalCode("1600"))
	assert.False(t, IsValidPostalCode("160000"))
	assert.False(t, IsValidPostalCode("16O00"))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("player@example.com"))
	assert.True(t, IsValidEmail("jan.novak+ulti@clubs.frisbee.cz"))
	assert.False(t, IsValidEmail("player@"))
	assert.False(t, IsValidEmail("@example.com"))
	assert.False(t, IsValidEmail("player example.com"))
}

func TestIsAtLeast15(t *testing.T) {
	now := time.Now()

	assert.True(t, IsAtLeast15(now.AddDate(-15, 0, -1)))
	assert.True(t, IsAtLeast15(now.AddDate(-40, 0, 0)))
	assert.False(t, IsAtLeast15(now.AddDate(-15, 0, 1)), "turns 15 tomorrow")
	assert.False(t, IsAtLeast15(now.AddDate(-10, 0, 0)))
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("correct horse battery staple", hash))
	assert.False(t, CheckPasswordHash("wrong password", hash))
}

func TestBuildCSV(t *testing.T) {
	data, err := BuildCSV(
		[]string{"JMENO", "PRIJMENI"},
		[][]string{
			{"Jan", "Novák"},
			{"Eva", "Svobodová, ml."},
		},
	)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "JMENO,PRIJMENI", strings.TrimSpace(lines[0]))
	assert.Equal(t, `Eva,"Svobodová, ml."`, strings.TrimSpace(lines[2]), "comma field is quoted")
}

func TestCountryAlpha3(t *testing.T) {
	assert.Equal(t, "CZE", CountryAlpha3("CZ"))
	assert.Equal(t, "DEU", CountryAlpha3("DE"))
	assert.Equal(t, "XX", CountryAlpha3("XX"), "unknown codes pass through")
}
