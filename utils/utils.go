package utils

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const BcryptCost = 12

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(hash), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

var postalCodeRegex = regexp.MustCompile(`^\d{5}$`)

// IsValidPostalCode checks the Czech postal code format, five digits with no
// separator.
func IsValidPostalCode(code string) bool {
	return postalCodeRegex.MatchString(code)
}

var birthNumberRegex = regexp.MustCompile(`^\d{6}/?\d{3,4}$`)

// IsValidBirthNumber checks the shape of a Czech birth number (rodné číslo)
// and that its date part encodes a real calendar date. Female birth numbers
// add 50 to the month.
func IsValidBirthNumber(value string) bool {
	if !birthNumberRegex.MatchString(value) {
		return false
	}
	cleaned := strings.ReplaceAll(value, "/", "")
	if len(cleaned) != 9 && len(cleaned) != 10 {
		return false
	}

	year, _ := strconv.Atoi(cleaned[:2])
	month, _ := strconv.Atoi(cleaned[2:4])
	day, _ := strconv.Atoi(cleaned[4:6])
	if month > 50 {
		month -= 50
	}

	currentYear := time.Now().Year() % 100
	century := 2000
	if year > currentYear || len(cleaned) == 9 {
		century = 1900
	}

	return validDate(century+year, month, day)
}

// BirthNumberMatchesDate reports whether the date encoded in the birth number
// equals the given birth date.
func BirthNumberMatchesDate(birthDate time.Time, birthNumber string) bool {
	cleaned := strings.ReplaceAll(birthNumber, "/", "")
	if len(cleaned) < 6 {
		return false
	}

	year, err1 := strconv.Atoi(cleaned[:2])
	month, err2 := strconv.Atoi(cleaned[2:4])
	day, err3 := strconv.Atoi(cleaned[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	if month > 50 {
		month -= 50
	}

	currentYear := time.Now().Year() % 100
	fullYear := 2000 + year
	if year > currentYear {
		fullYear = 1900 + year
	}
	if !validDate(fullYear, month, day) {
		return false
	}

	return birthDate.Year() == fullYear &&
		int(birthDate.Month()) == month &&
		birthDate.Day() == day
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return date.Year() == year && int(date.Month()) == month && date.Day() == day
}

// IsAtLeast15 decides whether the member manages their own email or a legal
// guardian does.
func IsAtLeast15(birthDate time.Time) bool {
	now := time.Now()
	age := now.Year() - birthDate.Year()
	if now.Month() < birthDate.Month() ||
		(now.Month() == birthDate.Month() && now.Day() < birthDate.Day()) {
		age--
	}
	return age >= 15
}

// BuildCSV renders a header and rows into CSV bytes.
func BuildCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
