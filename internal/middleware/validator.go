package middleware

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/bryanwahyu/moto-intake/internal/domain/intake"
)

// Input validation and sanitization utilities

const (
	// MaxShortField is the rune limit for every single-line form field.
	// The SQL schemas size those columns to fit it.
	MaxShortField  = 200
	maxDescription = 5000
)

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// SanitizeForm cleans every field of a submitted form.
func SanitizeForm(f intake.Form) intake.Form {
	return intake.Form{
		ClientName:   SanitizeString(f.ClientName),
		ClientPhone:  SanitizeString(f.ClientPhone),
		ClientEmail:  SanitizeString(f.ClientEmail),
		VehiclePlate: SanitizeString(f.VehiclePlate),
		VehicleMake:  SanitizeString(f.VehicleMake),
		VehicleModel: SanitizeString(f.VehicleModel),
		VehicleYear:  SanitizeString(f.VehicleYear),
		VehicleVIN:   strings.ToUpper(SanitizeString(f.VehicleVIN)),
		Description:  SanitizeString(f.Description),
	}
}

// ValidateForm only caps field lengths and checks the e-mail address EmailJS will need.
// Phone, year and VIN are free text: workshops write them in many formats.
func ValidateForm(f intake.Form) error {
	short := []struct{ field, value string }{
		{"client_name", f.ClientName},
		{"client_phone", f.ClientPhone},
		{"client_email", f.ClientEmail},
		{"vehicle_plate", f.VehiclePlate},
		{"vehicle_make", f.VehicleMake},
		{"vehicle_model", f.VehicleModel},
		{"vehicle_year", f.VehicleYear},
		{"vehicle_vin", f.VehicleVIN},
	}
	for _, s := range short {
		if utf8.RuneCountInString(s.value) > MaxShortField {
			return &intake.ValidationError{Field: s.field, Message: "Pole jest zbyt długie."}
		}
	}
	if utf8.RuneCountInString(f.Description) > maxDescription {
		return &intake.ValidationError{Field: "description", Message: "Opis jest zbyt długi."}
	}
	return ValidateEmail(f.ClientEmail)
}

// ValidateEmail accepts an empty value or a single bare address.
func ValidateEmail(v string) error {
	if v == "" {
		return nil
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return &intake.ValidationError{Field: "client_email", Message: "Nieprawidłowy adres e-mail."}
	}
	return nil
}

// ValidatePageSize validates pagination limit
func ValidatePageSize(size int) int {
	if size <= 0 {
		return 10
	}
	if size > 100 {
		return 100
	}
	return size
}
