package types

import "strings"

// Address is the shipping destination handed to the carrier gateway.
type Address struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Street1     string `json:"street1"`
	HouseNumber string `json:"house_number,omitempty"`
	City        string `json:"city"`
	Zip         string `json:"zip"`
	Country     string `json:"country"`
}

// Complete reports whether the fields the carrier requires are present.
func (a Address) Complete() bool {
	return a.Street1 != "" && a.City != "" && a.Zip != "" && a.Country != ""
}

// NormalizedCountry returns the upper-cased ISO country code.
func (a Address) NormalizedCountry() string {
	country := strings.ToUpper(strings.TrimSpace(a.Country))
	switch country {
	case "NETHERLANDS", "THE NETHERLANDS", "HOLLAND":
		return "NL"
	case "BELGIUM":
		return "BE"
	case "GERMANY":
		return "DE"
	}
	if len(country) == 2 {
		return country
	}
	return "NL"
}
