package onebill

import (
	"regexp"
	"strings"
)

// AddressParser splits a free text address into postal lines. Implementations are best effort.
type AddressParser interface {
	Parse(text string) Address
}

var eircodePattern = regexp.MustCompile(`(?i)[A-Z]\d{2}\s?[A-Z0-9]{4}`)

// CommaAddressParser assumes "line 1, line 2, city, county" and finds the Eircode anywhere in the text.
// Missing parts come back empty.
type CommaAddressParser struct{}

func (CommaAddressParser) Parse(text string) Address {
	parts := strings.Split(text, ",")
	part := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}
	return Address{
		Line1:   part(0),
		Line2:   part(1),
		City:    part(2),
		County:  part(3),
		Eircode: eircodePattern.FindString(text),
	}
}
