package service

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultPhoneRegion = "UG"

// normalizePhone formats an optional sign-up phone to E.164. Blank input
// becomes nil; numbers that do not parse are passed on trimmed so the
// backend stays the judge of what it stores.
func normalizePhone(phone *string, region string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return &trimmed
	}
	formatted := phonenumbers.Format(number, phonenumbers.E164)
	return &formatted
}
