package provision

import (
	"strings"
	"unicode"
)

// DeriveTitle turns a free-text address into a "street, house" display title.
// It splits on the first comma, or failing that on a trailing token that
// starts with a digit. Addresses matching neither are returned with their
// whitespace collapsed.
func DeriveTitle(address string) string {
	address = collapseSpaces(address)
	if address == "" {
		return ""
	}

	if street, rest, ok := strings.Cut(address, ","); ok {
		street = strings.TrimSpace(street)
		house := ""
		for _, part := range strings.Split(rest, ",") {
			if part = strings.TrimSpace(part); part != "" {
				house = part
				break
			}
		}
		switch {
		case street == "":
			return house
		case house == "":
			return street
		}
		return street + ", " + house
	}

	fields := strings.Fields(address)
	if len(fields) > 1 {
		last := fields[len(fields)-1]
		if r := []rune(last); unicode.IsDigit(r[0]) {
			return strings.Join(fields[:len(fields)-1], " ") + ", " + last
		}
	}
	return address
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
