package providerservices

// ValidateTimeFormat reports whether s is a 24-hour HH:mm time,
// hours 00–23 and minutes 00–59.
func ValidateTimeFormat(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range [4]int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	return hour <= 23 && minute <= 59
}

// ValidateDayOfWeek reports whether d is a weekday index, 0=Sunday .. 6=Saturday.
func ValidateDayOfWeek(d int) bool {
	return d >= 0 && d <= 6
}

// IsStartBeforeEnd compares two validated HH:mm strings. Zero-padded HH:mm
// strings sort lexically the same as chronologically, so a plain string
// comparison suffices. Callers must validate both inputs first; the result
// is meaningless for malformed input.
func IsStartBeforeEnd(start, end string) bool {
	return start < end
}
