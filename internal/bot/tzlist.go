package bot

// timezones is the curated picker list. Go cannot enumerate the system
// zoneinfo database, so we offer one representative IANA zone per major
// region, roughly ordered west to east.
var timezones = []string{
	"Pacific/Honolulu",
	"America/Anchorage",
	"America/Los_Angeles",
	"America/Vancouver",
	"America/Phoenix",
	"America/Denver",
	"America/Mexico_City",
	"America/Chicago",
	"America/New_York",
	"America/Toronto",
	"America/Santiago",
	"America/Argentina/Buenos_Aires",
	"America/Sao_Paulo",
	"UTC",
	"Europe/London",
	"Africa/Lagos",
	"Europe/Paris",
	"Europe/Berlin",
	"Europe/Madrid",
	"Europe/Rome",
	"Europe/Amsterdam",
	"Europe/Stockholm",
	"Africa/Johannesburg",
	"Africa/Cairo",
	"Europe/Helsinki",
	"Europe/Kyiv",
	"Europe/Istanbul",
	"Africa/Nairobi",
	"Asia/Jerusalem",
	"Europe/Moscow",
	"Asia/Tehran",
	"Asia/Dubai",
	"Asia/Karachi",
	"Asia/Kolkata",
	"Asia/Dhaka",
	"Asia/Bangkok",
	"Asia/Jakarta",
	"Asia/Singapore",
	"Asia/Shanghai",
	"Asia/Hong_Kong",
	"Asia/Taipei",
	"Asia/Seoul",
	"Asia/Tokyo",
	"Australia/Perth",
	"Australia/Sydney",
	"Pacific/Auckland",
}

const tzPageSize = 8

// defaultTZPage is the picker page containing UTC, shown first so the
// most common choice is one tap away.
func defaultTZPage() int {
	for i, z := range timezones {
		if z == "UTC" {
			return i / tzPageSize
		}
	}
	return 0
}
