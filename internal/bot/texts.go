package bot

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"remindbot/internal/timer"
)

const (
	msgChooseTimezone = "Please choose your timezone 🗺"
	msgNoTimers       = "You have no timers set 🍸"
	msgTimersCleared  = "All timers removed! 🗑"
	msgNotRecognized  = "Could not parse your message 🤷‍♂️"
	msgInternalError  = "Something went wrong, please try again 🙈"

	// Listing formats. Timers firing today show the clock only.
	shortTimeFormat = "15:04"
	longTimeFormat  = "Monday, 2 January 2006 15:04"
)

func timezoneSetText(zone string) string {
	return fmt.Sprintf("Your new timezone: %s 👍", zone)
}

func unknownTimezoneText(name string) string {
	return fmt.Sprintf("I don't know the timezone %q. Try /settimezone to pick one from the list.", name)
}

func timerSetText(notifyAt time.Time, loc *time.Location, zone string) string {
	return fmt.Sprintf("Timer has been set on %s! ⏰\n\nYour timezone is %s",
		notifyAt.In(loc).Format(longTimeFormat), zone)
}

// onboardingText shows one random example per grammar so every variant
// gets advertised.
func onboardingText(rnd *rand.Rand) string {
	var b strings.Builder
	b.WriteString("Now you can set your timers! 🎉\nTry these:\n")
	for _, p := range timer.Parsers() {
		ex := p.Examples()
		b.WriteString("- ")
		b.WriteString(ex[rnd.Intn(len(ex))])
		b.WriteString("\n")
	}
	return b.String()
}

// timersListText renders a chat's upcoming timers in its local timezone.
// Timers due on the current UTC day use the short clock-only format.
func timersListText(recs []timer.Record, loc *time.Location, now time.Time) string {
	if len(recs) == 0 {
		return msgNoTimers
	}
	var b strings.Builder
	b.WriteString("Incoming timers:\n")
	for _, rec := range recs {
		local := rec.NotifyAt.In(loc)
		format := longTimeFormat
		if sameUTCDay(rec.NotifyAt, now) {
			format = shortTimeFormat
		}
		b.WriteString("- ")
		b.WriteString(local.Format(format))
		if rec.Label != "" {
			b.WriteString(" #")
			b.WriteString(rec.Label)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
