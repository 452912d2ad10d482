package bill

import (
	"fmt"
	"time"
)

// DateLayout is the storage format of bill dates
const DateLayout = "2006-01-02"

// FallbackStatusLabel is shown for statuses outside the known set
const FallbackStatusLabel = "Inconnu"

var shortMonths = [...]string{"Jan", "Fév", "Mar", "Avr", "Mai", "Jui", "Jui", "Aoû", "Sep", "Oct", "Nov", "Déc"}

// FormatDate renders a stored date the way the bill list displays it,
// e.g. "2004-04-04" becomes "4 Avr. 04".
func FormatDate(raw string) (string, error) {
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("formatting date %q: %w", raw, err)
	}
	return fmt.Sprintf("%d %s. %02d", d.Day(), shortMonths[d.Month()-1], d.Year()%100), nil
}

// Label returns the display label of a status
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "En attente"
	case StatusAccepted:
		return "Accepté"
	case StatusRefused:
		return "Refused"
	default:
		return FallbackStatusLabel
	}
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusAccepted || s == StatusRefused
}
