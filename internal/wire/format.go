// Package wire renders a HUD document (or any JSON-shaped value) in one
// of three wire forms and parses agent replies back out of them.
// Grounded on hud_service.py/toon_service.py's serialize_hud/parse_response
// and spec.md §4.3/§6.4.
package wire

// Format names one of the three supported wire forms.
type Format string

const (
	FormatVerboseJSON Format = "json"
	FormatAbbreviated Format = "abbr"
	FormatTOON        Format = "toon"
)
