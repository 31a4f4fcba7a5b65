package payment

import "strings"

// Carrier identifies the mobile-money network operator inferred from a phone
// number prefix.
type Carrier string

const (
	CarrierMTN    Carrier = "mtn"
	CarrierAirtel Carrier = "airtel"
)

// Zambian mobile prefixes after normalisation to local 0XXXXXXXXX form.
var carrierPrefixes = map[string]Carrier{
	"096": CarrierMTN,
	"076": CarrierMTN,
	"097": CarrierAirtel,
	"077": CarrierAirtel,
}

// CarrierFor infers the network operator from a phone number. Unknown
// prefixes default to Airtel, matching the gateway's fallback routing.
func CarrierFor(phone string) Carrier {
	local := normalizePhone(phone)
	if len(local) >= 3 {
		if carrier, ok := carrierPrefixes[local[:3]]; ok {
			return carrier
		}
	}
	return CarrierAirtel
}

func normalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	cleaned := digits.String()
	// international form 260XXXXXXXXX drops the country code
	if strings.HasPrefix(cleaned, "260") && len(cleaned) > 9 {
		cleaned = "0" + cleaned[3:]
	}
	return cleaned
}
