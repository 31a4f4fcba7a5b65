package payment

import "strings"

// Kind is the payment-method classification resolved once when the operator
// selects a method, replacing repeated substring matching downstream.
type Kind int

const (
	// KindOther takes the generic popup gateway path.
	KindOther Kind = iota
	// KindCash settles immediately at the register.
	KindCash
	// KindCard takes the popup gateway path with a card channel.
	KindCard
	// KindMobileMoney is a carrier-billed channel settled via USSD prompt.
	KindMobileMoney
)

func (k Kind) String() string {
	switch k {
	case KindCash:
		return "cash"
	case KindCard:
		return "card"
	case KindMobileMoney:
		return "mobile_money"
	default:
		return "other"
	}
}

// Method is a configured payment method with its resolved kind.
type Method struct {
	Name string
	Kind Kind
}

var mobileMoneyMarkers = []string{"mobile", "lenco", "mtn", "airtel"}

// Classify resolves a configured method name into a Kind.
func Classify(name string) Kind {
	lower := strings.ToLower(strings.TrimSpace(name))
	if strings.Contains(lower, "cash") {
		return KindCash
	}
	for _, marker := range mobileMoneyMarkers {
		if strings.Contains(lower, marker) {
			return KindMobileMoney
		}
	}
	if strings.Contains(lower, "card") {
		return KindCard
	}
	return KindOther
}

// ResolveMethod builds a Method from its configured name.
func ResolveMethod(name string) Method {
	return Method{Name: strings.TrimSpace(name), Kind: Classify(name)}
}
