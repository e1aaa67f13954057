package types

import "strings"

// Other is the free-text fallback accepted by every classification field.
const Other = "Other"

// BodyTypes is the enumeration of vehicle body styles.
var BodyTypes = []string{"Sedan", "SUV", "Truck", "Coupe", "Convertible", "Hatchback", "Van", "Wagon"}

// Conditions is the enumeration of vehicle conditions.
var Conditions = []string{"New", "Excellent", "Good", "Fair", "Salvage"}

// Transmissions is the enumeration of transmission types.
var Transmissions = []string{"Automatic", "Manual", "CVT"}

// FuelTypes is the enumeration of fuel types.
var FuelTypes = []string{"Gasoline", "Diesel", "Electric", "Hybrid"}

// Makes is the fixed list of manufacturers offered by the listing forms.
var Makes = []string{
	"Acura", "Alfa Romeo", "Aston Martin", "Audi", "Bentley", "BMW",
	"Buick", "BYD", "Cadillac", "Chevrolet", "Chrysler", "Citroen",
	"Dodge", "Ferrari", "Fiat", "Ford", "Genesis", "GMC",
	"Honda", "Hyundai", "Infiniti", "Isuzu", "Jaguar", "Jeep",
	"Kia", "Lamborghini", "Land Rover", "Lexus", "Lincoln", "Maserati",
	"Mazda", "McLaren", "Mercedes-Benz", "Mini", "Mitsubishi", "Nissan",
	"Peugeot", "Porsche", "Ram", "Renault", "Rolls-Royce", "Subaru",
	"Suzuki", "Tesla", "Toyota", "Volkswagen", "Volvo", "Geely",
}

// FeatureSuggestions are the tags the listing form suggests for each
// feature group. Sellers may enter tags outside these lists.
var FeatureSuggestions = map[string][]string{
	"safety":   {"ABS", "Airbags", "Blind Spot Monitor", "Lane Assist", "Parking Sensors", "Reverse Camera", "Traction Control"},
	"comfort":  {"Air Conditioning", "Climate Control", "Cruise Control", "Heated Seats", "Keyless Entry", "Power Steering", "Push Start"},
	"interior": {"Bluetooth", "Leather Seats", "Navigation", "Premium Audio", "Sunroof", "Touchscreen", "USB Ports"},
	"exterior": {"Alloy Wheels", "Fog Lights", "LED Headlights", "Roof Rails", "Tinted Windows", "Tow Hitch"},
}

// Taxonomy groups the enumerations for clients that render filter forms.
type Taxonomy struct {
	Makes              []string            `json:"makes"`
	BodyTypes          []string            `json:"body_types"`
	Conditions         []string            `json:"conditions"`
	Transmissions      []string            `json:"transmissions"`
	FuelTypes          []string            `json:"fuel_types"`
	FeatureSuggestions map[string][]string `json:"feature_suggestions"`
}

// DefaultTaxonomy returns the built-in enumerations, each with Other appended.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Makes:              withOther(Makes),
		BodyTypes:          withOther(BodyTypes),
		Conditions:         withOther(Conditions),
		Transmissions:      withOther(Transmissions),
		FuelTypes:          withOther(FuelTypes),
		FeatureSuggestions: FeatureSuggestions,
	}
}

// InEnum reports whether value matches one of values or Other,
// ignoring case.
func InEnum(value string, values []string) bool {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, Other) {
		return true
	}
	for _, v := range values {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

func withOther(values []string) []string {
	out := make([]string, 0, len(values)+1)
	out = append(out, values...)
	return append(out, Other)
}
