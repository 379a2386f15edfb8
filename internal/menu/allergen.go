package menu

import "strings"

// ParseAllergens splits "Udang, telur|Kacang" into normalized lowercase
// tokens. Empty tokens and duplicates are dropped.
func ParseAllergens(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '|' })
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tok := strings.ToLower(strings.TrimSpace(f))
		if tok == "" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// NormalizeAllergens is ParseAllergens joined back with ", " for storage.
func NormalizeAllergens(raw string) string {
	return strings.Join(ParseAllergens(raw), ", ")
}

// IsBlocked is true when the student and the item share at least one allergen.
// Raw, unnormalized strings are accepted on both sides.
func IsBlocked(studentAllergens, itemAllergens string) bool {
	return len(Conflicts(studentAllergens, itemAllergens)) > 0
}

// Conflicts lists the shared allergens in item order.
func Conflicts(studentAllergens, itemAllergens string) []string {
	student := ParseAllergens(studentAllergens)
	if len(student) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(student))
	for _, a := range student {
		set[a] = struct{}{}
	}
	var shared []string
	for _, a := range ParseAllergens(itemAllergens) {
		if _, ok := set[a]; ok {
			shared = append(shared, a)
		}
	}
	return shared
}
