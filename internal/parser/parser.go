// internal/parser/parser.go
package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/locale"
	"demand-broker/internal/models"
)

// twoDigitYearPivot decides the century of 2-digit years: below the pivot
// the year expands to 20YY, otherwise to 19YY.
const twoDigitYearPivot = 70

// knownCountries are the 2-letter codes recognized when decomposing a
// locale field into postal code and country.
var knownCountries = map[string]bool{
	"CA": true, "US": true, "FR": true, "GB": true,
	"DE": true, "BE": true, "CH": true, "ES": true, "IT": true,
}

// DefaultCountryCode applies when a locale field carries no country.
const DefaultCountryCode = "US"

// Parse turns one line of raw text into a structured field map using the
// compiled patterns of a locale. It fails with a ClientError when the text
// is empty or yields neither structured fields nor leftover keywords.
// Parsing is deterministic and never returns a partially-applied map on
// error.
func Parse(patterns *CompiledPatterns, text string) (models.FieldMap, error) {
	working := normalize(text)
	if working == "" {
		return nil, apperrors.NewClientError("empty command")
	}

	// Help short-circuits all other parsing.
	if patterns.help != nil {
		if m := patterns.help.FindStringSubmatch(working); m != nil {
			return models.FieldMap{
				models.FieldNeedHelp: strings.TrimSpace(m[1]),
			}, nil
		}
	}

	fields := models.FieldMap{}

	// An action verb at the start of the line outranks field patterns.
	if patterns.actionVerb != nil {
		if m := patterns.actionVerb.FindStringSubmatchIndex(working); m != nil {
			verb := strings.ToLower(working[m[2]:m[3]])
			if action, ok := patterns.actionCanon[verb]; ok {
				fields[models.FieldAction] = string(action)
				working = cutSpan(working, m[0], m[1])
			}
		}
	}

	for _, fp := range patterns.fields {
		m := fp.re.FindStringSubmatchIndex(working)
		if m == nil {
			continue
		}
		if convertField(patterns, fp.Prefix, working, m, fields) {
			working = cutSpan(working, m[0], m[1])
		}
	}

	// Whatever survives pattern extraction is free-form criteria, except
	// +tag / -tag which populate the add/remove delta lists.
	var criteria, added, removed []string
	if tags, ok := fields[models.FieldCriteria].([]string); ok {
		criteria = tags
	}
	for _, token := range strings.Fields(working) {
		switch {
		case len(token) > 1 && strings.HasPrefix(token, "+"):
			added = append(added, token[1:])
		case len(token) > 1 && strings.HasPrefix(token, "-"):
			removed = append(removed, token[1:])
		default:
			criteria = append(criteria, token)
		}
	}
	if len(criteria) > 0 {
		fields[models.FieldCriteria] = criteria
	} else {
		delete(fields, models.FieldCriteria)
	}
	if len(added) > 0 {
		fields[models.FieldCriteriaAdd] = added
	}
	if len(removed) > 0 {
		fields[models.FieldCriteriaRemove] = removed
	}

	if len(fields) == 0 {
		return nil, apperrors.NewClientError("nothing to process in %q", text)
	}
	return fields, nil
}

// convertField extracts and type-converts one matched field. A conversion
// failure leaves the span in place so the tokens fall through to criteria.
func convertField(patterns *CompiledPatterns, prefix locale.Prefix, text string, m []int, fields models.FieldMap) bool {
	group := func(i int) string {
		lo, hi := m[2*i], m[2*i+1]
		if lo < 0 {
			return ""
		}
		return text[lo:hi]
	}

	switch prefix {
	case locale.PrefixAction:
		value := strings.ToLower(group(1))
		if action, ok := patterns.actionCanon[value]; ok {
			value = string(action)
		}
		fields[models.FieldAction] = value

	case locale.PrefixState:
		fields[models.FieldState] = strings.ToLower(group(1))

	case locale.PrefixReference:
		n, err := strconv.ParseInt(group(1), 10, 64)
		if err != nil {
			return false
		}
		fields[models.FieldReference] = n

	case locale.PrefixQuantity:
		n, err := strconv.ParseInt(group(1), 10, 64)
		if err != nil {
			return false
		}
		fields[models.FieldQuantity] = n

	case locale.PrefixProposal:
		fields[models.FieldProposal] = group(1)

	case locale.PrefixStore:
		fields[models.FieldStore] = group(1)

	case locale.PrefixExpiration:
		date, err := parseDate(group(1))
		if err != nil {
			return false
		}
		fields[models.FieldExpiration] = date

	case locale.PrefixRange:
		value, err := strconv.ParseFloat(strings.ReplaceAll(group(1), ",", "."), 64)
		if err != nil {
			return false
		}
		fields[models.FieldRange] = value
		fields[models.FieldRangeUnit] = canonicalUnit(group(2))

	case locale.PrefixPrice:
		price, err := parseAmount(group(1))
		if err != nil {
			return false
		}
		fields[models.FieldPrice] = price

	case locale.PrefixTotal:
		total, err := parseAmount(group(1))
		if err != nil {
			return false
		}
		fields[models.FieldTotal] = total

	case locale.PrefixLocale:
		postal, country := splitPostalCountry(group(1), group(2))
		fields[models.FieldPostalCode] = postal
		fields[models.FieldCountryCode] = country

	case locale.PrefixTags:
		fields[models.FieldCriteria] = strings.Fields(group(1))

	default:
		return false
	}
	return true
}

// normalize collapses runs of whitespace to single spaces and trims ends.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func cutSpan(text string, lo, hi int) string {
	return normalize(text[:lo] + " " + text[hi:])
}

// parseDate accepts YYYY-MM-DD and YY-MM-DD, expanding 2-digit years per
// the fixed pivot. The resulting instant is the end of that day, UTC.
func parseDate(value string) (time.Time, error) {
	parts := strings.SplitN(value, "-", 3)
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, err
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, err
	}
	if year < 100 {
		if year < twoDigitYearPivot {
			year += 2000
		} else {
			year += 1900
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, apperrors.NewClientError("invalid date %q", value)
	}
	return time.Date(year, time.Month(month), day, 23, 59, 59, 0, time.UTC), nil
}

// currency symbols and codes stripped around monetary amounts.
var currencyTokens = []string{"$", "€", "£", "¥", "usd", "cad", "eur", "gbp"}

// parseAmount strips currency markers before or after a decimal number,
// case-insensitively, and parses the remainder.
func parseAmount(token string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(token)
	lowered := strings.ToLower(cleaned)
	for _, cur := range currencyTokens {
		if strings.HasPrefix(lowered, cur) {
			cleaned = cleaned[len(cur):]
			lowered = lowered[len(cur):]
			break
		}
	}
	for _, cur := range currencyTokens {
		if strings.HasSuffix(lowered, cur) {
			cleaned = cleaned[:len(cleaned)-len(cur)]
			break
		}
	}
	cleaned = strings.ReplaceAll(strings.TrimSpace(cleaned), ",", ".")
	return decimal.NewFromString(cleaned)
}

// canonicalUnit lowercases the unit letters trailing a range value.
// Anything that does not look like miles is kilometers.
func canonicalUnit(unit string) string {
	if strings.HasPrefix(strings.ToLower(unit), "mi") {
		return models.UnitMiles
	}
	return models.UnitKilometers
}

// splitPostalCountry decomposes a locale value into postal code and
// country. The country may arrive as a separate token, behind a dash, or
// glued to the postal code; absent, it defaults to DefaultCountryCode.
func splitPostalCountry(postal, country string) (string, string) {
	postal = strings.ToUpper(postal)
	country = strings.ToUpper(country)

	if country == "" {
		if i := strings.LastIndex(postal, "-"); i > 0 && knownCountries[postal[i+1:]] {
			postal, country = postal[:i], postal[i+1:]
		} else if len(postal) > 2 && knownCountries[postal[len(postal)-2:]] {
			postal, country = postal[:len(postal)-2], postal[len(postal)-2:]
		}
	}
	if !knownCountries[country] {
		country = DefaultCountryCode
	}
	return strings.ReplaceAll(postal, "-", ""), country
}
