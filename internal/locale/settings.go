// internal/locale/settings.go
package locale

import (
	"sort"

	"golang.org/x/text/language"

	"demand-broker/internal/models"
)

// Prefix identifies a structured field of the command grammar. Localized
// synonyms resolve to these identifiers during parsing.
type Prefix string

const (
	PrefixAction     Prefix = "action"
	PrefixExpiration Prefix = "expiration"
	PrefixHelp       Prefix = "help"
	PrefixLocale     Prefix = "locale"
	PrefixPrice      Prefix = "price"
	PrefixProposal   Prefix = "proposal"
	PrefixQuantity   Prefix = "quantity"
	PrefixReference  Prefix = "reference"
	PrefixRange      Prefix = "range"
	PrefixState      Prefix = "state"
	PrefixStore      Prefix = "store"
	PrefixTags       Prefix = "tags"
	PrefixTotal      Prefix = "total"
)

// Action is a canonical command verb.
type Action string

const (
	ActionCancel  Action = "cancel"
	ActionClose   Action = "close"
	ActionConfirm Action = "confirm"
	ActionDecline Action = "decline"
	ActionDelete  Action = "delete"
	ActionDemand  Action = "demand"
	ActionHelp    Action = "help"
	ActionList    Action = "list"
	ActionPropose Action = "propose"
	ActionSupply  Action = "supply"
)

// Settings holds, for one locale, the recognized synonyms and display
// labels of the command grammar. Synonym lists are sorted longest-first so
// a short prefix never shadows a longer one during pattern compilation.
type Settings struct {
	Locale       string
	Tag          language.Tag
	Prefixes     map[Prefix][]string
	Actions      map[Action][]string
	StateLabels  map[models.State]string
	HelpKeywords map[string][]string
}

// Supported lists the locales with built-in grammar tables.
func Supported() []language.Tag {
	return []language.Tag{language.English, language.French}
}

// Load returns the grammar settings for a locale identifier. An unknown or
// absent locale yields empty settings: parsing then extracts no structured
// fields and treats all text as keywords.
func Load(localeID string) *Settings {
	tag, err := language.Parse(localeID)
	if err != nil {
		return emptySettings(localeID)
	}

	base, _ := tag.Base()
	var s *Settings
	switch base.String() {
	case "en":
		s = englishSettings()
		s.Tag = language.English
	case "fr":
		s = frenchSettings()
		s.Tag = language.French
	default:
		return emptySettings(localeID)
	}

	s.Locale = localeID
	for prefix := range s.Prefixes {
		sortLongestFirst(s.Prefixes[prefix])
	}
	for action := range s.Actions {
		sortLongestFirst(s.Actions[action])
	}
	for keyword := range s.HelpKeywords {
		sortLongestFirst(s.HelpKeywords[keyword])
	}
	return s
}

func emptySettings(localeID string) *Settings {
	return &Settings{
		Locale:       localeID,
		Tag:          language.Und,
		Prefixes:     map[Prefix][]string{},
		Actions:      map[Action][]string{},
		StateLabels:  map[models.State]string{},
		HelpKeywords: map[string][]string{},
	}
}

// sortLongestFirst orders synonyms by descending length, ties alphabetical,
// to avoid partial-prefix capture in alternation patterns.
func sortLongestFirst(synonyms []string) {
	sort.SliceStable(synonyms, func(i, j int) bool {
		if len(synonyms[i]) != len(synonyms[j]) {
			return len(synonyms[i]) > len(synonyms[j])
		}
		return synonyms[i] < synonyms[j]
	})
}

func englishSettings() *Settings {
	return &Settings{
		Prefixes: map[Prefix][]string{
			PrefixAction:     {"action", "act", "!"},
			PrefixExpiration: {"expiration", "expires", "exp"},
			PrefixHelp:       {"help", "?"},
			PrefixLocale:     {"locale", "loc"},
			PrefixPrice:      {"price", "prc"},
			PrefixProposal:   {"proposal", "prop"},
			PrefixQuantity:   {"quantity", "qty"},
			PrefixReference:  {"reference", "ref"},
			PrefixRange:      {"range", "rng"},
			PrefixState:      {"state"},
			PrefixStore:      {"store"},
			PrefixTags:       {"tags", "tag"},
			PrefixTotal:      {"total"},
		},
		Actions: map[Action][]string{
			ActionCancel:  {"cancel"},
			ActionClose:   {"close"},
			ActionConfirm: {"confirm"},
			ActionDecline: {"decline"},
			ActionDelete:  {"delete"},
			ActionDemand:  {"demand", "need", "want"},
			ActionHelp:    {"help"},
			ActionList:    {"list"},
			ActionPropose: {"propose"},
			ActionSupply:  {"supply"},
		},
		StateLabels: map[models.State]string{
			models.StateOpened:            "open",
			models.StateInvalid:           "invalid",
			models.StatePublished:         "published",
			models.StateConfirmed:         "confirmed",
			models.StateDeclined:          "declined",
			models.StateCancelled:         "cancelled",
			models.StateClosed:            "closed",
			models.StateMarkedForDeletion: "marked for deletion",
		},
		HelpKeywords: map[string][]string{
			"demand":   {"demand", "order"},
			"propose":  {"propose", "offer"},
			"range":    {"range", "radius"},
			"tags":     {"tags", "keywords"},
			"commands": {"commands", "syntax"},
		},
	}
}

func frenchSettings() *Settings {
	return &Settings{
		Prefixes: map[Prefix][]string{
			PrefixAction:     {"action", "act", "!"},
			PrefixExpiration: {"échéance", "echeance", "exp"},
			PrefixHelp:       {"aide", "?"},
			PrefixLocale:     {"localisation", "lieu", "loc"},
			PrefixPrice:      {"prix", "prc"},
			PrefixProposal:   {"proposition", "prop"},
			PrefixQuantity:   {"quantité", "quantite", "qté", "qty"},
			PrefixReference:  {"référence", "reference", "réf", "ref"},
			PrefixRange:      {"rayon", "rng"},
			PrefixState:      {"état", "etat"},
			PrefixStore:      {"boutique", "magasin"},
			PrefixTags:       {"mots-clés", "mots", "tags"},
			PrefixTotal:      {"total"},
		},
		Actions: map[Action][]string{
			ActionCancel:  {"annuler"},
			ActionClose:   {"fermer", "clore"},
			ActionConfirm: {"confirmer"},
			ActionDecline: {"décliner", "decliner"},
			ActionDelete:  {"supprimer"},
			ActionDemand:  {"demander", "demande"},
			ActionHelp:    {"aide"},
			ActionList:    {"lister", "liste"},
			ActionPropose: {"proposer"},
			ActionSupply:  {"fournir"},
		},
		StateLabels: map[models.State]string{
			models.StateOpened:            "ouverte",
			models.StateInvalid:           "invalide",
			models.StatePublished:         "publiée",
			models.StateConfirmed:         "confirmée",
			models.StateDeclined:          "déclinée",
			models.StateCancelled:         "annulée",
			models.StateClosed:            "fermée",
			models.StateMarkedForDeletion: "marquée pour suppression",
		},
		HelpKeywords: map[string][]string{
			"demand":   {"demande", "commande"},
			"propose":  {"proposition", "offre"},
			"range":    {"rayon"},
			"tags":     {"mots-clés", "mots"},
			"commands": {"commandes", "syntaxe"},
		},
	}
}
