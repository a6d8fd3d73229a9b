// Package intent turns free-form user text into a structured edit request.
package intent

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"retouch/internal/domain"
	"retouch/internal/middleware"
)

// DefaultOutputSize is the square edge requested from editors.
const DefaultOutputSize = 1024

var (
	hairColorRe     = regexp.MustCompile(`casta[nñ]o|brown|negro|black|rubio|blond|pelirrojo|red`)
	clothingColorRe = regexp.MustCompile(`neutro|neutral|azul|blue|gris|gray|grey|blanco|white|beige|verde|green`)
	bodyHintRe      = regexp.MustCompile(`ropa|outfit|prenda|vestir|look|clothes|clothing|wear|estilo de ropa`)
)

type token struct {
	needles []string
	value   string
}

var hairLengths = []token{
	{needles: []string{"corto", "short"}, value: "short"},
	{needles: []string{"largo", "long"}, value: "long"},
	{needles: []string{"medio", "medium"}, value: "medium"},
}

var beardStyles = []token{
	{needles: []string{"stubble", "barba de 3 días", "barba de 3 dias"}, value: "stubble"},
	{needles: []string{"barba completa", "full beard"}, value: "full"},
}

var clothingItems = []token{
	{needles: []string{"chaqueta", "jacket", "blazer"}, value: "jacket"},
	{needles: []string{"pantalón", "pantalon", "pants", "trousers"}, value: "pants"},
	{needles: []string{"camisa", "shirt"}, value: "shirt"},
	{needles: []string{"vestido", "dress"}, value: "dress"},
}

var clothingFits = []token{
	{needles: []string{"ajustad", "slim"}, value: "slim"},
	{needles: []string{"holgad", "loose", "oversize"}, value: "loose"},
	{needles: []string{"regular"}, value: "regular"},
}

var advisoryMarkers = []string{"recomendaciones", "recommendations", "corte texturizado"}

var clothingColorCanon = map[string]string{
	"neutro": "neutral",
	"azul":   "blue",
	"gris":   "gray",
	"grey":   "gray",
	"blanco": "white",
	"verde":  "green",
}

func firstMatch(text string, tokens []token) (string, bool) {
	for _, t := range tokens {
		for _, n := range t.needles {
			if strings.Contains(text, n) {
				return t.value, true
			}
		}
	}
	return "", false
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

var folder = cases.Lower(language.Und)

// MapUserTextToIntent extracts hair, beard and clothing changes from text.
// The user text is kept as the instruction so editors can use it
// verbatim.
func MapUserTextToIntent(text, locale string) domain.EditIntent {
	lower := folder.String(text)
	var changes []domain.EditChange
	add := func(kind, value string) {
		changes = append(changes, domain.EditChange{Type: kind, Value: value})
	}

	if v, ok := firstMatch(lower, hairLengths); ok {
		add(domain.ChangeHairLength, v)
	}
	if v, ok := firstMatch(lower, beardStyles); ok {
		add(domain.ChangeBeardStyle, v)
	}

	clothing := false
	if v, ok := firstMatch(lower, clothingItems); ok {
		add(domain.ChangeClothingItem, v)
		clothing = true
	}
	if v, ok := firstMatch(lower, clothingFits); ok {
		add(domain.ChangeClothingFit, v)
		clothing = true
	}
	// A color next to a garment describes the garment, not the hair.
	if clothing {
		if m := clothingColorRe.FindString(lower); m != "" {
			add(domain.ChangeClothingColor, canonicalClothingColor(m))
		} else if m := hairColorRe.FindString(lower); m != "" {
			add(domain.ChangeClothingColor, m)
		}
	} else if m := hairColorRe.FindString(lower); m != "" {
		add(domain.ChangeHairColor, m)
	}

	if strings.Contains(lower, "fade") || strings.Contains(lower, "degradado") {
		add(domain.ChangeHairStyle, "fade")
	}

	it := domain.EditIntent{
		Locale:           middleware.NormalizeLocale(locale),
		Instruction:      text,
		PreserveIdentity: true,
		OutputSize:       DefaultOutputSize,
		Watermark:        true,
	}
	it.Change = changes

	if containsAny(lower, advisoryMarkers) {
		if !it.Has(domain.ChangeHairStyle) {
			it.Change = append(it.Change, domain.EditChange{Type: domain.ChangeHairStyle, Value: "fade medio con textura"})
		}
		if !it.Has(domain.ChangeBeardStyle) {
			it.Change = append(it.Change, domain.EditChange{Type: domain.ChangeBeardStyle, Value: "stubble"})
		}
	}

	if len(it.Change) == 0 {
		if bodyHintRe.MatchString(lower) {
			it.Change = []domain.EditChange{{Type: domain.ChangeClothingItem, Value: strings.TrimSpace(text)}}
		} else {
			it.Change = []domain.EditChange{
				{Type: domain.ChangeBeardStyle, Value: "stubble"},
				{Type: domain.ChangeHairStyle, Value: "fade medio"},
			}
		}
	}
	return it
}

func canonicalClothingColor(m string) string {
	if v, ok := clothingColorCanon[m]; ok {
		return v
	}
	return m
}

// Prompt renders intent as an instruction for an image model.
func Prompt(it domain.EditIntent) string {
	var b strings.Builder
	b.WriteString("Edit this photo of a person. Apply exactly these changes: ")
	for i, c := range it.Change {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(strings.ReplaceAll(c.Type, "_", " "))
		b.WriteString(": ")
		b.WriteString(c.Value)
	}
	b.WriteString(".")
	if it.Instruction != "" {
		b.WriteString(" User request: ")
		b.WriteString(strings.TrimSpace(it.Instruction))
		b.WriteString(".")
	}
	if it.PreserveIdentity {
		b.WriteString(" Preserve the person's identity, facial features, expression, skin tone and the original background.")
	}
	b.WriteString(" Keep the result photorealistic.")
	return b.String()
}
