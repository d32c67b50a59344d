package normalize

import (
	"regexp"
	"strings"

	"pcbazaar/models"
)

// EmptyToken is the sentinel produced when a raw name normalizes to nothing.
const EmptyToken = "unknown"

// Normalized is the tokenized identity of a raw listing name. Tokens keep
// their original order; digit-bearing model codes survive verbatim.
type Normalized struct {
	Tokens   []string
	Brand    models.Brand
	Category models.Category
	// Key is the tokens joined with single spaces. Normalizing a Key
	// yields the same tokens back.
	Key string
}

var (
	clockNoise  = regexp.MustCompile(`\b\d+(\.\d+)?\s*[gm]hz\b`)
	coreNoise   = regexp.MustCompile(`\b\d+[\s-]?cores?\b`)
	threadNoise = regexp.MustCompile(`\b\d+[\s-]?threads?\b`)
	trademarks  = strings.NewReplacer("®", "", "™", "", "©", "")
)

// Vendor boilerplate that carries no product identity.
var stopwords = map[string]struct{}{
	"processor": {}, "processors": {},
	"box": {}, "tray": {}, "oem": {},
	"desktop": {}, "with": {}, "and": {}, "for": {},
	"genuine": {}, "original": {}, "official": {},
	"warranty": {}, "price": {}, "in": {}, "bd": {}, "bangladesh": {},
}

// Normalize tokenizes a raw vendor product name. It is deterministic and
// idempotent: Normalize(n.Key, cat) reproduces n. The category hint wins
// when present; otherwise the category is inferred from the name.
func Normalize(raw string, hint models.Category) Normalized {
	lower := strings.ToLower(trademarks.Replace(raw))

	cat := hint
	if cat == models.CategoryUnknown {
		cat = inferCategory(lower)
	}

	lower = stripNoise(lower)

	tokens := make([]string, 0, 8)
	for _, field := range alnumFields(lower) {
		for _, part := range splitModelBoundary(field) {
			if _, skip := stopwords[part]; skip {
				continue
			}
			tokens = append(tokens, part)
		}
	}

	// Punctuation can hide noise from the first pass ("8(Core)" tokenizes
	// to "8 core"), so the filters run again over the token stream.
	tokens = strings.Fields(stripNoise(strings.Join(tokens, " ")))

	brand := inferBrand(tokens)

	if len(tokens) == 0 {
		tokens = []string{EmptyToken}
	}

	return Normalized{
		Tokens:   tokens,
		Brand:    brand,
		Category: cat,
		Key:      strings.Join(tokens, " "),
	}
}

func stripNoise(s string) string {
	s = clockNoise.ReplaceAllString(s, " ")
	s = coreNoise.ReplaceAllString(s, " ")
	return threadNoise.ReplaceAllString(s, " ")
}

// alnumFields splits on every non-alphanumeric rune, so "i5-12400F"
// becomes ["i5", "12400f"].
func alnumFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// splitModelBoundary breaks a fused series prefix off its model number:
// "ryzen5" -> ["ryzen", "5"], "rtx4060" -> ["rtx", "4060"]. Short alpha
// prefixes like "i5" or "b650" are left intact.
func splitModelBoundary(token string) []string {
	letters := 0
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c >= 'a' && c <= 'z' {
			letters++
			continue
		}
		if c >= '0' && c <= '9' && letters >= 3 && i < len(token) {
			return []string{token[:i], token[i:]}
		}
		break
	}
	return []string{token}
}

// HasDigit reports whether a token carries a digit, which marks it as a
// model code that only ever matches exactly.
func HasDigit(token string) bool {
	for i := 0; i < len(token); i++ {
		if token[i] >= '0' && token[i] <= '9' {
			return true
		}
	}
	return false
}

var brandTokens = map[string]models.Brand{
	"amd": models.BrandAMD, "ryzen": models.BrandAMD, "radeon": models.BrandAMD,
	"athlon": models.BrandAMD, "threadripper": models.BrandAMD, "epyc": models.BrandAMD,
	"intel": models.BrandIntel, "core": models.BrandIntel, "xeon": models.BrandIntel,
	"pentium": models.BrandIntel, "celeron": models.BrandIntel, "arc": models.BrandIntel,
	"i3": models.BrandIntel, "i5": models.BrandIntel, "i7": models.BrandIntel, "i9": models.BrandIntel,
	"nvidia": models.BrandNvidia, "geforce": models.BrandNvidia, "rtx": models.BrandNvidia,
	"gtx": models.BrandNvidia, "quadro": models.BrandNvidia,
	"asus": models.BrandAsus, "rog": models.BrandAsus, "tuf": models.BrandAsus,
	"msi":      models.BrandMSI,
	"gigabyte": models.BrandGigabyte, "aorus": models.BrandGigabyte,
	"asrock":  models.BrandASRock,
	"corsair": models.BrandCorsair,
	"gskill":  models.BrandGSkill, "skill": models.BrandGSkill,
	"kingston": models.BrandKingston, "hyperx": models.BrandKingston,
	"adata": models.BrandADATA, "xpg": models.BrandADATA,
	"team":    models.BrandTeam,
	"samsung": models.BrandSamsung,
	"wd":      models.BrandWD, "western": models.BrandWD,
	"seagate": models.BrandSeagate,
	"crucial": models.BrandCrucial,
}

// inferBrand returns the brand implied by the first brand-bearing token.
func inferBrand(tokens []string) models.Brand {
	for _, t := range tokens {
		if b, ok := brandTokens[t]; ok {
			return b
		}
	}
	return models.BrandUnknown
}

// inferCategory guesses the component type from the raw name. CPU cues are
// checked before GPU cues so APU names ("with Radeon Graphics") land in CPU.
func inferCategory(lower string) models.Category {
	toks := map[string]struct{}{}
	for _, t := range alnumFields(lower) {
		toks[t] = struct{}{}
	}
	has := func(words ...string) bool {
		for _, w := range words {
			if _, ok := toks[w]; ok {
				return true
			}
		}
		return false
	}

	switch {
	case has("motherboard", "mainboard", "mobo"):
		return models.CategoryMotherboard
	// "CPU Cooler" must land in cooling, so cooler cues outrank the cpu token.
	case has("cooler", "heatsink", "aio"):
		return models.CategoryCooling
	case has("processor", "cpu"):
		return models.CategoryCPU
	case has("geforce", "rtx", "gtx", "quadro", "vga") || strings.Contains(lower, "graphics card"):
		return models.CategoryGPU
	case has("ram", "memory", "dimm", "sodimm") || hasPrefix(toks, "ddr"):
		return models.CategoryRAM
	case has("psu") || strings.Contains(lower, "power supply"):
		return models.CategoryPSU
	case has("ssd", "hdd", "nvme") || strings.Contains(lower, "hard drive") || strings.Contains(lower, "hard disk"):
		return models.CategoryStorage
	case has("case", "casing", "chassis", "cabinet"):
		return models.CategoryCase
	case has("cooler", "cooling", "fan", "aio", "heatsink"):
		return models.CategoryCooling
	}
	return models.CategoryUnknown
}

func hasPrefix(toks map[string]struct{}, prefix string) bool {
	for t := range toks {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}
