package extractor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// label is the canonical name of a field printed on a slip.
type label string

const (
	labelBeneficiario      label = "beneficiario"
	labelBeneficiarioFinal label = "beneficiario_final"
	labelPagador           label = "pagador"
	labelPagadorFinal      label = "pagador_final"
	labelValorDocumento    label = "valor_documento"
	labelIgnored           label = "ignored"
)

// party groups labels that describe the same person or company.
type party string

const (
	partyNone         party = ""
	partyBeneficiario party = "beneficiario"
	partyPagador      party = "pagador"
)

func (l label) party() party {
	switch l {
	case labelBeneficiario, labelBeneficiarioFinal:
		return partyBeneficiario
	case labelPagador, labelPagadorFinal:
		return partyPagador
	}
	return partyNone
}

// aliases maps folded printed labels to canonical labels. Labels that look
// like a party but are not one (sacador/avalista) map to labelIgnored so the
// fuzzy matcher cannot pull them in.
var aliases = map[string]label{
	"beneficiario":          labelBeneficiario,
	"nome do beneficiario":  labelBeneficiario,
	"cedente":               labelBeneficiario,
	"favorecido":            labelBeneficiario,
	"recebedor":             labelBeneficiario,
	"beneficiario final":    labelBeneficiarioFinal,
	"pagador":               labelPagador,
	"nome do pagador":       labelPagador,
	"sacado":                labelPagador,
	"pagador final":         labelPagadorFinal,
	"valor do documento":    labelValorDocumento,
	"valor cobrado":         labelValorDocumento,
	"sacador":               labelIgnored,
	"sacador/avalista":      labelIgnored,
	"sacador avalista":      labelIgnored,
	"beneficiario/sacador":  labelIgnored,
	"pagador/sacador":       labelIgnored,
	"local de pagamento":    labelIgnored,
	"data de pagamento":     labelIgnored,
	"instrucoes do pagador": labelIgnored,
}

// aliasesByLength lists aliases longest first so "beneficiario final" wins
// over "beneficiario" in prefix matching.
var aliasesByLength = func() []string {
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

const (
	fuzzyMinLength   = 6
	fuzzyMaxDistance = 2
)

// canonicalLabel resolves a folded label candidate, tolerating small OCR
// errors ("benefíciaro") for candidates of reasonable length.
func canonicalLabel(candidate string) (label, bool) {
	candidate = strings.Join(strings.Fields(candidate), " ")
	if l, ok := aliases[candidate]; ok {
		return l, true
	}
	if len(candidate) < fuzzyMinLength {
		return "", false
	}

	best, bestDist := label(""), fuzzyMaxDistance+1
	for _, alias := range aliasesByLength {
		if d := fuzzy.LevenshteinDistance(candidate, alias); d < bestDist {
			best, bestDist = aliases[alias], d
		}
	}
	if bestDist > fuzzyMaxDistance {
		return "", false
	}
	return best, true
}

// splitLabel recognises "Label: value", "Label - value" and "Label value"
// lines. The value is cut from the original line so accents and case survive.
func splitLabel(line string) (label, string, bool) {
	folded, offsets := foldWithOffsets(line)
	trimmed := strings.TrimLeft(folded, " \t")
	lead := len(folded) - len(trimmed)

	if i := strings.IndexByte(trimmed, ':'); i > 0 {
		candidate := strings.TrimRight(trimmed[:i], " -\t")
		if l, ok := canonicalLabel(candidate); ok {
			return l, cleanValue(line[offsets[lead+i]+1:]), true
		}
	}

	for _, alias := range aliasesByLength {
		if !strings.HasPrefix(trimmed, alias) {
			continue
		}
		rest := trimmed[len(alias):]
		if rest != "" && rest[0] != ' ' && rest[0] != '-' && rest[0] != '\t' {
			continue
		}
		return aliases[alias], cleanValue(line[offsets[lead+len(alias)]:]), true
	}

	return "", "", false
}

// inlineLabel finds "Label:" anywhere in a folded row. The label must not be
// glued to a preceding letter; digits may precede it ("0001-90Pagador:").
var inlineLabel = func() *regexp.Regexp {
	quoted := make([]string, len(aliasesByLength))
	for i, alias := range aliasesByLength {
		quoted[i] = regexp.QuoteMeta(alias)
	}
	return regexp.MustCompile(`(?:^|[^\p{L}])(` + strings.Join(quoted, "|") + `)\s*:`)
}()

// openDocLabel matches a CPF/CNPJ label still waiting for its number.
var openDocLabel = regexp.MustCompile(`(?:cpf|cnpj)\D*$`)

// labelSegments splits a row holding several "Label: value" pairs into one
// segment per label. A label that completes "CPF/CNPJ do Pagador:" stays with
// its document label.
func labelSegments(row string) []string {
	folded, offsets := foldWithOffsets(row)

	var segments []string
	start := 0
	for _, m := range inlineLabel.FindAllStringSubmatchIndex(folded, -1) {
		cut := m[2]
		head := folded[start:cut]
		if strings.TrimSpace(head) == "" || openDocLabel.MatchString(head) {
			continue
		}
		segments = append(segments, row[offsets[start]:offsets[cut]])
		start = cut
	}
	return append(segments, row[offsets[start]:])
}

var docLabelInValue = regexp.MustCompile(`(?i)\s*[-–|,]?\s*(?:cpf|cnpj)\b.*$`)

// cleanValue trims separators and drops a trailing "CNPJ: ..." segment.
func cleanValue(v string) string {
	v = docLabelInValue.ReplaceAllString(v, "")
	return strings.Trim(v, " \t-–:|")
}

// documentPattern captures a CNPJ (14 digits) or CPF (11 digits) following
// a CPF/CNPJ label, masked or not. The label may be glued to the preceding
// word ("LTDACNPJ"). A short run of words may sit between the
// label and the number ("CPF/CNPJ do Pagador: ...").
var documentPattern = regexp.MustCompile(
	`(?i)(?:cpf|cnpj)(?:\s*/\s*(?:cpf|cnpj))?[^\d\n]{0,24}?` +
		`(\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}|\d{3}\.?\d{3}\.?\d{3}-?\d{2})`)

// labeledFields is the key/value view of a slip.
type labeledFields struct {
	values map[label]string
	docs   map[party]string
}

func (f labeledFields) lookup(primary, fallback label) *string {
	if v, ok := f.values[primary]; ok && v != "" {
		return &v
	}
	if v, ok := f.values[fallback]; ok && v != "" {
		return &v
	}
	return nil
}

func (f labeledFields) document(p party) *string {
	if v, ok := f.docs[p]; ok {
		return &v
	}
	return nil
}

// parseLabels walks the text row by row, and each row label by label. A
// CPF/CNPJ goes to the party its own label names ("CPF do Pagador"), then to
// the party labelled in the same segment, otherwise to the closest party
// label above it. Documents seen before any party label are assigned in
// reading order to whichever party is still missing one.
func parseLabels(text string) labeledFields {
	fields := labeledFields{
		values: make(map[label]string),
		docs:   make(map[party]string),
	}

	var (
		current party
		pending label
		orphans []string
	)

	for _, row := range strings.Split(text, "\n") {
		row = strings.TrimRight(row, "\r")
		for _, line := range labelSegments(row) {
			if strings.TrimSpace(line) == "" {
				continue
			}

			l, value, ok := splitLabel(line)
			if ok && l == labelIgnored {
				// a non-party label closes the current party block
				current, pending = partyNone, ""
				continue
			}

			lineParty := partyNone
			switch {
			case ok:
				lineParty = l.party()
				if lineParty != partyNone {
					current = lineParty
				}
				pending = ""
				if value == "" {
					pending = l
				} else if _, seen := fields.values[l]; !seen {
					fields.values[l] = value
				}
			case pending != "":
				if v := cleanValue(line); v != "" {
					if _, seen := fields.values[pending]; !seen {
						fields.values[pending] = v
					}
				}
				pending = ""
			}

			if lineParty == partyNone {
				lineParty = mentionedParty(Fold(line))
			}
			for _, m := range documentPattern.FindAllStringSubmatch(line, -1) {
				owner := mentionedParty(Fold(m[0]))
				if owner == partyNone {
					owner = lineParty
				}
				if owner == partyNone {
					owner = current
				}
				if owner == partyNone {
					orphans = append(orphans, m[1])
					continue
				}
				if _, taken := fields.docs[owner]; !taken {
					fields.docs[owner] = m[1]
				}
			}
		}
	}

	for _, doc := range orphans {
		switch {
		case fields.docs[partyBeneficiario] == "":
			fields.docs[partyBeneficiario] = doc
		case fields.docs[partyPagador] == "":
			fields.docs[partyPagador] = doc
		}
	}

	return fields
}

// mentionedParty catches lines such as "CPF/CNPJ do Pagador: ..." where the
// party name is not the leading label.
func mentionedParty(folded string) party {
	b := strings.Contains(folded, "beneficiario")
	p := strings.Contains(folded, "pagador")
	switch {
	case b && !p:
		return partyBeneficiario
	case p && !b:
		return partyPagador
	}
	return partyNone
}
