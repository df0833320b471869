package gedcom

import (
	"fmt"
	"strings"
)

// Encode serializes a graph as GEDCOM 5.5.1 text (HEAD through TRLR)
// suitable for export. Records are emitted in sorted-ID order so output
// is stable across runs; re-parsing the output reproduces the same
// people, families, and child order.
func Encode(g *Graph) string {
	var b strings.Builder
	b.WriteString("0 HEAD\n")
	b.WriteString("1 SOUR ARBOR\n")
	b.WriteString("1 GEDC\n")
	b.WriteString("2 VERS 5.5.1\n")
	b.WriteString("2 FORM LINEAGE-LINKED\n")
	b.WriteString("1 CHAR UTF-8\n")

	people := newXrefTable("I", g.SortedPersonIDs())
	families := newXrefTable("F", g.SortedFamilyIDs())

	for _, id := range g.SortedPersonIDs() {
		encodePerson(&b, g.People[id], people, families)
	}
	for _, id := range g.SortedFamilyIDs() {
		encodeFamily(&b, g.Families[id], people, families)
	}

	b.WriteString("0 TRLR\n")
	return b.String()
}

func encodePerson(b *strings.Builder, p *Person, people, families *xrefTable) {
	fmt.Fprintf(b, "0 %s INDI\n", people.ref(p.ID))
	if p.Name != "" || p.Surname != "" {
		fmt.Fprintf(b, "1 NAME %s\n", gedcomName(p.Name, p.Surname))
	}
	if p.Sex != "" {
		fmt.Fprintf(b, "1 SEX %s\n", p.Sex)
	}
	writeEventBlock(b, "BIRT", p.BirthDate, p.BirthPlace)
	writeEventBlock(b, "DEAT", p.DeathDate, p.DeathPlace)
	if p.Occupation != "" {
		fmt.Fprintf(b, "1 OCCU %s\n", p.Occupation)
	}
	if p.FamC != "" {
		fmt.Fprintf(b, "1 FAMC %s\n", families.ref(p.FamC))
	}
	for _, famID := range p.FamS {
		fmt.Fprintf(b, "1 FAMS %s\n", families.ref(famID))
	}
}

func encodeFamily(b *strings.Builder, f *Family, people, families *xrefTable) {
	fmt.Fprintf(b, "0 %s FAM\n", families.ref(f.ID))
	if f.Husband != "" {
		fmt.Fprintf(b, "1 HUSB %s\n", people.ref(f.Husband))
	}
	if f.Wife != "" {
		fmt.Fprintf(b, "1 WIFE %s\n", people.ref(f.Wife))
	}
	for _, child := range f.Children {
		fmt.Fprintf(b, "1 CHIL %s\n", people.ref(child))
	}
	writeEventBlock(b, "MARR", f.MarriageDate, f.MarriagePlace)
}

func writeEventBlock(b *strings.Builder, tag, date, place string) {
	if date == "" && place == "" {
		return
	}
	fmt.Fprintf(b, "1 %s\n", tag)
	if date != "" {
		fmt.Fprintf(b, "2 DATE %s\n", date)
	}
	if place != "" {
		fmt.Fprintf(b, "2 PLAC %s\n", place)
	}
}

// gedcomName reconstructs the `Given /Surname/` form the parser split
// apart on import.
func gedcomName(name, surname string) string {
	if surname == "" {
		return name
	}
	given := strings.TrimSpace(strings.Replace(name, surname, "", 1))
	given = strings.Join(strings.Fields(given), " ")
	if given == "" {
		return fmt.Sprintf("/%s/", surname)
	}
	return fmt.Sprintf("%s /%s/", given, surname)
}

// xrefTable assigns every record ID a unique @...@ cross-reference for
// one Encode run. IDs that survived import usually clean to themselves;
// when two IDs clean to the same token ("A.B" and "AB", or several
// all-symbol IDs), later assignments in sorted-ID order take a numeric
// suffix so no two records share an xref.
type xrefTable struct {
	prefix string
	byID   map[string]string
	taken  map[string]bool
}

func newXrefTable(prefix string, ids []string) *xrefTable {
	t := &xrefTable{
		prefix: prefix,
		byID:   make(map[string]string, len(ids)),
		taken:  make(map[string]bool, len(ids)),
	}
	for _, id := range ids {
		token := cleanXrefToken(id, prefix)
		candidate := token
		for n := 2; t.taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", token, n)
		}
		t.taken[candidate] = true
		t.byID[id] = "@" + candidate + "@"
	}
	return t
}

// ref returns the xref assigned to id. References to records absent
// from the graph (dangling FAMC/HUSB/... pointers) get a best-effort
// cleaned form instead.
func (t *xrefTable) ref(id string) string {
	if x, ok := t.byID[id]; ok {
		return x
	}
	return "@" + cleanXrefToken(id, t.prefix) + "@"
}

// cleanXrefToken reduces an identifier to the characters GEDCOM xrefs
// allow, synthesizing a prefixed token when nothing usable remains or
// the result starts with a digit.
func cleanXrefToken(id, prefix string) string {
	cleaned := make([]rune, 0, len(id))
	for _, r := range id {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return prefix + "0"
	}
	token := string(cleaned)
	if first := token[0]; first >= '0' && first <= '9' {
		token = prefix + token
	}
	return token
}
