package gedcom

import (
	"regexp"
	"strconv"
	"strings"
)

// lineRe matches `LEVEL [@XREF@] TAG [VALUE]`. Lines that do not match
// are skipped rather than rejected; leniency is the policy for real-world
// GEDCOM exports, which are full of vendor quirks.
var lineRe = regexp.MustCompile(`^\s*(\d+)\s+(?:@([^@]+)@\s+)?([A-Z0-9_]+)(?:\s(.*))?$`)

type recordKind int

const (
	recordNone recordKind = iota
	recordPerson
	recordFamily
)

// parserState is the fold accumulator carried through the line scan:
// the record currently being built plus the level-1 event block (BIRT,
// DEAT, MARR) that nested DATE/PLAC lines attach to. Keeping it as a
// local value keeps Parse reentrant.
type parserState struct {
	kind    recordKind
	person  *Person
	family  *Family
	pending string
}

// Parse builds a Graph from raw GEDCOM text. It never fails: malformed
// lines and unrecognized tags are ignored, and input with no INDI or FAM
// headers yields an empty graph.
func Parse(text string) *Graph {
	graph := NewGraph()
	state := parserState{}

	for _, raw := range splitLines(text) {
		match := lineRe.FindStringSubmatch(raw)
		if match == nil {
			continue
		}
		level, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		xref, tag, value := match[2], match[3], strings.TrimSpace(match[4])

		if level == 0 {
			state = openRecord(graph, xref, tag)
			continue
		}

		switch state.kind {
		case recordPerson:
			state.pending = applyPersonTag(state.person, level, tag, value, state.pending)
		case recordFamily:
			state.pending = applyFamilyTag(state.family, level, tag, value, state.pending)
		}
	}

	graph.buildIndices()
	return graph
}

func splitLines(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return kept
}

// openRecord handles a level-0 line. INDI and FAM headers open (or
// reopen) a record; any other level-0 tag closes the current one so
// stray subordinate lines are ignored until the next header.
func openRecord(graph *Graph, xref, tag string) parserState {
	switch {
	case tag == "INDI" && xref != "":
		person, ok := graph.People[xref]
		if !ok {
			person = &Person{ID: xref}
			graph.People[xref] = person
		}
		return parserState{kind: recordPerson, person: person}
	case tag == "FAM" && xref != "":
		family, ok := graph.Families[xref]
		if !ok {
			family = &Family{ID: xref}
			graph.Families[xref] = family
		}
		return parserState{kind: recordFamily, family: family}
	default:
		return parserState{}
	}
}

func applyPersonTag(person *Person, level int, tag, value, pending string) string {
	if level == 1 {
		switch tag {
		case "NAME":
			person.Name = strings.TrimSpace(strings.ReplaceAll(value, "/", " "))
			person.Name = strings.Join(strings.Fields(person.Name), " ")
			if start := strings.Index(value, "/"); start >= 0 {
				if end := strings.Index(value[start+1:], "/"); end >= 0 {
					person.Surname = strings.TrimSpace(value[start+1 : start+1+end])
				}
			}
		case "SEX":
			person.Sex = value
		case "OCCU":
			person.Occupation = value
		case "FAMC":
			person.FamC = stripXref(value)
		case "FAMS":
			person.FamS = append(person.FamS, stripXref(value))
		case "BIRT", "DEAT":
			return tag
		}
		return ""
	}

	if level == 2 {
		switch pending {
		case "BIRT":
			switch tag {
			case "DATE":
				person.BirthDate = value
			case "PLAC":
				person.BirthPlace = value
			}
		case "DEAT":
			switch tag {
			case "DATE":
				person.DeathDate = value
			case "PLAC":
				person.DeathPlace = value
			}
		}
	}
	return pending
}

func applyFamilyTag(family *Family, level int, tag, value, pending string) string {
	if level == 1 {
		switch tag {
		case "HUSB":
			family.Husband = stripXref(value)
		case "WIFE":
			family.Wife = stripXref(value)
		case "CHIL":
			// Repeated CHIL tags accumulate; duplicates are preserved
			// so data-quality problems stay visible downstream.
			family.Children = append(family.Children, stripXref(value))
		case "MARR":
			return tag
		}
		return ""
	}

	if level == 2 && pending == "MARR" {
		switch tag {
		case "DATE":
			family.MarriageDate = value
		case "PLAC":
			family.MarriagePlace = value
		}
	}
	return pending
}

func stripXref(value string) string {
	return strings.Trim(strings.TrimSpace(value), "@")
}
