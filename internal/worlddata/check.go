package worlddata

import (
	"fmt"
	"strings"

	"openhistoria/internal/world"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeMissingPlayer      = "missing_player"
	codeDuplicateNation    = "duplicate_nation_id"
	codeDuplicateProvince  = "duplicate_province_id"
	codeDuplicateName      = "duplicate_province_name"
	codeUnknownOwner       = "unknown_owner"
	codeUnknownNation      = "unknown_relation_nation"
	codeDuplicateRelation  = "duplicate_relation_pair"
	codeSelfRelation       = "self_relation"
	codeNoProvinces        = "no_provinces"
	codeUnreachableCountry = "unreachable_country"
)

type Issue struct {
	Severity Severity
	Code     string
	Message  string
	Entity   string
}

type Report struct {
	Issues []Issue
}

func (r *Report) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r *Report) add(severity Severity, code, entity, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Severity: severity,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Entity:   entity,
	})
}

// Check reports consistency problems the per-file schemas cannot see.
func Check(state world.State) *Report {
	report := &Report{Issues: make([]Issue, 0)}

	nations := make(map[string]bool, len(state.Nations))
	for _, n := range state.Nations {
		if nations[n.ID] {
			report.add(SeverityError, codeDuplicateNation, n.ID, "nation id %s is defined more than once", n.ID)
		}
		nations[n.ID] = true
	}
	if !nations[world.PlayerID] {
		report.add(SeverityError, codeMissingPlayer, world.PlayerID, "no nation has the reserved id %q", world.PlayerID)
	}

	if len(state.Provinces) == 0 {
		report.add(SeverityError, codeNoProvinces, "", "world has no provinces")
	}
	ids := make(map[string]bool, len(state.Provinces))
	names := make(map[string]bool, len(state.Provinces))
	splitCountries := make(map[string]string)
	wholeCountries := make(map[string]bool)
	for _, p := range state.Provinces {
		if ids[p.ID] {
			report.add(SeverityError, codeDuplicateProvince, p.ID, "province id %s is defined more than once", p.ID)
		}
		ids[p.ID] = true

		key := strings.ToLower(p.Name)
		if names[key] {
			report.add(SeverityWarn, codeDuplicateName, p.Name, "province name %s is ambiguous; only the first match can be targeted", p.Name)
		}
		names[key] = true

		if owner := p.Owner(); owner != "" && !nations[owner] {
			report.add(SeverityError, codeUnknownOwner, p.Name, "province %s is owned by unknown nation %s", p.Name, owner)
		}

		if p.ParentCountryName == "" {
			continue
		}
		if p.IsSubNational {
			splitCountries[strings.ToLower(p.ParentCountryName)] = p.ParentCountryName
		} else {
			wholeCountries[strings.ToLower(p.ParentCountryName)] = true
		}
	}
	for key, name := range splitCountries {
		if !wholeCountries[key] && !names[key] {
			report.add(SeverityWarn, codeUnreachableCountry, name, "%s only exists as sub-national provinces; commands naming the country will not match", name)
		}
	}

	seen := make([]world.Relation, 0, len(state.Relations))
	for _, r := range state.Relations {
		entity := r.NationA + "/" + r.NationB
		if r.NationA == r.NationB {
			report.add(SeverityError, codeSelfRelation, entity, "relation links %s to itself", r.NationA)
		}
		for _, id := range []string{r.NationA, r.NationB} {
			if !nations[id] {
				report.add(SeverityError, codeUnknownNation, entity, "relation references unknown nation %s", id)
			}
		}
		for _, prev := range seen {
			if prev.SamePair(r.NationA, r.NationB) {
				report.add(SeverityError, codeDuplicateRelation, entity, "more than one relation for %s and %s", r.NationA, r.NationB)
				break
			}
		}
		seen = append(seen, r)
	}

	return report
}
