package work

import "strings"

// Contributor is one author with the institutional affiliations the
// open-metadata provider reports for this work.
type Contributor struct {
	Name         string
	Affiliations []string
	Countries    []string
}

// Contributors extracts the author list from a unified record, preferring
// the open-metadata side (it carries affiliations) and falling back to the
// registry author list.
func Contributors(u *Unified) []Contributor {
	if u == nil {
		return nil
	}
	if u.OpenAlex != nil && len(u.OpenAlex.Authorships) > 0 {
		out := make([]Contributor, 0, len(u.OpenAlex.Authorships))
		for _, a := range u.OpenAlex.Authorships {
			c := Contributor{Name: a.Author.DisplayName}
			for _, inst := range a.Institutions {
				if inst.DisplayName != "" {
					c.Affiliations = append(c.Affiliations, inst.DisplayName)
				}
				if inst.CountryCode != "" {
					c.Countries = append(c.Countries, inst.CountryCode)
				}
			}
			out = append(out, c)
		}
		return out
	}
	if u.Crossref != nil && len(u.Crossref.Author) > 0 {
		out := make([]Contributor, 0, len(u.Crossref.Author))
		for _, a := range u.Crossref.Author {
			name := strings.TrimSpace(a.Given + " " + a.Family)
			out = append(out, Contributor{Name: name})
		}
		return out
	}
	return nil
}

// JournalInfo identifies the venue a work appeared in.
type JournalInfo struct {
	Title     string
	Publisher string
	ISSN      []string
}

// JournalOf extracts venue information, registry fields first and
// open-metadata host venue as fallback for anything missing.
func JournalOf(u *Unified) JournalInfo {
	var j JournalInfo
	if u == nil {
		return j
	}
	if u.Crossref != nil {
		if len(u.Crossref.ContainerTitle) > 0 {
			j.Title = u.Crossref.ContainerTitle[0]
		}
		j.Publisher = u.Crossref.Publisher
		j.ISSN = append(j.ISSN, u.Crossref.ISSN...)
	}
	if u.OpenAlex != nil {
		hv := u.OpenAlex.HostVenue
		if j.Title == "" {
			j.Title = hv.DisplayName
		}
		if j.Publisher == "" {
			j.Publisher = hv.Publisher
		}
		if len(j.ISSN) == 0 {
			j.ISSN = append(j.ISSN, hv.ISSN...)
		}
	}
	return j
}

// Title returns the best available display title for a unified record.
func Title(u *Unified) string {
	if u == nil {
		return ""
	}
	if u.Crossref != nil {
		if t := u.Crossref.FirstTitle(); t != "" {
			return t
		}
	}
	if u.OpenAlex != nil {
		return u.OpenAlex.DisplayName
	}
	return ""
}
