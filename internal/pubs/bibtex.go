package pubs

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	derrors "sitewright/internal/errors"
)

var entryTypes = map[string]string{
	"conference-paper":  "inproceedings",
	"conference-poster": "inproceedings",
}

// Citation keys transliterate German umlauts the conventional way, values
// escape them as LaTeX instead.
var keyReplacer = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ß", "ss",
)

var valueReplacer = strings.NewReplacer(
	"ä", `{\"{a}}`, "ö", `{\"{o}}`, "ü", `{\"{u}}`,
	"Ä", `{\"{A}}`, "Ö", `{\"{O}}`, "Ü", `{\"{U}}`,
	"ß", `{\ss}`,
	"–", "--",
)

// baseForm strips combining marks so accented letters outside the umlaut set
// fall back to their ASCII base.
var baseForm = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldKey(key string) string {
	folded, _, err := transform.String(baseForm, keyReplacer.Replace(key))
	if err != nil {
		return keyReplacer.Replace(key)
	}
	return folded
}

// CitationKey builds the BibTeX key: the first author's family name, the
// first letter of every further author and the year. Anonymous works use a
// literal placeholder.
func CitationKey(p *Publication) string {
	key := "Anonymous"
	if len(p.Authors) > 0 {
		key, _, _ = strings.Cut(p.Authors[0], ", ")
		for _, author := range p.Authors[1:] {
			initial, _ := utf8.DecodeRuneInString(author)
			key += string(initial)
		}
	}
	return foldKey(key + p.Year)
}

type bibtexField struct {
	name  string
	value string
}

// Entry renders the BibTeX snippet for a publication. fallbackURL is used
// when the record carries no canonical URL. Publication types without an
// entry type mapping yield a warning, the caller skips the snippet.
func Entry(p *Publication, fallbackURL string) (string, error) {
	fields := make([]bibtexField, 0, 16)
	add := func(name, value string) {
		if value != "" {
			fields = append(fields, bibtexField{name, value})
		}
	}

	if len(p.Authors) > 0 {
		add("author", strings.Join(p.Authors, " AND "))
	}
	add("title", p.Title)
	add("year", p.Year)

	entryType := entryTypes[p.Type]
	if p.Type == "dissertation-thesis" {
		switch p.ThesisType {
		case "phd":
			entryType = "phdthesis"
			add("school", p.ThesisUniversity)
		case "msc":
			entryType = "mastersthesis"
			add("school", p.ThesisUniversity)
		case "bsc":
			entryType = "misc"
			add("howpublished", "Bachelor thesis, "+p.ThesisUniversity)
		}
	}

	add("booktitle", p.Journal)
	if len(p.Editors) > 0 {
		add("editor", strings.Join(p.Editors, " AND "))
	}
	add("publisher", p.Publisher)
	add("address", p.Address)
	add("series", p.Series)
	add("volume", p.Volume)
	add("pages", strings.ReplaceAll(p.Pages, "-", "--"))
	add("numpages", p.NumPages)
	add("location", p.Location)
	add("doi", p.DOI)
	if p.ISBN != "" {
		add("isbn", p.ISBN)
	} else {
		add("isbn", p.ParentISBN)
	}
	if len(p.Keywords) > 0 {
		add("keywords", strings.Join(p.Keywords, ", "))
	}
	if p.CanonicalURL != "" {
		add("url", p.CanonicalURL)
	} else {
		add("url", fallbackURL)
	}

	if entryType == "" {
		return "", derrors.Warning(derrors.CategoryData, "no BibTeX entry type mapping").
			WithContext("id", p.ID.String()).
			WithContext("type", p.Type)
	}

	var b strings.Builder
	b.WriteString("@" + entryType + "{" + CitationKey(p) + ",\n")
	for i, field := range fields {
		b.WriteString("  " + field.name + " = {" + valueReplacer.Replace(field.value) + "}")
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String(), nil
}
