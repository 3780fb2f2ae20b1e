package source

import (
	"math"
	"strings"
)

// missionEpithets are the institutional words in mission names. Removing
// them leaves the bare place name, so "German Consulate General Toronto"
// becomes "Toronto".
var missionEpithets = []string{
	"German",
	"Embassy",
	"Consulate",
	"General",
	"Liaison",
	"Office",
	"Institute",
	"Federal",
	"Foreign",
	"Amt",
	"Deutsche",
	"Deutsches",
	"Botschaft",
	"Generalkonsulat",
	"Auswärtiges",
	"Konsulat",
	"Vertretungsbüro",
}

// distinctiveAllocation pins a consulate city to one gazetteer attribute
// value where fuzzy matching is known to pick the wrong place.
type distinctiveAllocation struct {
	nameEn string
	attr   string
	value  string
}

var distinctiveAllocations = []distinctiveAllocation{
	{nameEn: "The Holy See", attr: "NAME", value: "Vatican City"},
	{nameEn: "Osaka-Kobe", attr: "NAMEASCII", value: "Osaka"},
	{nameEn: "San Francisco", attr: "NAMEALT", value: "San Francisco-Oakland"},
	{nameEn: "St. Petersburg", attr: "NAMEALT", value: "Sankt Peterburg|Saint Petersburg"},
	{nameEn: "Athens", attr: "NAMEALT", value: "Athinai"},
}

func distinctiveFor(nameEn string) *distinctiveAllocation {
	for i := range distinctiveAllocations {
		if distinctiveAllocations[i].nameEn == nameEn {
			return &distinctiveAllocations[i]
		}
	}
	return nil
}

// extractLocationName removes the epithet words from a mission name. Only
// whole words count; the matched words are removed as one contiguous phrase,
// which works because missions put the place name last.
func extractLocationName(name string) string {
	var matched []string
	for _, word := range strings.Fields(name) {
		for _, ep := range missionEpithets {
			if word == ep {
				matched = append(matched, word)
				break
			}
		}
	}
	if len(matched) == 0 {
		return strings.TrimSpace(name)
	}
	phrase := strings.Join(matched, " ")
	return strings.TrimSpace(strings.Replace(name, phrase, "", 1))
}

// matchRatio scores the similarity of two strings from 0 to 100 using the
// normalized indel distance, where a substitution costs two edits.
func matchRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	dist := indelDistance(ra, rb)
	return int(math.Round(100 * float64(total-dist) / float64(total)))
}

// indelDistance is the edit distance allowing only insertions and deletions.
func indelDistance(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1]
			} else {
				cur[j] = min(prev[j], cur[j-1]) + 1
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
