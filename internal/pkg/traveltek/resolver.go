package traveltek

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// MaxCandidatePaths bounds worst-case probing cost per sailing.
const MaxCandidatePaths = 12

// ResolveRequest identifies one sailing's document on the feed host.
type ResolveRequest struct {
	LineID     int
	ShipID     int
	ShipName   string
	SailDate   time.Time
	FileID     string // remote surrogate id (codetocruiseid)
	VoyageCode string
}

// Candidate is one remote directory with its file name variants, in probe order.
type Candidate struct {
	Dir   string
	Files []string
}

// Resolve generates the ordered, deduplicated list of candidate remote
// locations for a sailing. The feed organizes directories by the sailing
// month (voyage date), never the wall-clock month: probing the current month
// for a sailing departing next year finds nothing. The identifier-based ship
// directory has historically been the most reliable layout, so it sorts
// before the name-derived one, and zero-padded months before bare ones.
func Resolve(req ResolveRequest) []Candidate {
	year := req.SailDate.Year()
	month := int(req.SailDate.Month())

	shipKeys := make([]string, 0, 2)
	if req.ShipID > 0 {
		shipKeys = append(shipKeys, fmt.Sprintf("%d", req.ShipID))
	}
	if name := normalizeShipName(req.ShipName); name != "" {
		shipKeys = append(shipKeys, name)
	}

	months := []string{fmt.Sprintf("%02d", month)}
	if month < 10 {
		months = append(months, fmt.Sprintf("%d", month))
	}

	files := fileVariants(req)

	var out []Candidate
	seenDir := make(map[string]bool)
	total := 0
	for _, shipKey := range shipKeys {
		for _, m := range months {
			dir := fmt.Sprintf("/%d/%s/%d/%s", year, m, req.LineID, shipKey)
			if seenDir[dir] {
				continue
			}
			seenDir[dir] = true

			budget := MaxCandidatePaths - total
			if budget <= 0 {
				return out
			}
			fs := files
			if len(fs) > budget {
				fs = fs[:budget]
			}
			out = append(out, Candidate{Dir: dir, Files: fs})
			total += len(fs)
		}
	}
	return out
}

// Paths flattens candidates into full remote paths, preserving probe order.
func Paths(candidates []Candidate) []string {
	var paths []string
	for _, c := range candidates {
		for _, f := range c.Files {
			paths = append(paths, c.Dir+"/"+f)
		}
	}
	return paths
}

func fileVariants(req ResolveRequest) []string {
	var files []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name == ".json" || seen[name] {
			return
		}
		seen[name] = true
		files = append(files, name)
	}

	add(req.FileID + ".json")
	add(strings.ToLower(req.FileID) + ".json")
	if req.VoyageCode != "" {
		add(req.VoyageCode + ".json")
		add(strings.ToLower(req.VoyageCode) + ".json")
	}
	return files
}

// normalizeShipName derives the name-based directory key: lowercase
// alphanumerics only ("Wonder of the Seas" -> "wonderoftheseas").
func normalizeShipName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
