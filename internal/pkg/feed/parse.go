package feed

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tidewave/cruisesync/app/models"
	"github.com/tidewave/cruisesync/internal/pkg/feederr"
)

// rawDocument mirrors the wire shape. Identity fields tolerate the feed's
// number-or-string flip-flopping; pricing blocks stay raw until the shape
// check.
type rawDocument struct {
	CodeToCruiseID flexString `json:"codetocruiseid"`
	CruiseID       flexString `json:"cruiseid"`
	VoyageCode     flexString `json:"voyagecode"`
	LineID         flexInt    `json:"lineid"`
	ShipID         flexInt    `json:"shipid"`
	ShipName       string     `json:"shipname"`
	Name           string     `json:"name"`
	SailDate       string     `json:"saildate"`
	StartDate      string     `json:"startdate"`
	Nights         flexInt    `json:"nights"`
	Currency       string     `json:"currency"`
	Active         *flexInt   `json:"active"`
	StartPortID    flexInt    `json:"startportid"`
	PortIDs        flexIntCSV `json:"portids"`
	PortNames      []string   `json:"portnames"`
	RegionIDs      flexIntCSV `json:"regionids"`
	RegionNames    []string   `json:"regionnames"`

	Prices       json.RawMessage `json:"prices"`
	CachedPrices json.RawMessage `json:"cachedprices"`
	Combined     json.RawMessage `json:"combined"`
}

type rawPriceCell struct {
	Price     flexMoney `json:"price"`
	Taxes     flexMoney `json:"taxes"`
	NCF       flexMoney `json:"ncf"`
	Total     flexMoney `json:"total"`
	CabinName string    `json:"cabinname"`
	CabinType string    `json:"cabintype"`
	Available *flexInt  `json:"available"`
}

// Parse decodes one downloaded feed document. Any shape the parser does not
// recognize is rejected with a ParseError rather than silently producing a
// partial document.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, feederr.Wrap(feederr.ErrParse, "decode document: %v", err)
	}

	if raw.CodeToCruiseID == "" {
		return nil, feederr.Wrap(feederr.ErrParse, "missing codetocruiseid")
	}
	if raw.LineID <= 0 || raw.ShipID <= 0 {
		return nil, feederr.Wrap(feederr.ErrParse, "missing line/ship identity (lineid=%d shipid=%d)", raw.LineID, raw.ShipID)
	}

	sailDate, err := parseSailDate(raw.SailDate, raw.StartDate)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		TraveltekID:  string(raw.CodeToCruiseID),
		CruiseID:     string(raw.CruiseID),
		VoyageCode:   strings.TrimSpace(string(raw.VoyageCode)),
		LineID:       int(raw.LineID),
		ShipID:       int(raw.ShipID),
		ShipName:     raw.ShipName,
		Name:         raw.Name,
		SailDate:     sailDate,
		Nights:       int(raw.Nights),
		Currency:     normalizeCurrency(raw.Currency),
		Active:       raw.Active == nil || *raw.Active != 0,
		EmbarkPortID: int(raw.StartPortID),
		Ports:        zipRefs(raw.PortIDs, raw.PortNames, func(id int, name string) PortRef { return PortRef{ID: id, Name: name} }),
		Regions:      zipRefs(raw.RegionIDs, raw.RegionNames, func(id int, name string) RegionRef { return RegionRef{ID: id, Name: name} }),
	}
	if doc.NaturalVoyageCode() == "" {
		return nil, feederr.Wrap(feederr.ErrParse, "document %s has neither voyagecode nor cruiseid", doc.TraveltekID)
	}

	sawPricing := false
	if raw.Prices != nil {
		if doc.Live, err = parseMatrix(raw.Prices, SourceLive); err != nil {
			return nil, err
		}
		sawPricing = true
	}
	if raw.CachedPrices != nil {
		if doc.Cached, err = parseMatrix(raw.CachedPrices, SourceCached); err != nil {
			return nil, err
		}
		sawPricing = true
	}
	if raw.Combined != nil {
		if doc.Combined, err = parseMatrix(raw.Combined, SourceCombined); err != nil {
			return nil, err
		}
		sawPricing = true
	}
	if !sawPricing {
		return nil, feederr.Wrap(feederr.ErrParse, "document %s carries no recognized pricing structure", doc.TraveltekID)
	}

	return doc, nil
}

// parseMatrix decodes one pricing sub-structure: rate code -> cabin code ->
// occupancy code -> cell.
func parseMatrix(data json.RawMessage, source string) (Matrix, error) {
	var tree map[string]map[string]map[string]rawPriceCell
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, feederr.Wrap(feederr.ErrParse, "%s pricing has unrecognized shape: %v", source, err)
	}

	matrix := make(Matrix)
	for rateCode, cabins := range tree {
		for cabinCode, occupancies := range cabins {
			for occCode, cell := range occupancies {
				key := models.RateKey{RateCode: rateCode, CabinCode: cabinCode, OccupancyCode: occCode}
				total := int64(cell.Total)
				if total == 0 {
					total = int64(cell.Price) + int64(cell.Taxes) + int64(cell.NCF)
				}
				matrix[key] = PriceCell{
					PriceCents: int64(cell.Price),
					TaxesCents: int64(cell.Taxes),
					NCFCents:   int64(cell.NCF),
					TotalCents: total,
					CabinName:  cell.CabinName,
					CabinType:  normalizeCabinType(cell.CabinType),
					Available:  cell.Available == nil || *cell.Available != 0,
				}
			}
		}
	}
	return matrix, nil
}

func parseSailDate(saildate, startdate string) (time.Time, error) {
	value := saildate
	if value == "" {
		value = startdate
	}
	if value == "" {
		return time.Time{}, feederr.Wrap(feederr.ErrParse, "missing saildate")
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, feederr.Wrap(feederr.ErrParse, "unparseable saildate %q", value)
}

func normalizeCurrency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if len(c) != 3 {
		return "USD"
	}
	return c
}

// normalizeCabinType maps the feed's assorted category labels onto the four
// canonical cabin types; unknown labels stay empty rather than guessing.
func normalizeCabinType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "inside", "interior", "i":
		return models.CabinTypeInside
	case "outside", "oceanview", "ocean view", "o":
		return models.CabinTypeOutside
	case "balcony", "b":
		return models.CabinTypeBalcony
	case "suite", "s":
		return models.CabinTypeSuite
	default:
		return ""
	}
}

// zipRefs pairs parallel id/name arrays; the feed sometimes ships fewer
// names than ids, in which case the name stays empty.
func zipRefs[T any](ids []int, names []string, mk func(int, string) T) []T {
	var out []T
	for i, id := range ids {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		out = append(out, mk(id, name))
	}
	return out
}

// ---- flexible wire scalars ----

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	*f = flexString(s)
	return nil
}

// flexInt accepts a JSON number or numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Tolerate "1.0"-style numbers
		d, derr := decimal.NewFromString(s)
		if derr != nil {
			return err
		}
		v = int(d.IntPart())
	}
	*f = flexInt(v)
	return nil
}

// flexIntCSV accepts a JSON array of ints or a CSV string ("101,102").
type flexIntCSV []int

func (f *flexIntCSV) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = nil
		return nil
	}
	if len(s) > 0 && s[0] == '[' {
		var ints []flexInt
		if err := json.Unmarshal(data, &ints); err != nil {
			return err
		}
		out := make([]int, len(ints))
		for i, v := range ints {
			out[i] = int(v)
		}
		*f = out
		return nil
	}
	var csv string
	if err := json.Unmarshal(data, &csv); err != nil {
		return err
	}
	var out []int
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return err
		}
		out = append(out, v)
	}
	*f = out
	return nil
}

// flexMoney accepts a decimal amount as JSON number or string and stores
// integer cents. Decimal arithmetic avoids float drift on ".99" fares.
type flexMoney int64

func (f *flexMoney) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	*f = flexMoney(d.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	return nil
}
