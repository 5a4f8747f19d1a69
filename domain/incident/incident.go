package incident

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSLAThresholdMin is the response-time threshold (minutes) used to
// derive the breach flag when the raw file carries no usable SLA column.
const DefaultSLAThresholdMin = 45.0

// Raw is one row of the raw CSV, untyped. HasSLAFlag reports whether the
// optional SLA_45min_Incumplido column exists in the file at all.
type Raw struct {
	ID           string
	Date         string
	Clock        string
	City         string
	Lat          string
	Lon          string
	Type         string
	Vehicle      string
	Provider     string
	Distance     string
	ResponseMin  string
	ReturnMethod string
	Cost         string
	Resolved     string
	SLAFlag      string
	HasSLAFlag   bool
	Satisfaction string
	Notes        string
}

// Incident is a cleaned roadside-assistance record with derived fields.
// The free-text note is dropped during cleaning and never carried here.
type Incident struct {
	ID           string
	Date         time.Time
	Clock        string // normalized HH:MM:SS
	DateTime     time.Time
	City         string
	Lat          *float64
	Lon          *float64
	Type         string
	Vehicle      string
	Provider     string
	DistanceKM   float64
	ResponseMin  float64
	ReturnMethod string
	CostEUR      float64
	Resolved     string
	SLABreach    int // 0 or 1
	Satisfaction float64
	Year         int
	MonthNum     int
	MonthName    string
}

var monthsES = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// MonthNameES returns the lowercase Spanish month name for m in 1..12.
func MonthNameES(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return monthsES[m-1]
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText lowercases, trims and strips accents so that "Sí", "si" and
// "SI " all compare equal.
func NormalizeText(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// ParseYesNo maps yes/no text (any casing, accented or not) to 1/0.
// The second return reports whether the value was recognizable.
func ParseYesNo(s string) (int, bool) {
	switch NormalizeText(s) {
	case "si":
		return 1, true
	case "no":
		return 0, true
	}
	return 0, false
}

// DeriveBreach resolves the SLA flag for one row: the raw yes/no value wins
// when recognizable, otherwise the response-time threshold rule applies.
func DeriveBreach(rawFlag string, hasFlag bool, responseMin, thresholdMin float64) int {
	if hasFlag {
		if v, ok := ParseYesNo(rawFlag); ok {
			return v
		}
	}
	if responseMin > thresholdMin {
		return 1
	}
	return 0
}

// ParseClock accepts HH:MM or HH:MM:SS and returns the normalized HH:MM:SS form.
func ParseClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	layouts := []string{"15:04:05", "15:04"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", fmt.Errorf("unparseable time %q (want HH:MM or HH:MM:SS)", s)
}

// ParseDate accepts the ISO date used by the raw dataset.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// Clean validates and transforms one raw row. Any malformed field is an
// error: the caller treats it as fatal for the run.
func Clean(r Raw, slaThresholdMin float64) (Incident, error) {
	inc := Incident{
		ID:           strings.TrimSpace(r.ID),
		City:         strings.TrimSpace(r.City),
		Type:         strings.TrimSpace(r.Type),
		Vehicle:      strings.TrimSpace(r.Vehicle),
		Provider:     strings.TrimSpace(r.Provider),
		ReturnMethod: strings.TrimSpace(r.ReturnMethod),
		Resolved:     strings.TrimSpace(r.Resolved),
	}

	date, err := ParseDate(r.Date)
	if err != nil {
		return Incident{}, err
	}
	inc.Date = date

	clock, err := ParseClock(r.Clock)
	if err != nil {
		return Incident{}, err
	}
	inc.Clock = clock

	hms, _ := time.Parse("15:04:05", clock)
	inc.DateTime = time.Date(date.Year(), date.Month(), date.Day(),
		hms.Hour(), hms.Minute(), hms.Second(), 0, time.UTC)

	inc.DistanceKM, err = parseNonNegative("Distancia_km", r.Distance)
	if err != nil {
		return Incident{}, err
	}
	inc.ResponseMin, err = parseNonNegative("Tiempo_Respuesta_min", r.ResponseMin)
	if err != nil {
		return Incident{}, err
	}
	inc.CostEUR, err = parseNonNegative("Costo_EUR", r.Cost)
	if err != nil {
		return Incident{}, err
	}

	sat, err := strconv.ParseFloat(strings.TrimSpace(r.Satisfaction), 64)
	if err != nil {
		return Incident{}, fmt.Errorf("unparseable Satisfaccion_1a5 %q", r.Satisfaction)
	}
	if sat < 1 || sat > 5 {
		return Incident{}, fmt.Errorf("Satisfaccion_1a5 %v out of range [1,5]", sat)
	}
	inc.Satisfaction = sat

	inc.Lat, err = parseOptionalFloat("Latitud", r.Lat)
	if err != nil {
		return Incident{}, err
	}
	inc.Lon, err = parseOptionalFloat("Longitud", r.Lon)
	if err != nil {
		return Incident{}, err
	}

	inc.SLABreach = DeriveBreach(r.SLAFlag, r.HasSLAFlag, inc.ResponseMin, slaThresholdMin)

	inc.Year = date.Year()
	inc.MonthNum = int(date.Month())
	inc.MonthName = MonthNameES(inc.MonthNum)

	return inc, nil
}

func parseNonNegative(col, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable %s %q", col, s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative %s %v", col, v)
	}
	return v, nil
}

func parseOptionalFloat(col, s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("unparseable %s %q", col, s)
	}
	return &v, nil
}
