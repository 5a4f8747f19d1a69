package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"roadside-stats/domain/incident"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// rawRequired are the columns the raw CSV must carry; everything else is optional.
var rawRequired = []string{
	"Fecha", "Hora", "Ciudad", "Tipo_Incidencia", "Proveedor",
	"Distancia_km", "Tiempo_Respuesta_min", "Costo_EUR", "Satisfaccion_1a5",
}

// factHeaders is the processed-file schema: every raw column except Notas,
// plus the derived columns. Order is fixed so reruns are byte-identical.
var factHeaders = []string{
	"ID_Incidencia", "Fecha", "Hora", "Fecha_Hora", "Ciudad", "Latitud", "Longitud",
	"Tipo_Incidencia", "Tipo_Vehiculo", "Proveedor", "Distancia_km",
	"Tiempo_Respuesta_min", "Medio_Retorno", "Costo_EUR", "Resuelto",
	"Satisfaccion_1a5", "SLA_Incumplido", "Anio", "MesN", "Mes",
}

// ReadRaw loads the raw incident CSV into untyped rows. A missing required
// column or an inconsistent row is an error: the pipeline has no
// partial-input policy.
func ReadRaw(path string) ([]incident.Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	head, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	idx := indexMap(head)
	for _, col := range rawRequired {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%s missing column %s", filepath.Base(path), col)
		}
	}
	_, hasSLA := idx["SLA_45min_Incumplido"]

	get := func(rec []string, col string) string {
		if i, ok := idx[col]; ok {
			return rec[i]
		}
		return ""
	}

	var rows []incident.Raw
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
		}
		rows = append(rows, incident.Raw{
			ID:           get(rec, "ID_Incidencia"),
			Date:         get(rec, "Fecha"),
			Clock:        get(rec, "Hora"),
			City:         get(rec, "Ciudad"),
			Lat:          get(rec, "Latitud"),
			Lon:          get(rec, "Longitud"),
			Type:         get(rec, "Tipo_Incidencia"),
			Vehicle:      get(rec, "Tipo_Vehiculo"),
			Provider:     get(rec, "Proveedor"),
			Distance:     get(rec, "Distancia_km"),
			ResponseMin:  get(rec, "Tiempo_Respuesta_min"),
			ReturnMethod: get(rec, "Medio_Retorno"),
			Cost:         get(rec, "Costo_EUR"),
			Resolved:     get(rec, "Resuelto"),
			SLAFlag:      get(rec, "SLA_45min_Incumplido"),
			HasSLAFlag:   hasSLA,
			Satisfaction: get(rec, "Satisfaccion_1a5"),
			Notes:        get(rec, "Notas"),
		})
	}
	return rows, nil
}

// WriteFact writes the processed incident table.
func WriteFact(path string, incs []incident.Incident) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write(factHeaders); err != nil {
		return err
	}
	for _, inc := range incs {
		row := []string{
			inc.ID,
			inc.Date.Format(dateLayout),
			inc.Clock,
			inc.DateTime.Format(dateTimeLayout),
			inc.City,
			formatOptional(inc.Lat),
			formatOptional(inc.Lon),
			inc.Type,
			inc.Vehicle,
			inc.Provider,
			formatFloat(inc.DistanceKM),
			formatFloat(inc.ResponseMin),
			inc.ReturnMethod,
			formatFloat(inc.CostEUR),
			inc.Resolved,
			formatFloat(inc.Satisfaction),
			strconv.Itoa(inc.SLABreach),
			strconv.Itoa(inc.Year),
			strconv.Itoa(inc.MonthNum),
			inc.MonthName,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

// ReadFact loads a processed incident table written by WriteFact.
func ReadFact(path string) ([]incident.Incident, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	head, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	idx := indexMap(head)
	for _, col := range factHeaders {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%s missing column %s", filepath.Base(path), col)
		}
	}

	var incs []incident.Incident
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
		}
		inc, err := parseFactRow(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
		}
		incs = append(incs, inc)
	}
	return incs, nil
}

func parseFactRow(rec []string, idx map[string]int) (incident.Incident, error) {
	get := func(col string) string { return rec[idx[col]] }

	date, err := time.Parse(dateLayout, get("Fecha"))
	if err != nil {
		return incident.Incident{}, fmt.Errorf("bad Fecha %q", get("Fecha"))
	}
	dt, err := time.Parse(dateTimeLayout, get("Fecha_Hora"))
	if err != nil {
		return incident.Incident{}, fmt.Errorf("bad Fecha_Hora %q", get("Fecha_Hora"))
	}
	inc := incident.Incident{
		ID:           get("ID_Incidencia"),
		Date:         date,
		Clock:        get("Hora"),
		DateTime:     dt,
		City:         get("Ciudad"),
		Type:         get("Tipo_Incidencia"),
		Vehicle:      get("Tipo_Vehiculo"),
		Provider:     get("Proveedor"),
		ReturnMethod: get("Medio_Retorno"),
		Resolved:     get("Resuelto"),
		MonthName:    get("Mes"),
	}
	if inc.DistanceKM, err = parseFloatCol("Distancia_km", get("Distancia_km")); err != nil {
		return incident.Incident{}, err
	}
	if inc.ResponseMin, err = parseFloatCol("Tiempo_Respuesta_min", get("Tiempo_Respuesta_min")); err != nil {
		return incident.Incident{}, err
	}
	if inc.CostEUR, err = parseFloatCol("Costo_EUR", get("Costo_EUR")); err != nil {
		return incident.Incident{}, err
	}
	if inc.Satisfaction, err = parseFloatCol("Satisfaccion_1a5", get("Satisfaccion_1a5")); err != nil {
		return incident.Incident{}, err
	}
	if inc.Lat, err = parseOptionalCol("Latitud", get("Latitud")); err != nil {
		return incident.Incident{}, err
	}
	if inc.Lon, err = parseOptionalCol("Longitud", get("Longitud")); err != nil {
		return incident.Incident{}, err
	}

	breach, err := strconv.Atoi(get("SLA_Incumplido"))
	if err != nil || (breach != 0 && breach != 1) {
		return incident.Incident{}, fmt.Errorf("bad SLA_Incumplido %q", get("SLA_Incumplido"))
	}
	inc.SLABreach = breach

	if inc.Year, err = strconv.Atoi(get("Anio")); err != nil {
		return incident.Incident{}, fmt.Errorf("bad Anio %q", get("Anio"))
	}
	if inc.MonthNum, err = strconv.Atoi(get("MesN")); err != nil {
		return incident.Incident{}, fmt.Errorf("bad MesN %q", get("MesN"))
	}
	return inc, nil
}

func parseFloatCol(col, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q", col, s)
	}
	return v, nil
}

func parseOptionalCol(col, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("bad %s %q", col, s)
	}
	return &v, nil
}

func indexMap(headers []string) map[string]int {
	m := map[string]int{}
	for i, h := range headers {
		m[strings.TrimSpace(h)] = i
	}
	return m
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
