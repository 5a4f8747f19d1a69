package csv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadside-stats/domain/incident"
)

const rawSample = `ID_Incidencia,Fecha,Hora,Ciudad,Latitud,Longitud,Tipo_Incidencia,Tipo_Vehiculo,Proveedor,Distancia_km,Tiempo_Respuesta_min,Medio_Retorno,Costo_EUR,Resuelto,SLA_45min_Incumplido,Satisfaccion_1a5,Notas
INC-0001,2024-03-17,14:25,Madrid,40.4168,-3.7038,Avería,Turismo,Grúas Norte,12.4,38,Taller,120.5,Sí,No,4,cliente esperó en el arcén
INC-0002,2024-04-02,09:10:30,Sevilla,37.3891,-5.9845,Pinchazo,Furgoneta,Grúas Sur,5.1,88.1,Propio,60,Sí,,3,
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadRaw(t *testing.T) {
	rows, err := ReadRaw(writeTemp(t, rawSample))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "INC-0001", rows[0].ID)
	assert.Equal(t, "14:25", rows[0].Clock)
	assert.True(t, rows[0].HasSLAFlag)
	assert.Equal(t, "No", rows[0].SLAFlag)
	assert.Equal(t, "", rows[1].SLAFlag)
	assert.Equal(t, "cliente esperó en el arcén", rows[0].Notes)
}

func TestReadRawWithoutSLAColumn(t *testing.T) {
	sample := `Fecha,Hora,Ciudad,Tipo_Incidencia,Proveedor,Distancia_km,Tiempo_Respuesta_min,Costo_EUR,Satisfaccion_1a5
2024-03-17,14:25,Madrid,Avería,Grúas Norte,12.4,38,120.5,4
`
	rows, err := ReadRaw(writeTemp(t, sample))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].HasSLAFlag)
}

func TestReadRawMissingRequiredColumn(t *testing.T) {
	sample := `Fecha,Hora,Ciudad,Tipo_Incidencia,Proveedor,Distancia_km,Costo_EUR,Satisfaccion_1a5
2024-03-17,14:25,Madrid,Avería,Grúas Norte,12.4,120.5,4
`
	_, err := ReadRaw(writeTemp(t, sample))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tiempo_Respuesta_min")
}

func TestReadRawInconsistentRow(t *testing.T) {
	sample := `Fecha,Hora,Ciudad,Tipo_Incidencia,Proveedor,Distancia_km,Tiempo_Respuesta_min,Costo_EUR,Satisfaccion_1a5
2024-03-17,14:25,Madrid,Avería
`
	_, err := ReadRaw(writeTemp(t, sample))
	assert.Error(t, err)
}

func cleanedSample(t *testing.T) []incident.Incident {
	t.Helper()
	rows, err := ReadRaw(writeTemp(t, rawSample))
	require.NoError(t, err)
	var incs []incident.Incident
	for _, r := range rows {
		inc, err := incident.Clean(r, incident.DefaultSLAThresholdMin)
		require.NoError(t, err)
		incs = append(incs, inc)
	}
	return incs
}

func TestFactRoundTrip(t *testing.T) {
	incs := cleanedSample(t)
	path := filepath.Join(t.TempDir(), "fact.csv")
	require.NoError(t, WriteFact(path, incs))

	got, err := ReadFact(path)
	require.NoError(t, err)
	assert.Equal(t, incs, got)
}

func TestWriteFactIsDeterministic(t *testing.T) {
	incs := cleanedSample(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, WriteFact(a, incs))
	require.NoError(t, WriteFact(b, incs))

	ba, err := os.ReadFile(a)
	require.NoError(t, err)
	bb, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, ba, bb)
}

func TestWriteFactDropsNotes(t *testing.T) {
	incs := cleanedSample(t)
	path := filepath.Join(t.TempDir(), "fact.csv")
	require.NoError(t, WriteFact(path, incs))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "Notas")
	assert.NotContains(t, string(content), "cliente esperó en el arcén")
}

func TestWriteFactDerivedColumns(t *testing.T) {
	incs := cleanedSample(t)
	path := filepath.Join(t.TempDir(), "fact.csv")
	require.NoError(t, WriteFact(path, incs))

	got, err := ReadFact(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Raw flag "No" wins even though a fallback would also say 0.
	assert.Equal(t, 0, got[0].SLABreach)
	// Empty flag value falls back to the threshold rule: 88.1 > 45.
	assert.Equal(t, 1, got[1].SLABreach)
	assert.Equal(t, "marzo", got[0].MonthName)
	assert.Equal(t, "abril", got[1].MonthName)
	assert.Equal(t, "2024-04-02 09:10:30", got[1].DateTime.Format("2006-01-02 15:04:05"))
}

func TestReadFactRejectsBadBreachValue(t *testing.T) {
	incs := cleanedSample(t)
	path := filepath.Join(t.TempDir(), "fact.csv")
	require.NoError(t, WriteFact(path, incs))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	broken := []byte(string(content) + "INC-0003,2024-05-01,10:00:00,2024-05-01 10:00:00,Madrid,,,Avería,Turismo,Grúas Norte,1,10,Taller,10,Sí,4,2,2024,5,mayo\n")
	require.NoError(t, os.WriteFile(path, broken, 0o644))

	_, err = ReadFact(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `bad SLA_Incumplido "2"`)
}

func TestReadFactRejectsShortRow(t *testing.T) {
	incs := cleanedSample(t)
	path := filepath.Join(t.TempDir(), "fact.csv")
	require.NoError(t, WriteFact(path, incs))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	broken := []byte(string(content) + "INC-0003,2024-05-01,10:00:00\n")
	require.NoError(t, os.WriteFile(path, broken, 0o644))

	_, err = ReadFact(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
}
