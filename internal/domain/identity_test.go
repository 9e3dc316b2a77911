package domain_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/agentebl/multibanco-agent-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePayload(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var m map[string]any
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestNormalizeIdentity_NestedSnakeCaseMatchesFlatCamelCase(t *testing.T) {
	nested := decodePayload(t, `{"data": {
		"first_name": "MANUEL ALEXANDER",
		"apellido_paterno": "BERMEJO",
		"apellido_materno": "LOPEZ"
	}}`)
	flat := decodePayload(t, `{
		"nombres": "MANUEL ALEXANDER",
		"apellidoPaterno": "BERMEJO",
		"apellidoMaterno": "LOPEZ"
	}`)

	a, ok := domain.NormalizeIdentity(nested, "72951012")
	require.True(t, ok)
	b, ok := domain.NormalizeIdentity(flat, "72951012")
	require.True(t, ok)

	assert.Equal(t, b, a)
	assert.Equal(t, "BERMEJO LOPEZ MANUEL ALEXANDER", a.FullName)
	assert.Equal(t, "72951012", a.ID)
}

func TestNormalizeIdentity_PrefersUpstreamFullName(t *testing.T) {
	p := decodePayload(t, `{"data": {
		"first_name": "JUAN",
		"first_last_name": "PEREZ",
		"second_last_name": "GARCIA",
		"full_name": "PEREZ GARCIA, JUAN",
		"document_number": "00000001"
	}}`)

	id, ok := domain.NormalizeIdentity(p, "ignored")
	require.True(t, ok)

	assert.Equal(t, "PEREZ GARCIA, JUAN", id.FullName)
	assert.Equal(t, "00000001", id.ID)
	assert.Equal(t, "PEREZ", id.PaternalSurname)
	assert.Equal(t, "GARCIA", id.MaternalSurname)
}

func TestNormalizeIdentity_CandidatePriority(t *testing.T) {
	p := decodePayload(t, `{
		"apellidoPaterno": "ALPHA",
		"apellido_paterno": "BETA",
		"first_last_name": "GAMMA",
		"nombres": "  ANA  "
	}`)

	id, ok := domain.NormalizeIdentity(p, "12345678")
	require.True(t, ok)

	assert.Equal(t, "ALPHA", id.PaternalSurname)
	assert.Equal(t, "ANA", id.FirstNames)
	assert.Equal(t, "ALPHA ANA", id.FullName, "missing maternal surname must not leave double spaces")
}

func TestNormalizeIdentity_AllEmptyIsNotFound(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"data": {}}`,
		`{"data": {"nombres": "", "apellidoPaterno": "  ", "full_name": null}}`,
		`{"success": true, "message": "No se encontraron resultados"}`,
	} {
		id, ok := domain.NormalizeIdentity(decodePayload(t, body), "72951012")
		assert.False(t, ok, body)
		assert.Nil(t, id)
	}
}

func TestNormalizeIdentity_NonObjectDataIsIgnored(t *testing.T) {
	p := decodePayload(t, `{"data": "oops", "nombres": "JUAN"}`)

	id, ok := domain.NormalizeIdentity(p, "00000001")
	require.True(t, ok)
	assert.Equal(t, "JUAN", id.FullName)
}

func TestNormalizeBusiness(t *testing.T) {
	p := decodePayload(t, `{"data": {
		"razon_social": "EMPRESA DEMO S.A.C.",
		"numero_documento": "20123456789",
		"estado": "ACTIVO",
		"condicion": "HABIDO",
		"direccion": "Av. Principal 123"
	}}`)

	b, ok := domain.NormalizeBusiness(p, "20123456789")
	require.True(t, ok)
	assert.Equal(t, "EMPRESA DEMO S.A.C.", b.LegalName)
	assert.Equal(t, "20123456789", b.ID)
	assert.Equal(t, "HABIDO", b.Condition)

	_, ok = domain.NormalizeBusiness(decodePayload(t, `{"estado": "ACTIVO"}`), "20123456789")
	assert.False(t, ok)
}

func TestIsDNIAndRUC(t *testing.T) {
	assert.True(t, domain.IsDNI("72951012"))
	assert.False(t, domain.IsDNI("7295101"))
	assert.False(t, domain.IsDNI("7295101a"))
	assert.False(t, domain.IsDNI(""))
	assert.True(t, domain.IsRUC("20123456789"))
	assert.False(t, domain.IsRUC("72951012"))
}
