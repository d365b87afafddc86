package submit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleArguments() *SubmitArguments {
	args, err := Parse(sampleAttr)
	if err != nil {
		panic(err)
	}
	return args
}

func TestBuildFormPayloadFixedKeySet(t *testing.T) {
	payload := BuildFormPayload(sampleArguments(), nil)

	expectedKeys := []string{
		"codigo_agente", "numero_aviso", "vencto", "descricao",
		"codigo_grupo", "codigo_cota", "codigo_movimento", "valor_total",
		"desc_pagamento", "msg_dbt_apenas_parc_antes_venc", "sn_emite_boleto_pix",
		FieldDueDateInput, FieldDueDateLimit, FieldChangeDate, FieldOriginCode,
	}
	require.Len(t, payload, len(expectedKeys))
	for _, key := range expectedKeys {
		assert.True(t, payload.Has(key), "missing key %s", key)
	}
}

func TestBuildFormPayloadDecimalCorrection(t *testing.T) {
	payload := BuildFormPayload(sampleArguments(), map[string]string{
		FieldDueDateInput: "",
		FieldChangeDate:   "N",
		FieldOriginCode:   "0",
	})

	// Plain replace-all: the thousands separator survives as a second period.
	assert.Equal(t, "1.234.56", payload.Get("valor_total"))

	// No other field is touched.
	assert.Equal(t, "15/12/2025", payload.Get("vencto"))
	assert.Equal(t, "Desc", payload.Get("descricao"))
	assert.Equal(t, "Pay", payload.Get("desc_pagamento"))
}

func TestBuildFormPayloadHiddenFieldDefaults(t *testing.T) {
	payload := BuildFormPayload(sampleArguments(), nil)
	assert.Equal(t, "", payload.Get(FieldDueDateInput))
	assert.Equal(t, "", payload.Get(FieldDueDateLimit))
	assert.Equal(t, "N", payload.Get(FieldChangeDate))
	assert.Equal(t, "0", payload.Get(FieldOriginCode))
}

func TestBuildFormPayloadHiddenFieldOverrides(t *testing.T) {
	payload := BuildFormPayload(sampleArguments(), map[string]string{
		FieldDueDateInput: "20/12/2025",
		FieldDueDateLimit: "31/12/2025",
		FieldChangeDate:   "S",
		FieldOriginCode:   "3",
	})
	assert.Equal(t, "20/12/2025", payload.Get(FieldDueDateInput))
	assert.Equal(t, "31/12/2025", payload.Get(FieldDueDateLimit))
	assert.Equal(t, "S", payload.Get(FieldChangeDate))
	assert.Equal(t, "3", payload.Get(FieldOriginCode))
}

func TestBuildFormPayloadEmptyHiddenFieldSentEmpty(t *testing.T) {
	// A field rendered on the page with an empty value must be forwarded
	// empty, not replaced by the absent-field default.
	payload := BuildFormPayload(sampleArguments(), map[string]string{
		FieldChangeDate: "",
		FieldOriginCode: "",
	})
	assert.Equal(t, "", payload.Get(FieldChangeDate))
	assert.Equal(t, "", payload.Get(FieldOriginCode))
}

func TestReferenceDateFromDueDate(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ref := sampleArguments().ReferenceDate(now)
	assert.Equal(t, 2025, ref.Year())
	assert.Equal(t, time.December, ref.Month())
	assert.Equal(t, 15, ref.Day())

	bad := &SubmitArguments{DueDate: "not-a-date"}
	assert.Equal(t, now, bad.ReferenceDate(now))
}
