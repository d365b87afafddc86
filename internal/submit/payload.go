package submit

import (
	"net/url"
	"strings"
	"time"
)

// Hidden form field names sourced from the listing page rather than the
// trigger attribute.
const (
	FieldDueDateInput = "venctoinput"
	FieldDueDateLimit = "Data_Limite_Vencimento_Boleto"
	FieldChangeDate   = "FlagAlterarData"
	FieldOriginCode   = "codigo_origem_recurso"
)

// HiddenFieldNames lists the form values the caller must collect from the
// rendered listing page before building a payload.
var HiddenFieldNames = []string{
	FieldDueDateInput,
	FieldDueDateLimit,
	FieldChangeDate,
	FieldOriginCode,
}

// BuildFormPayload merges the parsed arguments with the externally sourced
// hidden fields into the exact form body the document endpoint expects.
//
// The decimal separator of the total-value field is rewritten from comma to
// period because the upstream value is locale-formatted and the server
// rejects it otherwise. The substitution is a plain replace-all: a value
// carrying thousands separators comes out wrong ("1.234,56" -> "1.234.56").
// That matches the behavior the endpoint has always been driven with, so it
// is kept as-is.
func BuildFormPayload(args *SubmitArguments, hidden map[string]string) url.Values {
	payload := url.Values{}
	payload.Set("codigo_agente", args.AgentCode)
	payload.Set("numero_aviso", args.NoticeNumber)
	payload.Set("vencto", args.DueDate)
	payload.Set("descricao", args.Description)
	payload.Set("codigo_grupo", args.GroupCode)
	payload.Set("codigo_cota", args.QuotaCode)
	payload.Set("codigo_movimento", args.MovementCode)
	payload.Set("valor_total", strings.ReplaceAll(args.TotalValue, ",", "."))
	payload.Set("desc_pagamento", args.PaymentDescription)
	payload.Set("msg_dbt_apenas_parc_antes_venc", args.MessageText)
	payload.Set("sn_emite_boleto_pix", args.EmitBoletoPixFlag)
	payload.Set(FieldDueDateInput, hidden[FieldDueDateInput])
	payload.Set(FieldDueDateLimit, hidden[FieldDueDateLimit])
	payload.Set(FieldChangeDate, hiddenOrDefault(hidden, FieldChangeDate, "N"))
	payload.Set(FieldOriginCode, hiddenOrDefault(hidden, FieldOriginCode, "0"))
	return payload
}

// hiddenOrDefault falls back to the default only when the field was not on
// the page at all. A rendered field carrying an empty value is sent empty,
// exactly as the in-page submission would.
func hiddenOrDefault(hidden map[string]string, key, def string) string {
	if v, ok := hidden[key]; ok {
		return v
	}
	return def
}

// ReferenceDate derives the artifact filing date from the due-date argument,
// falling back to the current time when it does not parse.
func (a *SubmitArguments) ReferenceDate(now time.Time) time.Time {
	if t, err := time.Parse("02/01/2006", a.DueDate); err == nil {
		return t
	}
	return now
}
