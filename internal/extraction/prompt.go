package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/viewscale"
)

// maxPromptText bounds the report text sent upstream (runes)
const maxPromptText = 60000

// BuildPrompt asks the model for a JSON array in the views row shape
func BuildPrompt(text, manager string, scale *viewscale.Scale, today time.Time) string {
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText])
	}

	labels := make([]string, 0, len(scale.Levels()))
	for _, v := range scale.Levels() {
		labels = append(labels, fmt.Sprintf("%q", string(v)))
	}

	var b strings.Builder
	b.WriteString("Você é um analista de investimentos. Leia o relatório abaixo, publicado pela gestora ")
	fmt.Fprintf(&b, "%q, e extraia a visão da gestora para cada classe e subclasse de ativo mencionada.\n\n", manager)
	b.WriteString("Responda APENAS com um array JSON, sem texto adicional. Cada elemento deve ter exatamente os campos:\n")
	fmt.Fprintf(&b, "- %q: data de referência do relatório no formato AAAA-MM-DD (use %s se não houver data)\n",
		"data_referencia", today.Format(contracts.DateLayout))
	fmt.Fprintf(&b, "- %q: %q\n", "gestora", manager)
	fmt.Fprintf(&b, "- %q: classe de ativo (ex.: Ações, Renda Fixa, Moedas, Commodities)\n", "classe_ativo")
	fmt.Fprintf(&b, "- %q: subclasse de ativo (ex.: EUA, Japão, Crédito High Yield)\n", "sub_classe_ativo")
	fmt.Fprintf(&b, "- %q: exatamente um de [%s]\n", "visao", strings.Join(labels, ", "))
	fmt.Fprintf(&b, "- %q: resumo da tese em uma frase\n", "resumo_tese")
	fmt.Fprintf(&b, "- %q: citação literal do relatório que justifica a visão\n\n", "frase_justificativa")
	b.WriteString("Relatório:\n\"\"\"\n")
	b.WriteString(text)
	b.WriteString("\n\"\"\"\n")

	return b.String()
}
