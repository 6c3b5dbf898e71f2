package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
	"github.com/cardioedad/cardioedad/internal/domain/patient"
)

// recentLogCount is how many of the latest daily logs go into a summary.
const recentLogCount = 5

func recentLogs(logs []chart.DailyLog) []chart.DailyLog {
	if len(logs) > recentLogCount {
		return logs[len(logs)-recentLogCount:]
	}
	return logs
}

func summaryPrompt(p *patient.Patient) (string, error) {
	logs, err := json.MarshalIndent(recentLogs(p.DailyLogs), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode logs: %w", err)
	}

	var b strings.Builder
	b.WriteString("Atue como um residente sênior de medicina interna ou intensivista.\n")
	b.WriteString("Analise os dados do paciente a seguir e forneça um resumo clínico conciso e uma análise de tendências (máx. 150 palavras) em PORTUGUÊS.\n")
	b.WriteString("Concentre-se na evolução dos sinais vitais, balanço hídrico (se UTI), novas hipóteses diagnósticas e principais resultados laboratoriais.\n\n")
	fmt.Fprintf(&b, "Paciente: %s, %d anos, %s, Leito %s (%s).\n", p.Name, p.Age, p.Gender, p.BedNumber, p.Unit)
	fmt.Fprintf(&b, "Admissão: %s\n", p.AdmissionDate)
	fmt.Fprintf(&b, "Hipóteses Diagnósticas Atuais: %s\n", strings.Join(p.DiagnosticHypotheses, ", "))
	fmt.Fprintf(&b, "Histórico: %s\n\n", p.AdmissionHistory)
	b.WriteString("Registros Diários Recentes:\n")
	b.Write(logs)
	b.WriteString("\n\nFormate a saída como uma nota médica profissional e direta. Aponte sinais de alerta se existirem.\n")
	return b.String(), nil
}

func hypothesesPrompt(symptoms string, current []string) string {
	cur, _ := json.Marshal(current)
	var b strings.Builder
	fmt.Fprintf(&b, "Dados os seguintes sintomas/observações: %q\n", symptoms)
	fmt.Fprintf(&b, "Hipóteses atuais: %s\n\n", cur)
	b.WriteString("Sugira 3-5 hipóteses diagnósticas adicionais ou diferenciais relevantes.\n")
	b.WriteString("Responda em PORTUGUÊS.\n")
	b.WriteString("Retorne APENAS um array JSON de strings.\n")
	return b.String()
}
