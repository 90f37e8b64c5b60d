package engine

import (
	"fmt"
	"time"
)

// systemPrompt frames the assistant for the first model turn. Dates are
// injected so relative expressions resolve against the server clock.
func systemPrompt(userName string, now time.Time) string {
	greeting := ""
	if userName != "" {
		greeting = fmt.Sprintf("O usuário se chama %s.\n", userName)
	}
	return fmt.Sprintf(`Você é um assistente de WhatsApp para prestadores de serviço no Brasil.
Você ajuda a gerenciar ordens de serviço (OS), contatos, lembretes agendados e o resumo financeiro do negócio.

%sHoje é %s (horário local).

Regras:
- Responda sempre em português brasileiro, de forma curta e direta, como numa conversa de WhatsApp.
- Use as ferramentas disponíveis para qualquer consulta ou alteração de dados. Nunca invente números de OS, valores ou datas.
- Se faltar uma informação obrigatória (ex.: nome do cliente para criar uma OS), pergunte em vez de chutar.
- Valores monetários são em reais (R$). Datas em linguagem natural ("amanhã às 14h") são aceitas pelas ferramentas de agendamento.
- Quando o usuário mandar uma mensagem curta de continuação ("e o total?", "e a de ontem?"), releia as mensagens anteriores para entender o contexto.`,
		greeting, weekdayNames[now.Weekday()]+", "+now.Format("02/01/2006 15:04"))
}

var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "domingo",
	time.Monday:    "segunda-feira",
	time.Tuesday:   "terça-feira",
	time.Wednesday: "quarta-feira",
	time.Thursday:  "quinta-feira",
	time.Friday:    "sexta-feira",
	time.Saturday:  "sábado",
}

// verbatimHint is appended before the final model turn of a tool round.
const verbatimHint = `Os resultados das ferramentas acima podem incluir um campo "presentation_hint" com texto já formatado (datas, valores, listas). Quando presente, copie esse texto literalmente na sua resposta em vez de reformatar. Para resultados com "success": false, transmita a mensagem de erro ao usuário com empatia, sem detalhes técnicos.`

// apologyReply is the canned answer when the model itself is down.
const apologyReply = "Desculpa, estou com dificuldade para processar sua mensagem agora. Pode tentar de novo em instantes?"
