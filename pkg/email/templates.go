package email

import (
	"fmt"
	"html"
	"strings"
)

const bodyStyle = `font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;`

type StatusChangeData struct {
	Nome       string
	Email      string
	Data       string // dd/mm/yyyy
	Hora       string // HH:MM
	StatusNovo string
}

func BuildStatusChangeEmail(d StatusChangeData) Message {
	nome := firstNonEmpty(d.Nome, "olá")
	subject := fmt.Sprintf("Sua consulta de %s foi atualizada", d.Data)

	text := fmt.Sprintf(`Olá, %s.

A consulta de %s às %s agora está com o status: %s.

Equipe Estação Terapia`, nome, d.Data, d.Hora, d.StatusNovo)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="%s">
    <h2 style="color: #4f46e5;">Olá, %s.</h2>
    <p>A consulta de <strong>%s</strong> às <strong>%s</strong> agora está com o status:</p>
    <p style="background-color: #f3f4f6; padding: 10px 15px; border-radius: 4px;">%s</p>
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">Equipe Estação Terapia</p>
</body>
</html>`, bodyStyle, html.EscapeString(nome), d.Data, d.Hora, html.EscapeString(d.StatusNovo))

	return Message{To: []string{d.Email}, Subject: subject, TextBody: text, HTMLBody: htmlBody}
}

type ReminderItem struct {
	Hora     string
	Paciente string
}

type ReminderData struct {
	Nome     string
	Email    string
	Data     string
	Sessions []ReminderItem
}

// BuildReminderEmail lists a psychologist's sessions of the next day.
func BuildReminderEmail(d ReminderData) Message {
	var text, rows strings.Builder
	for _, s := range d.Sessions {
		fmt.Fprintf(&text, "- %s com %s\n", s.Hora, s.Paciente)
		fmt.Fprintf(&rows, "<li><strong>%s</strong> com %s</li>", s.Hora, html.EscapeString(s.Paciente))
	}

	subject := fmt.Sprintf("Suas consultas de %s", d.Data)
	textBody := fmt.Sprintf(`Olá, %s.

Estas são as suas consultas de %s:
%s
Equipe Estação Terapia`, d.Nome, d.Data, text.String())

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="%s">
    <h2 style="color: #4f46e5;">Olá, %s.</h2>
    <p>Estas são as suas consultas de <strong>%s</strong>:</p>
    <ul>%s</ul>
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">Equipe Estação Terapia</p>
</body>
</html>`, bodyStyle, html.EscapeString(d.Nome), d.Data, rows.String())

	return Message{To: []string{d.Email}, Subject: subject, TextBody: textBody, HTMLBody: htmlBody}
}

func firstNonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
