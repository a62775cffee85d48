package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ProposalDelivery данные письма с предложением для клиента.
type ProposalDelivery struct {
	ClientName    string
	SenderName    string
	ProposalTitle string
	ShareURL      string
	Message       string
}

// SignatureCompleted данные письма владельцу о подписании.
type SignatureCompleted struct {
	OwnerName     string
	ProposalTitle string
	SignerName    string
	AllSigned     bool
	ProposalURL   string
}

// ProposalDeliveryMessage собирает письмо с предложением.
func ProposalDeliveryMessage(to, replyTo string, data ProposalDelivery) (Message, error) {
	html, err := render("proposal_delivery.html", data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		ReplyTo: replyTo,
		Subject: fmt.Sprintf("Коммерческое предложение: %s", data.ProposalTitle),
		HTML:    html,
	}, nil
}

// SignatureCompletedMessage собирает уведомление о подписи.
func SignatureCompletedMessage(to string, data SignatureCompleted) (Message, error) {
	html, err := render("signature_completed.html", data)
	if err != nil {
		return Message{}, err
	}
	subject := fmt.Sprintf("%s подписал(а) «%s»", data.SignerName, data.ProposalTitle)
	if data.AllSigned {
		subject = fmt.Sprintf("Предложение «%s» полностью подписано", data.ProposalTitle)
	}
	return Message{To: to, Subject: subject, HTML: html}, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("mailer: шаблон %s: %w", name, err)
	}
	return buf.String(), nil
}
