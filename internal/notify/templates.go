package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// renderView раскрывает необязательные поля события для шаблонов.
type renderView struct {
	Event
	RefundPercentage int
	Deadline         time.Time
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

const dateLayout = "02.01.2006"

var funcs = template.FuncMap{
	"date": func(v any) string {
		switch t := v.(type) {
		case interface{ Format(string) string }:
			return t.Format(dateLayout)
		default:
			return fmt.Sprint(v)
		}
	},
}

func mustTemplate(name, subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(name + ".subject").Funcs(funcs).Parse(subject)),
		body:    template.Must(template.New(name + ".body").Funcs(funcs).Parse(body)),
	}
}

var templates = map[EventType]messageTemplate{
	EventOrderAccepted: mustTemplate(string(EventOrderAccepted),
		"Order {{.OrderNumber}} accepted",
		"Your order {{.OrderNumber}} for {{date .ServiceDate}} has been accepted by our team.",
	),
	EventOrderInDelivery: mustTemplate(string(EventOrderInDelivery),
		"Order {{.OrderNumber}} is on its way",
		"Your order {{.OrderNumber}} for {{date .ServiceDate}} is being delivered.",
	),
	EventOrderCompleted: mustTemplate(string(EventOrderCompleted),
		"Order {{.OrderNumber}} completed",
		"Your order {{.OrderNumber}} is completed. You can now leave a review.",
	),
	EventOrderCancelled: mustTemplate(string(EventOrderCancelled),
		"Order {{.OrderNumber}} cancelled",
		"Your order {{.OrderNumber}} for {{date .ServiceDate}} has been cancelled. "+
			"Refund: {{.RefundPercentage}}%"+
			"{{if .Amount}}, {{.Amount.StringFixed 2}}{{end}}.",
	),
	EventEquipmentPenalty: mustTemplate(string(EventEquipmentPenalty),
		"Equipment for order {{.OrderNumber}} not returned",
		"The equipment loaned with order {{.OrderNumber}} was due back by {{date .Deadline}}. "+
			"A penalty of {{if .Amount}}{{.Amount.StringFixed 2}}{{end}} applies.",
	),
}

var genericStatusTemplate = mustTemplate("order_status",
	"Order {{.OrderNumber}} update",
	"Your order {{.OrderNumber}} for {{date .ServiceDate}} has a new status: {{.Type}}.",
)

// Render формирует тему и текст сообщения для события.
func Render(e Event) (string, string, error) {
	tpl, ok := templates[e.Type]
	if !ok {
		tpl = genericStatusTemplate
	}

	view := renderView{Event: e}
	if e.RefundPercentage != nil {
		view.RefundPercentage = *e.RefundPercentage
	}
	if e.Deadline != nil {
		view.Deadline = *e.Deadline
	}

	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, view); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tpl.body.Execute(&body, view); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}

	return subject.String(), body.String(), nil
}
