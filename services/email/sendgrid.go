package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/ratiba/core"
)

// sendgridClient is the part of *sendgrid.Client the service uses.
type sendgridClient interface {
	Send(email *sgmail.SGMailV3) (*rest.Response, error)
}

type sendgridService struct {
	client     sendgridClient
	appName    string
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return newSendgridService(conf, sendgrid.NewSendClient(conf.SendgridApiKey), logger)
}

func newSendgridService(conf *core.Config, client sendgridClient, logger core.Logger) *sendgridService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		client:     client,
		appName:    conf.AppName,
		from:       toSGEmail(from),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

// SendMessages renders and sends every message in its own goroutine.
func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go svc.deliver(msg)
	}
}

func (svc sendgridService) deliver(msg *core.EmailMessage) bool {
	if err := msg.Render(svc.appName); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering %q email: %v", msg.TemplateName, err), err)
		return false
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return false
	}

	res, err := svc.client.Send(svc.build(*msg))
	if err != nil {
		svc.logger.Error(fmt.Sprintf("sending %q email: %v", msg.TemplateName, err), err)
		return false
	}
	if res.StatusCode >= http.StatusBadRequest {
		svc.logger.Error(fmt.Sprintf("sendgrid rejected %q email", msg.TemplateName), map[string]interface{}{
			"status": res.StatusCode,
			"body":   res.Body,
		})
		return false
	}
	return true
}

// build turns msg into a single-personalization v3 mail categorized by its template name.
func (svc sendgridService) build(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(toSGEmails(msg.To)...)
	if len(msg.Cc) > 0 {
		p.AddCCs(toSGEmails(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		p.AddBCCs(toSGEmails(msg.Bcc)...)
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}
	return m
}

func toSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func toSGEmails(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, a := range addrs {
		emails = append(emails, toSGEmail(a))
	}
	return emails
}

// NewService picks sendgrid when an api key is configured, the console otherwise.
func NewService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.SendgridApiKey == "" || conf.Debug || conf.TestMode {
		return NewConsoleService(conf, logger)
	}
	return NewSendgridService(conf, logger)
}
