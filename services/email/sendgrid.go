package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/ecolehub/backend/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
	maxSendAttempts  = 3
)

// SendgridService posts rendered messages to the Sendgrid v3 API, one goroutine per message.
type SendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
	backoff    time.Duration
	do         func(rest.Request) (*rest.Response, error) // mockable
}

var _ core.EmailService = (*SendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *SendgridService {
	return &SendgridService{
		key:        conf.SendgridApiKey,
		from:       toSGEmail(conf.DefaultFromEmail),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
		backoff:    time.Second,
		do:         sendgrid.API,
	}
}

func (svc *SendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc *SendgridService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email %s: %v", msg.TemplateName, err), err)
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}
	svc.send(svc.build(msg))
}

func toSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

// build maps msg to a v3 payload with a single personalization.
func (svc *SendgridService) build(msg *core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, addr := range msg.To {
		p.AddTos(toSGEmail(addr))
	}
	for _, addr := range msg.Cc {
		p.AddCCs(toSGEmail(addr))
	}
	for _, addr := range msg.Bcc {
		p.AddBCCs(toSGEmail(addr))
	}

	m := sgmail.NewV3Mail().SetFrom(svc.from).AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		m.AddAttachment(sgmail.NewAttachment().
			SetContent(at.Base64()).
			SetType(at.ContentType).
			SetFilename(at.Filename).
			SetDisposition("attachment"))
	}
	return m
}

// send retries transport and server errors with a linear backoff.
// It returns the number of attempts made.
func (svc *SendgridService) send(m *sgmail.SGMailV3) int {
	body := sgmail.GetRequestBody(m)
	attempt := 1
	for ; ; attempt++ {
		req := sendgrid.GetRequest(svc.key, sendgridEndpoint, sendgridHost)
		req.Method = rest.Post
		req.Body = body

		res, err := svc.do(req)
		switch {
		case err != nil:
			svc.logger.Warn(fmt.Sprintf("sending email - attempt %d: %v", attempt, err))
		case res.StatusCode >= http.StatusInternalServerError:
			svc.logger.Warn(fmt.Sprintf("sending email - attempt %d - status: %d", attempt, res.StatusCode))
		case res.StatusCode >= http.StatusBadRequest:
			svc.logger.Error(fmt.Sprintf("sending email - status: %d - body: %s", res.StatusCode, res.Body))
			return attempt
		default:
			return attempt
		}
		if attempt == maxSendAttempts {
			svc.logger.Error(fmt.Sprintf("sending email: giving up after %d attempts", attempt))
			return attempt
		}
		time.Sleep(time.Duration(attempt) * svc.backoff)
	}
}
