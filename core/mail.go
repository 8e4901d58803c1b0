package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync/atomic"
	texttmpl "text/template"
)

const (
	emailTemplatesDir = "templates/email"
	textExt           = ".txt"
	htmlExt           = ".gohtml"
)

var emailTmpls atomic.Pointer[emailTemplates]

type (
	// emailTemplates holds every parsed template by name (without ext).
	emailTemplates struct {
		baseURL string
		text    map[string]*texttmpl.Template
		html    map[string]*htmltmpl.Template
	}

	Attachment struct {
		Filename    string
		ContentType string
		Data        []byte
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // plain text, bypasses templates
		Attachments []Attachment

		TemplateName string
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData is what email templates are executed with.
	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Base64 returns the attachment content as sent over the wire.
func (at Attachment) Base64() string {
	return base64.StdEncoding.EncodeToString(at.Data)
}

// Render fills TextContent and HTMLContent from BodyStr or the named templates.
// A message whose template was never loaded renders empty.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	tmpls := emailTmpls.Load()
	if m.TemplateName == "" || tmpls == nil {
		return nil
	}
	data := ContextData{FrontendBaseURL: tmpls.baseURL, Data: m.TemplateData}

	var buf bytes.Buffer
	if t, ok := tmpls.text[m.TemplateName]; ok && m.BodyStr == "" {
		if err := t.Execute(&buf, data); err != nil {
			return fmt.Errorf("rendering %s%s: %w", m.TemplateName, textExt, err)
		}
		m.TextContent = buf.String()
	}
	if t, ok := tmpls.html[m.TemplateName]; ok {
		buf.Reset()
		if err := t.Execute(&buf, data); err != nil {
			return fmt.Errorf("rendering %s%s: %w", m.TemplateName, htmlExt, err)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// Attach reads r fully. The content type is sniffed unless given.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	at := Attachment{Filename: filename, Data: data, ContentType: http.DetectContentType(data)}
	if len(ct) > 0 && ct[0] != "" {
		at.ContentType = ct[0]
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return m.TextContent != "" || m.HTMLContent != "" }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates loads the email templates embedded in fsys and makes them
// available to Render. Files starting with "_" are the layouts every template of
// the same ext is parsed with. Broken templates are logged and skipped.
func ParseEmailTemplates(fsys fs.FS, conf *Config, logger Logger) {
	tmpls := &emailTemplates{
		baseURL: conf.FrontendBaseURL,
		text:    make(map[string]*texttmpl.Template),
		html:    make(map[string]*htmltmpl.Template),
	}
	missingKey := "missingkey=default"
	if conf.Debug || conf.TestMode {
		missingKey = "missingkey=error"
	}

	fps, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
		return
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		ext := path.Ext(fname)
		name := strings.TrimSuffix(fname, ext)
		layout := path.Join(emailTemplatesDir, "_base"+ext)

		switch ext {
		case textExt:
			t, err := texttmpl.ParseFS(fsys, layout, fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
				continue
			}
			tmpls.text[name] = t.Option(missingKey)
		case htmlExt:
			t, err := htmltmpl.ParseFS(fsys, layout, fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
				continue
			}
			tmpls.html[name] = t.Option(missingKey)
		}
	}
	emailTmpls.Store(tmpls)
}
