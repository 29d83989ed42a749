package notifications

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"sort"
	texttemplate "text/template"

	"gopkg.in/yaml.v3"
)

// Template keys understood by the catalog.
const (
	TemplateReferralSubmitted      = "referral_submitted"
	TemplateReferralAdminAlert     = "referral_admin_alert"
	TemplateReferralMatched        = "referral_matched"
	TemplateReferralStatusReviewed = "referral_status_reviewed"
	TemplateReferralStatusEngaged  = "referral_status_engaged"
	TemplateReferralCompleted      = "referral_completed"
	TemplateApplicationApproved    = "application_approved"
	TemplateApplicationRejected    = "application_rejected"
	TemplateApplicationReceived    = "application_received"
	TemplateApplicationAdminAlert  = "application_admin_alert"
	TemplateApplicationReminder    = "application_reminder"
)

//go:embed templates.yml
var embeddedTemplates []byte

type catalogFile struct {
	Layout    string                  `yaml:"layout"`
	Templates map[string]templateFile `yaml:"templates"`
}

type templateFile struct {
	Subject string `yaml:"subject"`
	HTML    string `yaml:"html"`
}

type compiledTemplate struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

// Catalog holds the parsed email templates, keyed by template name.
type Catalog struct {
	templates map[string]compiledTemplate
}

// LoadCatalog parses the templates embedded in the binary.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(embeddedTemplates)
}

// ParseCatalog parses a YAML template catalog. Every body is rendered inside the
// shared layout through {{template "content" .}}.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse email catalog: %w", err)
	}
	if file.Layout == "" {
		return nil, fmt.Errorf("email catalog has no layout")
	}

	layout, err := htmltemplate.New("layout").Option("missingkey=error").Parse(file.Layout)
	if err != nil {
		return nil, fmt.Errorf("parse email layout: %w", err)
	}

	c := &Catalog{templates: make(map[string]compiledTemplate, len(file.Templates))}
	for key, tpl := range file.Templates {
		subject, err := texttemplate.New(key + ".subject").Option("missingkey=error").Parse(tpl.Subject)
		if err != nil {
			return nil, fmt.Errorf("parse subject %q: %w", key, err)
		}
		body, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %q: %w", key, err)
		}
		if _, err := body.New("content").Parse(tpl.HTML); err != nil {
			return nil, fmt.Errorf("parse body %q: %w", key, err)
		}
		c.templates[key] = compiledTemplate{subject: subject, body: body}
	}
	return c, nil
}

// Keys lists the template names in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Render produces the subject line and HTML body for key.
func (c *Catalog) Render(key string, data EmailData) (string, string, error) {
	tpl, ok := c.templates[key]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", key)
	}

	var subject bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render subject %q: %w", key, err)
	}
	var body bytes.Buffer
	if err := tpl.body.ExecuteTemplate(&body, "layout", data); err != nil {
		return "", "", fmt.Errorf("render body %q: %w", key, err)
	}
	return subject.String(), body.String(), nil
}
