package email

import (
	"bytes"
	"html/template"
)

var proposalTemplate = template.Must(template.New("proposal").Parse(`<p>Hi {{.ClientName}},</p>
<p>{{.ProviderName}} has proposed the following times for your session:</p>
<ul>
{{- range .Slots}}
  <li>{{.When}}{{if .JoinURL}} &middot; <a href="{{.JoinURL}}">join link</a>{{end}}</li>
{{- end}}
</ul>
<p>Please confirm one of them before {{.ExpiresAt}}. The others will be released.</p>`))

type ProposalSlot struct {
	When    string
	JoinURL string
}

type ProposalEmail struct {
	ClientName   string
	ProviderName string
	Slots        []ProposalSlot
	ExpiresAt    string
}

func RenderProposal(data ProposalEmail) (string, error) {
	var buf bytes.Buffer
	if err := proposalTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
