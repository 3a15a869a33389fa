package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilsat/vigil/core"
	logsvc "github.com/vigilsat/vigil/services/logger"
)

func testConfig() *core.Config {
	return &core.Config{
		AppName:          "Vigil",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Vigil", Address: "noreply@vigil.test"},
	}
}

func TestServiceMock_SendMessages(t *testing.T) {
	templates, err := core.ParseEmailTemplates(true /* strict */)
	require.NoError(t, err)
	svc := NewServiceMock(testConfig(), templates, logsvc.NewNopLogger())

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Awe", Address: "awe@test.cd"}},
			Subject:      "Password Reset",
			TemplateName: "password_reset",
			TemplateData: map[string]string{"Name": "Awe", "UID": "MQ", "Token": "abc-123"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "empty@test.cd"}}, Subject: "no content"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Contains(t, msg.TextContent, "Hello Awe,")
	assert.Contains(t, msg.TextContent, "http://localhost:3000/password-reset/MQ/abc-123")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(msg.TextContent), "http://localhost:3000"))
	assert.Contains(t, msg.HTMLContent, `href="http://localhost:3000/password-reset/MQ/abc-123"`)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestServiceMock_missingTemplateKey(t *testing.T) {
	templates, err := core.ParseEmailTemplates(true /* strict */)
	require.NoError(t, err)
	svc := NewServiceMock(testConfig(), templates, logsvc.NewNopLogger())

	svc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: "awe@test.cd"}},
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": "Awe"},
	})
	assert.Empty(t, svc.SentMessages())
}

func Test_consoleService_send(t *testing.T) {
	var out bytes.Buffer
	svc := &consoleService{
		from:       mail.Address{Name: "Vigil", Address: "noreply@vigil.test"},
		subjPrefix: "[Vigil] ",
		logger:     logsvc.NewNopLogger(),
		out:        &out,
	}

	msg := &core.EmailMessage{
		To:      []mail.Address{{Address: "awe@test.cd"}},
		Subject: "Report",
		BodyStr: "see attached",
	}
	require.NoError(t, msg.Attach(strings.NewReader("a,b\n1,2\n"), "report.csv", "text/csv"))

	assert.True(t, svc.sendMessage(msg))
	printed := out.String()
	assert.Contains(t, printed, "Subject: [Vigil] Report")
	assert.Contains(t, printed, "To: <awe@test.cd>")
	assert.Contains(t, printed, "Content-Type: multipart/mixed; boundary=")
	assert.Contains(t, printed, "see attached")
	assert.Contains(t, printed, "attachment; filename=report.csv")
}
