package core_test

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilsat/vigil/core"
	appfs "github.com/vigilsat/vigil/fs"
)

func TestEmbeddedLayouts(t *testing.T) {
	for _, name := range []string{"templates/email/_base.gohtml", "templates/email/_base.txt"} {
		_, err := fs.Stat(appfs.FS, name)
		assert.NoError(t, err, name)
	}
}

func TestEmailMessage_Render(t *testing.T) {
	templates, err := core.ParseEmailTemplates(true /* strict */)
	require.NoError(t, err)

	msg := core.EmailMessage{
		Subject:      "Password reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": "Jane", "UID": "MQ", "Token": "abc-def"},
	}
	require.NoError(t, msg.Render(templates, "Vigil", "http://localhost:3000"))

	assert.Contains(t, msg.TextContent, "Hello Jane,")
	assert.Contains(t, msg.TextContent, "http://localhost:3000/password-reset/MQ/abc-def")
	assert.Contains(t, msg.TextContent, "\n--\nVigil\n")
	assert.Contains(t, msg.HTMLContent, "<title>Vigil</title>")
	assert.Contains(t, msg.HTMLContent, `href="http://localhost:3000/password-reset/MQ/abc-def"`)

	// plain bodies skip the text template
	plain := core.EmailMessage{BodyStr: "hi"}
	require.NoError(t, plain.Render(templates, "Vigil", ""))
	assert.Equal(t, "hi", plain.TextContent)
	assert.Empty(t, plain.HTMLContent)
}
