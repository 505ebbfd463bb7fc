package graph

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgate/graphgate/errcode"
)

func TestBuildAttachmentsInline(t *testing.T) {
	service := NewMailService(newTestClient(""), 4000, 20000)
	content := base64.StdEncoding.EncodeToString([]byte("hello"))

	attachments, total, err := service.BuildAttachments(t.Context(), []InlineAttachment{
		{Name: "note.txt", ContentBase64: "data:text/plain;base64," + content},
		{Name: "plain.bin", ContentType: "application/x-thing", ContentBase64: " " + content[:4] + "\n" + content[4:]},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	require.Len(t, attachments, 2)
	assert.Equal(t, "#microsoft.graph.fileAttachment", attachments[0]["@odata.type"])
	assert.Equal(t, "note.txt", attachments[0]["name"])
	assert.Equal(t, "application/octet-stream", attachments[0]["contentType"])
	assert.Equal(t, content, attachments[0]["contentBytes"])
	assert.Equal(t, "application/x-thing", attachments[1]["contentType"])
}

func TestBuildAttachmentsValidation(t *testing.T) {
	service := NewMailService(newTestClient(""), 4000, 20000)

	var coded *errcode.Error

	_, _, err := service.BuildAttachments(t.Context(), []InlineAttachment{{Name: "x.txt"}}, nil)
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, errcode.Validation, coded.Code)

	_, _, err = service.BuildAttachments(t.Context(), []InlineAttachment{
		{Name: "x.txt", ContentBase64: "!!not-base64!!"},
	}, nil)
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, errcode.Validation, coded.Code)

	tooMany := make([]InlineAttachment, 11)
	for i := range tooMany {
		tooMany[i] = InlineAttachment{Name: "f.txt", ContentBase64: "aGk="}
	}
	_, _, err = service.BuildAttachments(t.Context(), tooMany, nil)
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, errcode.Validation, coded.Code)
	assert.Contains(t, coded.Message, "count")

	_, _, err = service.BuildAttachments(t.Context(), nil, []AttachmentRef{{DriveID: "d"}})
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, errcode.Validation, coded.Code)
}

func TestBuildMessage(t *testing.T) {
	message := BuildMessage("Subject", "<p>hi</p>", []string{"a@contoso.com"}, []string{"b@contoso.com"}, nil)
	assert.Equal(t, "Subject", message["subject"])
	to, _ := message["toRecipients"].([]map[string]interface{})
	require.Len(t, to, 1)
	assert.Equal(t, map[string]interface{}{"address": "a@contoso.com"}, to[0]["emailAddress"])
	_, hasAttachments := message["attachments"]
	assert.False(t, hasAttachments)

	body, _ := message["body"].(map[string]interface{})
	assert.Equal(t, "HTML", body["contentType"])
	assert.True(t, strings.Contains(body["content"].(string), "<p>hi</p>"))
}
