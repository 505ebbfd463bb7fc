package graph

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/graphgate/graphgate/errcode"
)

const (
	maxAttachmentCount       = 10
	maxAttachmentBytesSingle = 5 * 1024 * 1024
	maxAttachmentBytesTotal  = 10 * 1024 * 1024
)

const messageSelect = "id,subject,from,toRecipients,ccRecipients,sentDateTime,receivedDateTime,isRead,bodyPreview,body,conversationId,webLink"

type MailService struct {
	client          *Client
	defaultMaxChars int
	hardMaxChars    int
}

func NewMailService(client *Client, defaultMaxChars, hardMaxChars int) *MailService {
	return &MailService{client: client, defaultMaxChars: defaultMaxChars, hardMaxChars: hardMaxChars}
}

// PickMessage projects a raw Graph message to the gateway's compact shape.
// The full payload adds recipients and a length-capped plain-text body.
func (s *MailService) PickMessage(message map[string]interface{}, includeFull bool) map[string]interface{} {
	minimal := map[string]interface{}{
		"id":           message["id"],
		"subject":      message["subject"],
		"from":         nested(message, "from", "emailAddress"),
		"sent_at":      message["sentDateTime"],
		"received_at":  message["receivedDateTime"],
		"is_read":      message["isRead"],
		"body_preview": message["bodyPreview"],
	}
	if !includeFull {
		return minimal
	}
	bodyText, truncated := CompactText(StripHTML(str(nested(message, "body", "content"))), s.defaultMaxChars, s.hardMaxChars)
	minimal["to"] = message["toRecipients"]
	minimal["cc"] = message["ccRecipients"]
	minimal["conversation_id"] = message["conversationId"]
	minimal["body_text"] = bodyText
	minimal["body_truncated"] = truncated
	minimal["web_link"] = message["webLink"]
	return minimal
}

// Search runs a $search over the mailbox. Results come back in Graph's
// relevance order.
func (s *MailService) Search(ctx context.Context, query string, top int) ([]map[string]interface{}, error) {
	values := url.Values{}
	values.Set("$search", `"`+strings.ReplaceAll(query, `"`, `\"`)+`"`)
	values.Set("$top", strconv.Itoa(top))
	values.Set("$select", messageSelect)
	headers := map[string]string{"ConsistencyLevel": "eventual"}
	out := &listValue{}
	if err := s.client.get(ctx, "/me/messages", values, headers, out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (s *MailService) Get(ctx context.Context, messageID string) (map[string]interface{}, error) {
	values := url.Values{}
	values.Set("$select", messageSelect)
	out := map[string]interface{}{}
	if err := s.client.get(ctx, "/me/messages/"+pathEscape(messageID), values, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Send posts a fully built message through /me/sendMail.
func (s *MailService) Send(ctx context.Context, message map[string]interface{}) error {
	body := map[string]interface{}{"message": message, "saveToSentItems": true}
	return s.client.post(ctx, "/me/sendMail", body, nil)
}

// CreateDraft saves a message to the drafts folder and returns its id.
func (s *MailService) CreateDraft(ctx context.Context, message map[string]interface{}) (string, error) {
	out := map[string]interface{}{}
	if err := s.client.post(ctx, "/me/messages", message, &out); err != nil {
		return "", err
	}
	id := strings.TrimSpace(str(out["id"]))
	if id == "" {
		return "", errcode.New(errcode.Upstream, "Graph draft creation returned no id")
	}
	return id, nil
}

// Reply sends an immediate reply (or reply-all) with an HTML body.
func (s *MailService) Reply(ctx context.Context, messageID, bodyHTML string, replyAll bool) error {
	action := "/reply"
	if replyAll {
		action = "/replyAll"
	}
	body := map[string]interface{}{
		"message": map[string]interface{}{
			"body": map[string]interface{}{"contentType": "HTML", "content": bodyHTML},
		},
	}
	return s.client.post(ctx, "/me/messages/"+pathEscape(messageID)+action, body, nil)
}

// CreateReplyDraft creates a reply draft and, when bodyHTML is non-empty,
// prepends it to the quoted original via a PATCH on the draft body.
func (s *MailService) CreateReplyDraft(ctx context.Context, messageID, bodyHTML string, replyAll bool) (string, error) {
	action := "/createReply"
	if replyAll {
		action = "/createReplyAll"
	}
	created := map[string]interface{}{}
	if err := s.client.post(ctx, "/me/messages/"+pathEscape(messageID)+action, map[string]interface{}{}, &created); err != nil {
		return "", err
	}
	draftID := strings.TrimSpace(str(created["id"]))
	if draftID == "" {
		return "", errcode.New(errcode.Upstream, "Graph reply draft creation returned no id")
	}
	if strings.TrimSpace(bodyHTML) != "" {
		values := url.Values{}
		values.Set("$select", "body")
		current := map[string]interface{}{}
		if err := s.client.get(ctx, "/me/messages/"+pathEscape(draftID), values, nil, &current); err != nil {
			return "", err
		}
		merged := bodyHTML + "<br><br>" + str(nested(current, "body", "content"))
		patch := map[string]interface{}{
			"body": map[string]interface{}{"contentType": "HTML", "content": merged},
		}
		if err := s.client.patch(ctx, "/me/messages/"+pathEscape(draftID), patch, nil); err != nil {
			return "", err
		}
	}
	return draftID, nil
}

// InlineAttachment is base64 content supplied directly by the caller.
type InlineAttachment struct {
	Name          string `json:"name"`
	ContentType   string `json:"content_type,omitempty"`
	ContentBase64 string `json:"content_base64"`
}

// AttachmentRef points at a drive item to attach by download.
type AttachmentRef struct {
	DriveID string `json:"drive_id"`
	ItemID  string `json:"item_id"`
	Name    string `json:"name,omitempty"`
}

var dataURIPrefix = regexp.MustCompile(`^data:[^;]+;base64,`)

// BuildAttachments resolves inline content and drive-item references into
// Graph fileAttachment objects, enforcing the count and size caps.
func (s *MailService) BuildAttachments(ctx context.Context, inline []InlineAttachment, refs []AttachmentRef) ([]map[string]interface{}, int, error) {
	if len(inline)+len(refs) > maxAttachmentCount {
		return nil, 0, errcode.New(errcode.Validation, "attachment count exceeds %d", maxAttachmentCount)
	}
	var attachments []map[string]interface{}
	totalBytes := 0
	for _, item := range inline {
		name := strings.TrimSpace(item.Name)
		encoded := strings.TrimSpace(item.ContentBase64)
		if name == "" || encoded == "" {
			return nil, 0, errcode.New(errcode.Validation, "inline attachment requires name and content_base64")
		}
		encoded = dataURIPrefix.ReplaceAllString(encoded, "")
		encoded = strings.Join(strings.Fields(encoded), "")
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(raw) == 0 {
			return nil, 0, errcode.New(errcode.Validation, "attachment %q has invalid/empty base64 content", name)
		}
		if len(raw) > maxAttachmentBytesSingle {
			return nil, 0, errcode.New(errcode.Validation, "attachment %q exceeds %d bytes", name, maxAttachmentBytesSingle)
		}
		contentType := item.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		totalBytes += len(raw)
		attachments = append(attachments, map[string]interface{}{
			"@odata.type":  "#microsoft.graph.fileAttachment",
			"name":         name,
			"contentType":  contentType,
			"contentBytes": base64.StdEncoding.EncodeToString(raw),
		})
	}
	for _, ref := range refs {
		driveID := strings.TrimSpace(ref.DriveID)
		itemID := strings.TrimSpace(ref.ItemID)
		if driveID == "" || itemID == "" {
			return nil, 0, errcode.New(errcode.Validation, "attachment_refs entries require drive_id and item_id")
		}
		attachment, size, err := s.fetchDriveItemAttachment(ctx, driveID, itemID, ref.Name)
		if err != nil {
			return nil, 0, err
		}
		totalBytes += size
		attachments = append(attachments, attachment)
	}
	if totalBytes > maxAttachmentBytesTotal {
		return nil, 0, errcode.New(errcode.Validation, "total attachment size exceeds %d bytes", maxAttachmentBytesTotal)
	}
	return attachments, totalBytes, nil
}

func (s *MailService) fetchDriveItemAttachment(ctx context.Context, driveID, itemID, preferredName string) (map[string]interface{}, int, error) {
	itemPath := "/drives/" + pathEscape(driveID) + "/items/" + pathEscape(itemID)
	values := url.Values{}
	values.Set("$select", "id,name,size,file")
	item := map[string]interface{}{}
	if err := s.client.get(ctx, itemPath, values, nil, &item); err != nil {
		return nil, 0, err
	}
	fileName := strings.TrimSpace(preferredName)
	if fileName == "" {
		fileName = str(item["name"])
	}
	if fileName == "" {
		fileName = "file-" + itemID
	}
	raw, contentType, err := s.client.getRaw(ctx, itemPath+"/content", maxAttachmentBytesSingle)
	if err != nil {
		var coded *errcode.Error
		if errors.As(err, &coded) && coded.Code == errcode.Validation {
			return nil, 0, errcode.New(errcode.Validation, "attachment %q exceeds %d bytes", fileName, maxAttachmentBytesSingle)
		}
		return nil, 0, err
	}
	if contentType == "" {
		contentType = str(nested(item, "file", "mimeType"))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return map[string]interface{}{
		"@odata.type":  "#microsoft.graph.fileAttachment",
		"name":         fileName,
		"contentType":  contentType,
		"contentBytes": base64.StdEncoding.EncodeToString(raw),
	}, len(raw), nil
}

// BuildMessage assembles a Graph message object from recipients and an HTML
// body, with optional cc and attachments.
func BuildMessage(subject, bodyHTML string, to, cc []string, attachments []map[string]interface{}) map[string]interface{} {
	message := map[string]interface{}{
		"subject":      subject,
		"body":         map[string]interface{}{"contentType": "HTML", "content": bodyHTML},
		"toRecipients": recipientList(to),
	}
	if len(cc) > 0 {
		message["ccRecipients"] = recipientList(cc)
	}
	if len(attachments) > 0 {
		message["attachments"] = attachments
	}
	return message
}

func recipientList(addresses []string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(addresses))
	for _, address := range addresses {
		out = append(out, map[string]interface{}{
			"emailAddress": map[string]interface{}{"address": address},
		})
	}
	return out
}
