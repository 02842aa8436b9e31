package exportdir

import (
	"bytes"
	"fmt"
	"io"
	netmail "net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/Martian-dev/pst-migrate/internal/archive"
)

func readEML(path string) ([]archive.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	msg, err := parseMessage(f)
	if err != nil {
		return nil, err
	}
	if msg.CreationTime.IsZero() {
		msg.CreationTime = info.ModTime()
	}
	msg.ModificationTime = info.ModTime()
	return []archive.Item{msg}, nil
}

func readMbox(path string) ([]archive.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []archive.Item
	r := mbox.NewReader(f)
	for {
		mr, err := r.NextMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read mbox: %w", err)
		}
		msg, err := parseMessage(mr)
		if err != nil {
			return nil, fmt.Errorf("parse mbox entry %d: %w", len(items), err)
		}
		items = append(items, msg)
	}
	return items, nil
}

// parseMessage reads an RFC 5322 message into an archive.Message.
func parseMessage(r io.Reader) (*archive.Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	msg := &archive.Message{Class: messageClass(h)}

	msg.Subject, _ = h.Subject()
	if id, err := h.MessageID(); err == nil && id != "" {
		msg.InternetMessageID = "<" + id + ">"
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.SenderName = from[0].Name
		msg.SenderAddress = from[0].Address
	}
	msg.DisplayTo = joinAddresses(h, "To")
	msg.DisplayCC = joinAddresses(h, "Cc")
	msg.DisplayBCC = joinAddresses(h, "Bcc")

	if date, err := h.Date(); err == nil {
		msg.SubmitTime = date
		msg.DeliveryTime = date
	}
	if received := receivedTime(h); !received.IsZero() {
		msg.DeliveryTime = received
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return nil, fmt.Errorf("read message part: %w", err)
		}

		switch ph := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := ph.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/html") && msg.BodyHTML == "":
				msg.BodyHTML = string(body)
			case strings.HasPrefix(contentType, "text/plain") && msg.BodyText == "":
				msg.BodyText = string(body)
			case strings.HasPrefix(contentType, "text/rtf") && msg.BodyRTF == "":
				msg.BodyRTF = string(body)
			}
		case *mail.AttachmentHeader:
			name, _ := ph.Filename()
			contentType, _, _ := ph.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			msg.Attachments = append(msg.Attachments, memoryAttachment(name, contentType, body))
		}
	}
	return msg, nil
}

func messageClass(h mail.Header) string {
	if class := strings.TrimSpace(h.Get("X-Message-Class")); class != "" {
		return class
	}
	if strings.TrimSpace(h.Get("X-Unsent")) == "1" {
		return archive.MessageClassDraft
	}
	return archive.MessageClassNote
}

func joinAddresses(h mail.Header, key string) string {
	list, err := h.AddressList(key)
	if err != nil || len(list) == 0 {
		return ""
	}
	addrs := make([]string, len(list))
	for i, a := range list {
		addrs[i] = a.Address
	}
	return strings.Join(addrs, "; ")
}

// receivedTime returns the timestamp of the topmost Received header, which is
// the delivery time at the final hop.
func receivedTime(h mail.Header) time.Time {
	received := h.Get("Received")
	idx := strings.LastIndex(received, ";")
	if idx < 0 {
		return time.Time{}
	}
	t, err := netmail.ParseDate(strings.TrimSpace(received[idx+1:]))
	if err != nil {
		return time.Time{}
	}
	return t
}

func memoryAttachment(name, mimeType string, content []byte) archive.Attachment {
	return archive.Attachment{
		Name:     name,
		MIMEType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}
