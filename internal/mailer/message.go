package mailer

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/lucsky/cuid"

	"smtp-relay/internal/common/errors"
)

// Message is one outbound email before composition
type Message struct {
	From     string
	FromName string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Validate checks the fields required to address the message
func (m *Message) Validate() error {
	if m.From == "" {
		return errors.ValidationError("message requires a from address")
	}
	if len(m.To) == 0 {
		return errors.ValidationError("message requires at least one recipient")
	}
	for _, to := range m.To {
		if !strings.Contains(to, "@") {
			return errors.ValidationError("invalid recipient address").
				WithContext("to", to)
		}
	}
	return nil
}

// Build composes the RFC 5322 message body. A non-empty HTMLBody yields a
// multipart/alternative message with the plain part first.
func (m *Message) Build() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var header mail.Header
	header.SetDate(time.Now())
	header.SetAddressList("From", []*mail.Address{{Name: m.FromName, Address: m.From}})

	toList := make([]*mail.Address, 0, len(m.To))
	for _, to := range m.To {
		toList = append(toList, &mail.Address{Address: to})
	}
	header.SetAddressList("To", toList)
	header.SetSubject(m.Subject)
	header.SetMessageID(cuid.New() + "@" + domainOf(m.From))

	var buf bytes.Buffer
	if m.HTMLBody == "" {
		var partHeader mail.InlineHeader
		partHeader.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

		w, err := mail.CreateSingleInlineWriter(&buf, header)
		if err != nil {
			return nil, errors.InternalError("failed to create message writer", err)
		}
		if _, err := io.WriteString(w, m.TextBody); err != nil {
			return nil, errors.InternalError("failed to write message body", err)
		}
		if err := w.Close(); err != nil {
			return nil, errors.InternalError("failed to finalize message", err)
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, errors.InternalError("failed to create message writer", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, errors.InternalError("failed to create alternative part", err)
	}

	var textHeader mail.InlineHeader
	textHeader.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	tw, err := iw.CreatePart(textHeader)
	if err != nil {
		return nil, errors.InternalError("failed to create text part", err)
	}
	io.WriteString(tw, m.TextBody)
	tw.Close()

	var htmlHeader mail.InlineHeader
	htmlHeader.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	hw, err := iw.CreatePart(htmlHeader)
	if err != nil {
		return nil, errors.InternalError("failed to create html part", err)
	}
	io.WriteString(hw, m.HTMLBody)
	hw.Close()

	iw.Close()
	if err := mw.Close(); err != nil {
		return nil, errors.InternalError("failed to finalize message", err)
	}
	return buf.Bytes(), nil
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}
