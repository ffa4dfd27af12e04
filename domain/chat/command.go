package chat

import (
	"chat-client/errors"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// OutboundFile carries the file bytes inline, encoded as a data URL.
type OutboundFile struct {
	Name string `json:"name" validate:"required"`
	Data string `json:"data" validate:"required,startswith=data:"`
}

// OutboundFrame is the only frame the client writes on the connection.
type OutboundFrame struct {
	Recipient UserID        `json:"recipient" validate:"required"`
	Text      string        `json:"text"`
	File      *OutboundFile `json:"file,omitempty"`
}

// NewOutboundFile encodes raw bytes as "data:<mime>;base64,<payload>".
// The mime type is sniffed from the content, parameters are dropped.
func NewOutboundFile(name string, data []byte) OutboundFile {
	mime, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return OutboundFile{
		Name: name,
		Data: fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
	}
}

func (f OutboundFrame) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidOutbound, err)
	}
	if strings.TrimSpace(f.Text) == "" && f.File == nil {
		return errors.ErrEmptyMessage
	}
	return nil
}
