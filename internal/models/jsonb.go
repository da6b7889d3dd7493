package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RecipientList is stored as a JSONB array.
type RecipientList []Recipient

// Value implements driver.Valuer.
func (l RecipientList) Value() (driver.Value, error) {
	return marshalJSONB(l, len(l) == 0)
}

// Scan implements sql.Scanner.
func (l *RecipientList) Scan(src interface{}) error {
	return unmarshalJSONB(src, l)
}

// AttachmentList is stored as a JSONB array.
type AttachmentList []Attachment

// Value implements driver.Valuer.
func (l AttachmentList) Value() (driver.Value, error) {
	return marshalJSONB(l, len(l) == 0)
}

// Scan implements sql.Scanner.
func (l *AttachmentList) Scan(src interface{}) error {
	return unmarshalJSONB(src, l)
}

func marshalJSONB(v interface{}, empty bool) (driver.Value, error) {
	if empty {
		return []byte("[]"), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return raw, nil
}

func unmarshalJSONB(src interface{}, dest interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return nil
}
