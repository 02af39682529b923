// Package contact validates and submits the website's contact form.
package contact

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field names a contact form input.
type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
	FieldMessage Field = "message"
	FieldPrivacy Field = "privacy"
)

// Fields lists every form field in validation order.
var Fields = []Field{FieldName, FieldEmail, FieldPhone, FieldMessage, FieldPrivacy}

// Form is a candidate submission.
type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Privacy bool   `json:"privacy"`
}

// Errors maps a field to its first failing message. Passing fields are absent.
type Errors map[Field]string

// Empty reports whether no field failed.
func (e Errors) Empty() bool { return len(e) == 0 }

const (
	minNameLen    = 2
	minMessageLen = 10
)

// space matches what browsers treat as whitespace: ASCII space and controls,
// vertical tab, every Unicode separator and the BOM.
const space = `\s\v\p{Z}\x{FEFF}`

var (
	emailPattern = regexp.MustCompile(`^[^` + space + `@]+@[^` + space + `@]+\.[^` + space + `@]+$`)
	phonePattern = regexp.MustCompile(`^[\d` + space + `+\-()]{5,}$`)
)

func blank(s string) bool {
	return strings.TrimFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '\uFEFF' }) == ""
}

// User-facing messages.
const (
	msgNameRequired    = "Bitte geben Sie Ihren Namen ein"
	msgNameTooShort    = "Der Name muss mindestens 2 Zeichen haben"
	msgEmailRequired   = "Bitte geben Sie Ihre E-Mail-Adresse ein"
	msgEmailInvalid    = "Bitte geben Sie eine gültige E-Mail-Adresse ein"
	msgPhoneInvalid    = "Bitte geben Sie eine gültige Telefonnummer ein"
	msgMessageRequired = "Bitte geben Sie eine Nachricht ein"
	msgMessageTooShort = "Die Nachricht muss mindestens 10 Zeichen haben"
	msgPrivacyRequired = "Bitte akzeptieren Sie die Datenschutzerklärung"
)

// Validate checks every field and returns the errors found. It does not modify f.
func Validate(f Form) Errors {
	errs := Errors{}
	for _, field := range Fields {
		if msg := ValidateField(f, field); msg != "" {
			errs[field] = msg
		}
	}
	return errs
}

// ValidateField returns the first failing message for field, or "" if it passes.
func ValidateField(f Form, field Field) string {
	switch field {
	case FieldName:
		switch {
		case blank(f.Name):
			return msgNameRequired
		case utf8.RuneCountInString(f.Name) < minNameLen:
			return msgNameTooShort
		}
	case FieldEmail:
		switch {
		case blank(f.Email):
			return msgEmailRequired
		case !emailPattern.MatchString(f.Email):
			return msgEmailInvalid
		}
	case FieldPhone:
		if f.Phone != "" && !phonePattern.MatchString(f.Phone) {
			return msgPhoneInvalid
		}
	case FieldMessage:
		switch {
		case blank(f.Message):
			return msgMessageRequired
		case utf8.RuneCountInString(f.Message) < minMessageLen:
			return msgMessageTooShort
		}
	case FieldPrivacy:
		if !f.Privacy {
			return msgPrivacyRequired
		}
	}
	return ""
}
