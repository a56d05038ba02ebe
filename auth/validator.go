package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"peerchat/errors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("printable", func(fl validator.FieldLevel) bool {
		return isPrintable(fl.Field().String())
	})
	_ = v.RegisterValidation("utf8", func(fl validator.FieldLevel) bool {
		return utf8.ValidString(fl.Field().String())
	})
	return v
}

type RoomRequest struct {
	Name     string `validate:"required,max=64,printable"`
	Nickname string `validate:"required,max=32,printable"`
}

type JoinRequest struct {
	Ticket   string `validate:"required,startswith=chat,max=8192"`
	Nickname string `validate:"required,max=32,printable"`
}

type NicknameRequest struct {
	Nickname string `validate:"required,max=32,printable"`
}

type MessageRequest struct {
	Text string `validate:"required,max=4096,utf8"`
}

type HistoryRequest struct {
	Limit  int `validate:"min=0,max=200"`
	Offset int `validate:"min=0"`
}

type SearchRequest struct {
	Query string `validate:"required,max=256,utf8,printable"`
	Limit int    `validate:"min=0,max=200"`
}

// Validate checks a UI request and reports failures as ErrInvalidArgument.
func Validate(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidArgument, err)
	}
	return nil
}

// isPrintable rejects invalid UTF-8, control characters and blank strings.
func isPrintable(s string) bool {
	if !utf8.ValidString(s) || strings.TrimSpace(s) == "" {
		return false
	}
	for _, char := range s {
		if !unicode.IsPrint(char) {
			return false
		}
	}
	return true
}
