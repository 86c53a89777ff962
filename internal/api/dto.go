package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/LeventeLantos/result-messaging/internal/results"
	"github.com/LeventeLantos/result-messaging/internal/service"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"full_name" validate:"max=200"`
}

// loginRequest mirrors the OAuth2 password form: the username is the email.
type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	FullName string `json:"full_name" validate:"max=200"`
	Password string `json:"password" validate:"omitempty,min=6,max=72"`
}

type manualSendRequest struct {
	Numbers numberList `json:"numbers" validate:"required,min=1,dive,required"`
	Message string     `json:"message" validate:"required"`
}

// numberList accepts a JSON array or a single string of numbers separated by
// commas, semicolons or whitespace.
type numberList []string

func (n *numberList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*n = compact(list)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("numbers must be a string or a list of strings")
	}
	*n = compact(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	}))
	return nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type rowsRequest struct {
	Data []results.Row `json:"data" validate:"required"`
}

// UnmarshalJSON also accepts a bare array of rows.
func (r *rowsRequest) UnmarshalJSON(b []byte) error {
	if trimmed := strings.TrimSpace(string(b)); strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(b, &r.Data)
	}
	type plain rowsRequest
	return json.Unmarshal(b, (*plain)(r))
}

type templateRequest struct {
	Type    string        `json:"type" validate:"required"`
	Data    []results.Row `json:"data" validate:"required"`
	Columns []string      `json:"columns"`
}

type resendRequest struct {
	IDs     []string               `json:"ids" validate:"omitempty,dive,required"`
	Records []service.ResendRecord `json:"records" validate:"omitempty,dive"`
}
