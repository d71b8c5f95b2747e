// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package validation

import (
	"strings"
	"testing"
)

type chatPayload struct {
	TripID  int64  `validate:"required,gt=0"`
	UserID  int64  `validate:"required,gt=0"`
	Message string `validate:"required,max=4000"`
}

func TestValidateStruct_Valid(t *testing.T) {
	p := chatPayload{TripID: 7, UserID: 1, Message: "hi"}
	if err := ValidateStruct(&p); err != nil {
		t.Errorf("expected valid payload, got %v", err)
	}
}

func TestValidateStruct_MissingFields(t *testing.T) {
	p := chatPayload{}
	err := ValidateStruct(&p)
	if err == nil {
		t.Fatal("expected validation error for zero payload")
	}
	if len(err.Errors()) != 3 {
		t.Errorf("expected 3 field errors, got %d: %v", len(err.Errors()), err)
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("multi-error APIError should carry a fields detail list")
	}
}

func TestValidateStruct_SingleFieldError(t *testing.T) {
	p := chatPayload{TripID: 7, UserID: 1, Message: strings.Repeat("x", 4001)}
	err := ValidateStruct(&p)
	if err == nil {
		t.Fatal("expected validation error for oversized message")
	}

	apiErr := err.ToAPIError()
	if apiErr.Details["field"] != "Message" {
		t.Errorf("field detail = %v, want Message", apiErr.Details["field"])
	}
	if !strings.Contains(apiErr.Message, "at most 4000 characters") {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestValidateStruct_TranslatedMessages(t *testing.T) {
	type req struct {
		Limit int    `validate:"gte=1,lte=100"`
		Mode  string `validate:"required,oneof=grocery packing"`
	}

	err := ValidateStruct(&req{Limit: 500, Mode: "luggage"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	for _, want := range []string{"less than or equal to 100", "one of: grocery packing"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}
