package handler

import (
	apperrors "github.com/jwalitptl/mesh-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// FromError builds an error response and the HTTP status it should be sent
// with.
func FromError(err error) (int, *Response) {
	status := 500
	if se, ok := err.(interface{ StatusCode() int }); ok {
		status = se.StatusCode()
	}
	resp := NewErrorResponse(err.Error())
	if apperrors.Code(err) == apperrors.ErrInternal {
		resp.Message = "internal server error"
	}
	return status, resp
}
