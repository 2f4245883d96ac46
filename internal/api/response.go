// Package api provides the status HTTP endpoints of the emitter and listener.
package api

import (
	"github.com/gofiber/fiber/v2"
)

// Envelope wraps every status response. Service names the process that
// answered, so responses from an emitter and a listener on one host can be
// told apart.
type Envelope struct {
	OK      bool        `json:"ok"`
	Service string      `json:"service"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Problem    `json:"error,omitempty"`
}

// Problem describes a failed request.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Problem codes.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_ERROR"
)

// problemCode maps an HTTP status to a problem code.
func problemCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	default:
		return CodeInternal
	}
}

func reply(c *fiber.Ctx, service string, data interface{}) error {
	return c.JSON(Envelope{OK: true, Service: service, Data: data})
}

func replyProblem(c *fiber.Ctx, service string, status int, message string) error {
	return c.Status(status).JSON(Envelope{
		Service: service,
		Error: &Problem{
			Code:    problemCode(status),
			Message: message,
		},
	})
}
