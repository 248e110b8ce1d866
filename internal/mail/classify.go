package mail

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"strings"
	"syscall"
)

// Classify wraps err in a SendError with the failure kind the dispatch
// layer keys its retry decisions on.
func Classify(err error) *SendError {
	var se *SendError
	if errors.As(err, &se) {
		return se
	}
	return &SendError{
		Kind:    kindOf(err),
		Message: err.Error(),
		Err:     err,
	}
}

func kindOf(err error) Kind {
	var tp *textproto.Error
	if errors.As(err, &tp) {
		switch {
		case tp.Code == 530 || tp.Code == 534 || tp.Code == 535:
			return KindAuth
		case tp.Code/100 == 4:
			return KindTransient
		default:
			return KindOther
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransient
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return KindTransient
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "username and password not accepted"),
		strings.Contains(msg, "authentication failed"),
		strings.Contains(msg, "invalid credentials"):
		return KindAuth
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"):
		return KindTransient
	}
	return KindOther
}
