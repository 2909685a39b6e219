package calque

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Handler is the stream-shaped entry point of a pipeline stage.
//
// The answer chain exposes itself as a Handler so that any byte source
// (stdin, an HTTP body, an MCP argument) can drive it.
type Handler interface {
	ServeFlow(*Request, *Response) error
}

// HandlerFunc allows regular functions to be used as Handlers.
type HandlerFunc func(req *Request, res *Response) error

// ServeFlow calls f(req, res).
func (f HandlerFunc) ServeFlow(req *Request, res *Response) error {
	return f(req, res)
}

// Request carries the input stream and the call context.
type Request struct {
	Context context.Context
	Data    io.Reader
}

// NewRequest builds a Request.
func NewRequest(ctx context.Context, data io.Reader) *Request {
	return &Request{Context: ctx, Data: data}
}

// WithContext returns a shallow copy of r with ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	return &Request{Context: ctx, Data: r.Data}
}

// Deadline returns the context deadline.
func (r *Request) Deadline() (time.Time, bool) {
	return r.Context.Deadline()
}

// Done returns the context done channel.
func (r *Request) Done() <-chan struct{} {
	return r.Context.Done()
}

// Response carries the output stream.
type Response struct {
	Data io.Writer
}

// NewResponse builds a Response.
func NewResponse(data io.Writer) *Response {
	return &Response{Data: data}
}

// Read reads the whole request body into a string or []byte.
//
// Usage in handlers:
//
//	calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
//	    var question string
//	    if err := calque.Read(req, &question); err != nil {
//	        return err
//	    }
//	    return calque.Write(res, strings.ToUpper(question))
//	})
func Read[T string | []byte](req *Request, outPtr *T) error {
	data, err := io.ReadAll(req.Data)
	if err != nil {
		return err
	}

	switch ptr := any(outPtr).(type) {
	case *string:
		*ptr = string(data)
	case *[]byte:
		*ptr = data
	default:
		return fmt.Errorf("unsupported type %T", outPtr)
	}
	return nil
}

// Write writes a string or []byte to the response.
func Write[T string | []byte](res *Response, data T) error {
	switch v := any(data).(type) {
	case string:
		_, err := io.WriteString(res.Data, v)
		return err
	case []byte:
		_, err := res.Data.Write(v)
		return err
	default:
		return fmt.Errorf("unsupported type %T", data)
	}
}

// Serve runs h on input and returns what it wrote.
//
// Example:
//
//	out, err := calque.Serve(ctx, rag.Handler(chain), "What's a good viking movie?")
func Serve(ctx context.Context, h Handler, input string) (string, error) {
	var out bytes.Buffer
	if err := h.ServeFlow(NewRequest(ctx, strings.NewReader(input)), NewResponse(&out)); err != nil {
		return "", err
	}
	return out.String(), nil
}
