package rag

import (
	"strings"

	"github.com/calque-ai/movierag/pkg/calque"
)

// Handler exposes the chain as a calque.Handler.
//
// Input: question text
// Output: the answer text followed by a "SOURCES:" line when it has sources
// Behavior: BUFFERED - reads the whole question, then runs the chain once
//
// Example:
//
//	out, err := calque.Serve(ctx, rag.Handler(chain), "What's a good movie about an epic viking?")
func Handler(chain *Chain, opts ...Option) calque.Handler {
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		var question string
		if err := calque.Read(req, &question); err != nil {
			return err
		}
		ans, err := chain.Answer(req.Context, strings.TrimSpace(question), opts...)
		if err != nil {
			return err
		}
		return calque.Write(res, ans.String())
	})
}
