package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/synqronlabs/spfaudit/spf"
)

const (
	contentTypeJSON    = "application/json; charset=utf-8"
	contentTypeMsgpack = "application/msgpack"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeError(ctx *fasthttp.RequestCtx, status int, detail string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType(contentTypeJSON)
	body, _ := json.Marshal(errorBody{Detail: detail})
	ctx.SetBody(body)
}

// handleAnalyze serves GET /v1/spf/{domain} and GET /v1/spf?domain=.
func (s *Server) handleAnalyze(ctx *fasthttp.RequestCtx) {
	domain := pathDomain(ctx)
	if domain == "" {
		domain = string(ctx.QueryArgs().Peek("domain"))
	}
	if domain == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "Missing domain parameter")
		return
	}

	report, err := s.analyzer.Analyze(ctx, domain)
	if err != nil {
		if errors.Is(err, spf.ErrInvalidDomain) {
			writeError(ctx, fasthttp.StatusBadRequest, "Invalid domain format")
			return
		}
		s.logger.Error("analysis failed",
			"request_id", requestID(ctx),
			"domain", domain,
			"error", err,
		)
		writeError(ctx, fasthttp.StatusInternalServerError,
			"An error occurred while processing your request")
		return
	}

	if wantsMsgpack(ctx) {
		body, err := report.ToMessagePack()
		if err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError,
				"An error occurred while processing your request")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetContentType(contentTypeMsgpack)
		ctx.SetBody(body)
		return
	}

	body, err := json.Marshal(report)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError,
			"An error occurred while processing your request")
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType(contentTypeJSON)
	ctx.SetBody(body)
}

// handleHealth serves GET /healthz.
func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType(contentTypeJSON)
	fmt.Fprintf(ctx, `{"status":"ok"}`)
}

// pathDomain extracts the trailing segment of /v1/spf/{domain}.
func pathDomain(ctx *fasthttp.RequestCtx) string {
	path := string(ctx.Path())
	rest, ok := strings.CutPrefix(path, "/v1/spf/")
	if !ok {
		return ""
	}
	return strings.TrimSuffix(rest, "/")
}

func wantsMsgpack(ctx *fasthttp.RequestCtx) bool {
	accept := string(ctx.Request.Header.Peek("Accept"))
	return strings.Contains(accept, "application/msgpack") ||
		strings.Contains(accept, "application/x-msgpack")
}
