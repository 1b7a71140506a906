package middleware

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"bank-accounts/internal/utils"
)

// RequestLogger logs every request with its status and duration.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		startTime := time.Now()
		path := string(ctx.Path())

		utils.LogRequest(string(ctx.Method()), path, ctx.RemoteIP().String())
		next(ctx)
		utils.LogResponse(path, ctx.Response.StatusCode(), time.Since(startTime))
	}
}

// Recover turns a panicking handler into a 500 so one bad request cannot
// take the server down.
func Recover(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		defer func() {
			if r := recover(); r != nil {
				utils.LogError("Middleware", "Handler panicked on "+string(ctx.Path()), fmt.Errorf("%v", r))
				ctx.Response.Reset()
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetContentType("application/json")
				_ = json.NewEncoder(ctx).Encode(map[string]string{
					"code":    "INTERNAL_ERROR",
					"message": "internal error",
				})
			}
		}()
		next(ctx)
	}
}
