package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

// The chassis runs behind API Gateway through httpadapter; these tests
// check that the router and middleware behave the same way there.

func gatewayEvent(method, path, query string) events.APIGatewayV2HTTPRequest {
	ev := events.APIGatewayV2HTTPRequest{
		Version:        "2.0",
		RawPath:        path,
		RawQueryString: query,
		Headers:        map[string]string{},
	}
	ev.RequestContext.HTTP.Method = method
	ev.RequestContext.HTTP.Path = path
	ev.RequestContext.HTTP.SourceIP = "203.0.113.9"
	return ev
}

func TestGatewayAdapter_RoutesThroughChassis(t *testing.T) {
	srv, _ := newTestServerForRoutes(t, nil)
	proxy := httpadapter.NewV2(srv.Handler())

	resp, err := proxy.ProxyWithContext(context.Background(), gatewayEvent(http.MethodGet, "/v1/fields/f1/ping", ""))
	if err != nil {
		t.Fatalf("ProxyWithContext: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.StatusCode, resp.Body)
	}
	if resp.Headers["X-Request-Id"] == "" {
		t.Errorf("X-Request-Id missing from %v", resp.Headers)
	}
	if resp.Headers["X-Content-Type-Options"] != "nosniff" {
		t.Errorf("security headers missing from %v", resp.Headers)
	}
}

func TestGatewayAdapter_UnknownRouteIsJSON404(t *testing.T) {
	srv, _ := newTestServerForRoutes(t, nil)
	proxy := httpadapter.NewV2(srv.Handler())

	resp, err := proxy.ProxyWithContext(context.Background(), gatewayEvent(http.MethodGet, "/v2/nothing", ""))
	if err != nil {
		t.Fatalf("ProxyWithContext: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body APIErrorResponse
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("body is not JSON: %v (%s)", err, resp.Body)
	}
	if body.Error.Code != string(errCodeNotFoundRoute) {
		t.Errorf("code = %q", body.Error.Code)
	}
}

func TestGatewayAdapter_RequestTranslation(t *testing.T) {
	var gotBody, gotLimit, gotCT string
	proxy := httpadapter.NewV2(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotLimit = r.URL.Query().Get("limit")
		gotCT = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))

	ev := gatewayEvent(http.MethodPost, "/v1/estimates", "limit=5")
	ev.Headers["content-type"] = "application/json"
	ev.Body = base64.StdEncoding.EncodeToString([]byte(`{"x":1}`))
	ev.IsBase64Encoded = true

	resp, err := proxy.ProxyWithContext(context.Background(), ev)
	if err != nil {
		t.Fatalf("ProxyWithContext: %v", err)
	}
	if gotBody != `{"x":1}` || gotLimit != "5" || gotCT != "application/json" {
		t.Errorf("request translation: body=%q limit=%q ct=%q", gotBody, gotLimit, gotCT)
	}
	if resp.StatusCode != http.StatusCreated || resp.Body != `{"data":{}}` || resp.IsBase64Encoded {
		t.Errorf("response = %+v", resp)
	}
}

func TestGatewayAdapter_BinaryBodyIsBase64(t *testing.T) {
	proxy := httpadapter.NewV2(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0xff, 0xfe})
	}))

	resp, err := proxy.ProxyWithContext(context.Background(), gatewayEvent(http.MethodGet, "/", ""))
	if err != nil {
		t.Fatalf("ProxyWithContext: %v", err)
	}
	if !resp.IsBase64Encoded || resp.Body != "//4=" {
		t.Errorf("response = %+v", resp)
	}
}
