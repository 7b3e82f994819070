package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"caption_dev_v1/internal/config"
	"caption_dev_v1/internal/controller"
	"caption_dev_v1/internal/middleware"
	"caption_dev_v1/internal/service"
	"caption_dev_v1/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// upstreams 模拟图片站、Hugging Face 与 OpenAI
type upstreams struct {
	image   *httptest.Server
	caption *httptest.Server
	openai  *httptest.Server

	captionCalls atomic.Int32
	openaiCalls  atomic.Int32
	refineReply  string
	captionFail  bool
}

func newUpstreams(t *testing.T) *upstreams {
	u := &upstreams{refineReply: "Description: A calm lake.\n\nHashtags: #nature, #calm lake"}

	u.image = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lake.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("\xff\xd8\xff\xe0fake-jpeg"))
	}))

	u.caption = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.captionCalls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		if u.captionFail {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Model is currently loading"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"generated_text":"a lake with trees"}]`))
	}))

	u.openai = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.openaiCalls.Add(1)
		reply, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": u.refineReply}},
			},
			"usage": map[string]int{"prompt_tokens": 60, "completion_tokens": 20},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(reply)
	}))

	t.Cleanup(func() {
		u.image.Close()
		u.caption.Close()
		u.openai.Close()
	})
	return u
}

func setupEngine(u *upstreams, creds config.CredentialSource, limiter *middleware.ClientRateLimiter) *gin.Engine {
	client := utils.NewHTTPClient(5 * time.Second)
	descSvc := service.NewDescriptionService(
		creds,
		service.NewHTTPImageFetcher(client),
		service.NewHuggingFaceCaptioner(client, u.caption.URL, ""),
		service.NewOpenAIGenerator(client, service.GeneratorOptions{BaseURL: u.openai.URL, Temperature: 0.7}),
		nil,
		zap.NewNop(),
	)

	r := NewEngine(zap.NewNop())
	InitRoutes(r, Options{
		Description: controller.NewDescriptionController(descSvc, nil, 4*1024*1024, zap.NewNop()),
		RateLimiter: limiter,
	})
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var testCreds = config.StaticCredentials{Caption: "hf", Text: "sk"}

func TestE2E_GenerateDescription(t *testing.T) {
	u := newUpstreams(t)
	r := setupEngine(u, testCreds, nil)

	w := postJSON(r, "/api/generateDescription", `{"imageUrl":"`+u.image.URL+`/lake.jpg"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"description":"A calm lake.","hashtags":["nature","calm","lake"]}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, int32(1), u.captionCalls.Load())
	assert.Equal(t, int32(1), u.openaiCalls.Load())
}

func TestE2E_EmptyRefinementFallsBackToCaption(t *testing.T) {
	u := newUpstreams(t)
	u.refineReply = ""
	r := setupEngine(u, testCreds, nil)

	w := postJSON(r, "/api/generateDescription", `{"imageUrl":"`+u.image.URL+`/lake.jpg"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"description":"a lake with trees","hashtags":[]}`, w.Body.String())
}

func TestE2E_ImageNotFound(t *testing.T) {
	u := newUpstreams(t)
	r := setupEngine(u, testCreds, nil)

	w := postJSON(r, "/api/generateDescription", `{"imageUrl":"`+u.image.URL+`/missing.jpg"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch image."}`, w.Body.String())
	assert.Zero(t, u.captionCalls.Load())
}

func TestE2E_UnsupportedScheme(t *testing.T) {
	u := newUpstreams(t)
	r := setupEngine(u, testCreds, nil)

	w := postJSON(r, "/api/generateDescription", `{"imageUrl":"ftp://example.com/a.jpg"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch image."}`, w.Body.String())
}

func TestE2E_MissingCredentialsMakesNoOutboundCalls(t *testing.T) {
	u := newUpstreams(t)
	r := setupEngine(u, config.StaticCredentials{Caption: "hf"}, nil)

	w := postJSON(r, "/api/generateDescription", `{"imageUrl":"`+u.image.URL+`/lake.jpg"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"API keys are not set"}`, w.Body.String())
	assert.Zero(t, u.captionCalls.Load())
	assert.Zero(t, u.openaiCalls.Load())
}

func TestE2E_CaptionUpstreamFailure(t *testing.T) {
	u := newUpstreams(t)
	u.captionFail = true
	r := setupEngine(u, testCreds, nil)

	w := postJSON(r, "/api/generateDescription", `{"imageUrl":"`+u.image.URL+`/lake.jpg"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to generate description and hashtags."}`, w.Body.String())
	assert.Zero(t, u.openaiCalls.Load())
}

func TestE2E_RateLimit(t *testing.T) {
	u := newUpstreams(t)
	r := setupEngine(u, testCreds, middleware.NewClientRateLimiter(0.001, 1))

	body := `{"imageUrl":"` + u.image.URL + `/lake.jpg"}`
	assert.Equal(t, http.StatusOK, postJSON(r, "/api/generateDescription", body).Code)

	w := postJSON(r, "/api/generateDescription", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "Too many requests"))

	// 健康检查不受限流影响
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	hw := httptest.NewRecorder()
	r.ServeHTTP(hw, req)
	assert.Equal(t, http.StatusOK, hw.Code)
}

func TestInitRoutes_UsageOnlyWhenConfigured(t *testing.T) {
	u := newUpstreams(t)
	r := setupEngine(u, testCreds, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/ai/usage", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
