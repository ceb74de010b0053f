package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/scanprep/internal/server"
)

var errNoServer = errors.New("the scanprep server is not running")

func (testCtx *TestContext) theServerIsRunningWithSteps(steps string) error {
	return testCtx.startTestHTTPServer(steps, server.RateLimitConfig{})
}

func (testCtx *TestContext) theServerIsRunningWithRateLimit(perMinute int) error {
	return testCtx.startTestHTTPServer("grayscale", server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute})
}

func (testCtx *TestContext) baseURL() (string, error) {
	if testCtx.HTTPTestServer == nil {
		return "", errNoServer
	}
	return testCtx.HTTPTestServer.Server.URL, nil
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) iSendARequestTo(method, endpoint string) error {
	base, err := testCtx.baseURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, base+endpoint, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iUploadWithFields posts name as a multipart file. fields uses query
// syntax, e.g. "steps=grayscale&format=png".
func (testCtx *TestContext) iUploadWithFields(name, endpoint, fields string) error {
	base, err := testCtx.baseURL()
	if err != nil {
		return err
	}
	values, err := url.ParseQuery(fields)
	if err != nil {
		return fmt.Errorf("invalid fields %q: %w", fields, err)
	}
	data, err := os.ReadFile(testCtx.path(name))
	if err != nil {
		return err
	}

	field := "image"
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		field = "pdf"
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	for k, vs := range values {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				return err
			}
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, base+endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) iUpload(name, endpoint string) error {
	return testCtx.iUploadWithFields(name, endpoint, "")
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !bytes.Contains(testCtx.LastHTTPResponse, []byte(text)) {
		return fmt.Errorf("response does not contain %q\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// theJSONFieldShouldBe compares a dotted path into the JSON response with
// the JSON encoding of want.
func (testCtx *TestContext) theJSONFieldShouldBe(path, want string) error {
	var doc any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	cur := doc
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: not an object at %q", path, key)
		}
		if cur, ok = m[key]; !ok {
			return fmt.Errorf("%s: missing key %q", path, key)
		}
	}
	got, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	if string(got) != want {
		return fmt.Errorf("%s is %s, want %s", path, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseImageShouldBe(width, height int) error {
	cfg, err := decodeImage(testCtx.LastHTTPResponse)
	if err != nil {
		return fmt.Errorf("response is not an image: %w", err)
	}
	if cfg.Width != width || cfg.Height != height {
		return fmt.Errorf("response image is %dx%d, want %dx%d", cfg.Width, cfg.Height, width, height)
	}
	return nil
}

// iStreamOverWebSocket sends name through /ws and collects messages until
// a result or error arrives.
func (testCtx *TestContext) iStreamOverWebSocket(name, kind, steps string) error {
	base, err := testCtx.baseURL()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.path(name))
	if err != nil {
		return err
	}
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(server.WebSocketRequest{
		Type: kind, RequestID: "scenario", Image: data, Filename: filepath.Base(name), Steps: steps,
	}); err != nil {
		return err
	}
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var messages []json.RawMessage
	for {
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			return fmt.Errorf("read websocket: %w", err)
		}
		messages = append(messages, raw)
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return err
		}
		if head.Type == "result" || head.Type == "error" {
			break
		}
	}
	testCtx.LastHTTPResponse, err = json.Marshal(messages)
	return err
}

func (testCtx *TestContext) iShouldReceiveProgressMessages(n int) error {
	var messages []struct {
		Type string `json:"type"`
		Step string `json:"step"`
	}
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &messages); err != nil {
		return err
	}
	progress := 0
	for _, m := range messages {
		if m.Type == "progress" {
			progress++
		}
	}
	if progress != n {
		return fmt.Errorf("got %d progress messages, want %d: %s", progress, n, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theLastMessageShouldBe(kind string) error {
	var messages []map[string]any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &messages); err != nil {
		return err
	}
	if len(messages) == 0 {
		return errors.New("no websocket messages received")
	}
	if got := messages[len(messages)-1]["type"]; got != kind {
		return fmt.Errorf("last message is %v, want %s", got, kind)
	}
	return nil
}

// RegisterServerSteps registers the HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the scanprep server is running with steps "([^"]*)"$`, testCtx.theServerIsRunningWithSteps)
	sc.Step(`^the scanprep server is running with a limit of (\d+) requests? per minute$`, testCtx.theServerIsRunningWithRateLimit)
	sc.Step(`^I send a (GET|POST|OPTIONS) request to "([^"]*)"$`, testCtx.iSendARequestTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUpload)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with "([^"]*)"$`, testCtx.iUploadWithFields)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be (.+)$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the response image should be (\d+)x(\d+)$`, testCtx.theResponseImageShouldBe)
	sc.Step(`^I stream "([^"]*)" as a (preprocess|ocr) request with steps "([^"]*)"$`, testCtx.iStreamOverWebSocket)
	sc.Step(`^I should receive (\d+) progress messages?$`, testCtx.iShouldReceiveProgressMessages)
	sc.Step(`^the last message should be a (result|error)$`, testCtx.theLastMessageShouldBe)
}
