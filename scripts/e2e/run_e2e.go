// Package main runs end-to-end scenarios against a running MediAssist API.
//
// Scenarios cover the booking dialogue, slot re-prompts, cancellation,
// document grounding and the WebSocket transport. Each scenario opens its
// own session, so they can run against a shared server.
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 go run ./scripts/e2e [scenario-name]
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const requestTimeout = 90 * time.Second

var (
	apiBase string
	client  = &http.Client{Timeout: requestTimeout}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type reply struct {
	SessionID     string `json:"session_id"`
	Reply         string `json:"reply"`
	Source        string `json:"source"`
	State         string `json:"state"`
	AppointmentID string `json:"appointment_id"`
}

type historyMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func startSession() (string, error) {
	resp, err := client.Post(apiBase+"/chat/sessions", "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session returned %d", resp.StatusCode)
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func send(sessionID, text string) (reply, int, error) {
	body, _ := json.Marshal(map[string]string{"session_id": sessionID, "text": text})
	resp, err := client.Post(apiBase+"/chat/message", "application/json", bytes.NewReader(body))
	if err != nil {
		return reply{}, 0, err
	}
	defer resp.Body.Close()
	var out reply
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return reply{}, resp.StatusCode, err
		}
	}
	return out, resp.StatusCode, nil
}

func history(sessionID string) ([]historyMessage, error) {
	resp, err := client.Get(apiBase + "/chat/history?session=" + url.QueryEscape(sessionID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out struct {
		Messages []historyMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func upload(sessionID, filename string, content []byte) (map[string]interface{}, int, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("session_id", sessionID)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, 0, err
	}
	_, _ = part.Write(content)
	_ = w.Close()

	resp, err := client.Post(apiBase+"/chat/document", w.FormDataContentType(), &buf)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return out, resp.StatusCode, nil
}

// converse sends each line in order and returns the last reply.
func converse(t *T, sessionID string, lines ...string) (reply, bool) {
	var last reply
	for _, line := range lines {
		r, status, err := send(sessionID, line)
		if err != nil || status != http.StatusOK {
			t.fatalf("send %q: status %d err %v", line, status, err)
			return last, false
		}
		last = r
	}
	return last, true
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func scenarioHappyPath(t *T) {
	id, err := startSession()
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	r, ok := converse(t, id, "I'd like to book an appointment")
	if !ok {
		return
	}
	t.check("booking starts with the name prompt", strings.Contains(r.Reply, "full name"))
	t.check("reply comes from the dialogue engine", r.Source == "dialogue")

	r, ok = converse(t, id,
		"Jane Doe",
		"5551234567",
		"jane@example.com",
		"1 Main St, Springfield",
		"next Monday",
		"10 am",
	)
	if !ok {
		return
	}
	t.check("summary repeats the name", strings.Contains(r.Reply, "Jane Doe"))
	t.check("summary asks for confirmation", strings.Contains(strings.ToLower(r.Reply), "confirm"))

	r, ok = converse(t, id, "confirm")
	if !ok {
		return
	}
	t.check("appointment confirmed", strings.Contains(r.Reply, "confirmed"))
	t.check("appointment id returned", r.AppointmentID != "")
}

func scenarioReprompt(t *T) {
	id, err := startSession()
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	r, ok := converse(t, id, "schedule a visit please", "Jane Doe", "call me maybe")
	if !ok {
		return
	}
	t.check("bad phone is re-prompted", strings.Contains(r.Reply, "valid phone"))
	t.check("flow still collecting phone", strings.Contains(r.State, "phone"))

	r, ok = converse(t, id, "5551234", "not-an-email")
	if !ok {
		return
	}
	t.check("bad email is re-prompted", strings.Contains(r.Reply, "valid email"))

	r, ok = converse(t, id, "jane@example.com", "1 Main St", "someday")
	if !ok {
		return
	}
	t.check("unparseable date is re-prompted", strings.Contains(strings.ToLower(r.Reply), "date"))
}

func scenarioCancel(t *T) {
	id, err := startSession()
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	r, ok := converse(t, id, "book an appointment", "Jane Doe", "cancel")
	if !ok {
		return
	}
	t.check("cancel acknowledged", strings.Contains(r.Reply, "cancelled"))
	t.check("flow back to idle", r.State == "idle")
}

func scenarioDocument(t *T) {
	id, err := startSession()
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	res, status, err := upload(id, "hours.txt", []byte("The clinic is open Monday to Friday, 8am to 6pm."))
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("upload accepted", status == http.StatusOK)
	loaded, _ := res["loaded"].(bool)
	t.check("document loaded", loaded)

	res, status, err = upload(id, "scan.png", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	loaded, _ = res["loaded"].(bool)
	t.check("unsupported type reported, not rejected", status == http.StatusOK && !loaded)

	r, ok := converse(t, id, "What are your opening hours?")
	if !ok {
		return
	}
	t.check("question answered by the backend", r.Source == "backend" && r.Reply != "")

	msgs, err := history(id)
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	for _, m := range msgs {
		if strings.HasPrefix(m.Text, "Document:") {
			t.check("document excerpt kept out of history", false)
			return
		}
	}
	t.check("document excerpt kept out of history", true)
}

func scenarioValidation(t *T) {
	_, status, err := send("", "   ")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("blank message rejected", status == http.StatusBadRequest)

	resp, err := client.Get(apiBase + "/chat/history?session=does-not-exist")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	resp.Body.Close()
	t.check("unknown session is 404", resp.StatusCode == http.StatusNotFound)
}

func scenarioWebSocket(t *T) {
	wsURL := strings.Replace(apiBase, "http", "ws", 1) + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.fatalf("dial: %v", err)
		return
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(requestTimeout))

	var frame map[string]interface{}
	if err := conn.ReadJSON(&frame); err != nil {
		t.fatalf("read session frame: %v", err)
		return
	}
	t.check("session frame first", frame["type"] == "session")
	if err := conn.ReadJSON(&frame); err != nil {
		t.fatalf("read history frame: %v", err)
		return
	}
	t.check("history frame second", frame["type"] == "history")

	_ = conn.WriteJSON(map[string]string{"type": "ping"})
	if err := conn.ReadJSON(&frame); err != nil {
		t.fatalf("read pong: %v", err)
		return
	}
	t.check("ping answered", frame["type"] == "pong")

	_ = conn.WriteJSON(map[string]string{"type": "message", "text": "I want to book an appointment"})
	if err := conn.ReadJSON(&frame); err != nil {
		t.fatalf("read reply: %v", err)
		return
	}
	text, _ := frame["text"].(string)
	t.check("booking prompt over websocket", frame["type"] == "message" && strings.Contains(text, "full name"))
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	apiBase = strings.TrimSuffix(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"happy-path", scenarioHappyPath},
		{"reprompt", scenarioReprompt},
		{"cancel", scenarioCancel},
		{"document", scenarioDocument},
		{"validation", scenarioValidation},
		{"websocket", scenarioWebSocket},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	scenarioResults := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "ok"
		if t.failed > 0 {
			status = "FAILED"
		}
		scenarioResults = append(scenarioResults, fmt.Sprintf("  %-6s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range scenarioResults {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		os.Exit(1)
	}
}
