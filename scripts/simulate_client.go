// Smoke client: submits a suspicious screenshot text to a running API server
// and follows the task over the progress WebSocket.
//
//	go run scripts/simulate_client.go [base-url]
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const sampleText = `FINAL NOTICE: Your account has been suspended.
Call 1-800-555-0199 immediately or visit http://secure-verify-account.xyz
to restore access. Contact support@paypa1-help.com with your details.`

func main() {
	base := "http://localhost:8080"
	if len(os.Args) > 1 {
		base = strings.TrimRight(os.Args[1], "/")
	}

	resp, err := http.PostForm(base+"/api/v1/analyze", url.Values{
		"ocr_text":   {sampleText},
		"session_id": {"simulate-client"},
	})
	if err != nil {
		log.Fatalf("analyze request failed: %v", err)
	}
	defer resp.Body.Close()

	var routed struct {
		Type   string `json:"type"`
		TaskID string `json:"task_id"`
		WSURL  string `json:"ws_url"`
		Result any    `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&routed); err != nil {
		log.Fatalf("decode response: %v", err)
	}

	if routed.Type != "agent" {
		out, _ := json.MarshalIndent(routed.Result, "", "  ")
		fmt.Printf("fast path verdict:\n%s\n", out)
		return
	}

	fmt.Printf("task %s queued, following %s\n", routed.TaskID, routed.WSURL)
	wsBase := "ws" + strings.TrimPrefix(base, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsBase+routed.WSURL, nil)
	if err != nil {
		log.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(90 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var msg struct {
			Step      string `json:"step"`
			Tool      string `json:"tool"`
			Message   string `json:"message"`
			Percent   int    `json:"percent"`
			Heartbeat bool   `json:"heartbeat"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			log.Fatalf("websocket read: %v", err)
		}
		if msg.Heartbeat {
			continue
		}
		fmt.Printf("%3d%%  %-16s %s %s\n", msg.Percent, msg.Step, msg.Tool, msg.Message)
		if msg.Step == "completed" || msg.Step == "failed" {
			break
		}
	}

	statusResp, err := http.Get(base + "/agent-task/" + routed.TaskID + "/status")
	if err != nil {
		log.Fatalf("status request failed: %v", err)
	}
	defer statusResp.Body.Close()
	var pretty json.RawMessage
	if err := json.NewDecoder(statusResp.Body).Decode(&pretty); err != nil {
		log.Fatalf("decode status: %v", err)
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Printf("final status:\n%s\n", out)
}
