// Command chatprobe is a terminal client for exercising the realtime chat
// gateway: it logs in, redeems a WebSocket ticket, joins a chat room and
// relays stdin lines as messages while printing every event it receives.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

type ticketResponse struct {
	Ticket string `json:"ticket"`
}

func main() {
	server := flag.String("server", "http://localhost:8473", "API base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	chatID := flag.Uint("chat", 0, "chat ID to join")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("email and password are required")
	}

	token, username := login(*server, *email, *password)
	log.Printf("Logged in as %s", username)

	ticket := issueTicket(*server, token)
	conn := dial(*server, ticket)
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				log.Printf("read: %v", err)
				return
			}
			fmt.Printf("<< %s\n", raw)
		}
	}()

	if *chatID != 0 {
		send(conn, "join-chat", map[string]interface{}{"chat_id": *chatID})
		log.Printf("Joined chat %d; type to send messages", *chatID)
	}
	send(conn, "set-online", map[string]interface{}{})

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if *chatID == 0 {
				log.Println("no chat joined; restart with -chat")
				continue
			}
			send(conn, "send-message", map[string]interface{}{
				"chat_id": *chatID,
				"content": line,
			})
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
	case <-interrupt:
		log.Println("closing connection")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func login(server, email, password string) (token, username string) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(server+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("login: status %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		log.Fatalf("login decode: %v", err)
	}
	return lr.Token, lr.User.Username
}

func issueTicket(server, token string) string {
	req, _ := http.NewRequest(http.MethodPost, server+"/api/ws/ticket", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("ticket: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("ticket: status %d", resp.StatusCode)
	}

	var tr ticketResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		log.Fatalf("ticket decode: %v", err)
	}
	return tr.Ticket
}

func dial(server, ticket string) *websocket.Conn {
	u, err := url.Parse(server)
	if err != nil {
		log.Fatalf("bad server URL: %v", err)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s/api/ws/chat?ticket=%s", scheme, u.Host, ticket)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	return conn
}

func send(conn *websocket.Conn, eventType string, payload map[string]interface{}) {
	raw, _ := json.Marshal(map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		log.Printf("send: %v", err)
	}
}
